package model

import "time"

// BytesProducer lazily yields an asset's raw bytes, bound to whatever
// underlying file handle produced it. It may fail, e.g. if the owning
// folder handle has since been revoked.
type BytesProducer func() ([]byte, error)

// ScanRecord is one file discovered by the scan pipeline. It is transient:
// produced by the scanner, consumed immediately by the coordinator, never
// persisted itself.
type ScanRecord struct {
	Path       string // relative to folder root
	Filename   string
	Ext        string // lowercase, normalized
	ByteSize   int64
	ModifiedAt time.Time
	Bytes      BytesProducer
}

// ScanBatch is a slice of records flushed together, either because the
// batch size threshold was reached or because enumeration completed.
type ScanBatch []ScanRecord

// SupportedExtensions is the set of file extensions the scanner includes.
// Extending this set is a single-point change, per spec.
var SupportedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"arw":  true,
}

// CatalogState is the coordinator's lifecycle state machine.
type CatalogState string

const (
	StateInitializing CatalogState = "initializing"
	StateReady        CatalogState = "ready"
	StateScanning     CatalogState = "scanning"
	StateError        CatalogState = "error"
)

// ScanProgress reports counters during an in-progress scan.
type ScanProgress struct {
	FilesSeen     int
	AssetsAdded   int
	AssetsUpdated int
}
