package model

import "time"

// Flag is a user-applied triage marker on an asset.
type Flag string

const (
	FlagNone   Flag = "none"
	FlagPick   Flag = "pick"
	FlagReject Flag = "reject"
)

// DerivativeState is the four-valued lifecycle of a rendered derivative
// (thumbnail or preview) for one asset.
type DerivativeState string

const (
	DerivativePending DerivativeState = "pending"
	DerivativeLoading DerivativeState = "loading"
	DerivativeReady   DerivativeState = "ready"
	DerivativeError   DerivativeState = "error"
)

// Dimensions is an optional pixel width/height pair.
type Dimensions struct {
	Width  int
	Height int
}

// Asset is the in-memory, live projection of a photo the coordinator
// exposes to the UI. It is replaced wholesale on any state-changing
// operation — never mutated in place — so callers holding a prior value
// never observe a half-updated asset.
type Asset struct {
	ID       string // opaque, process-stable, never reused
	FolderID string // owning folder's internal key
	Path     string // relative to folder root
	Filename string
	Ext      string // lowercase, no leading dot

	Flag Flag

	CaptureAt  *time.Time
	ModifiedAt time.Time
	ByteSize   int64
	Dimensions *Dimensions

	ThumbnailState  DerivativeState
	ThumbnailHandle string // opaque handle the UI can render, "" if absent

	PreviewState  DerivativeState
	PreviewHandle string
}

// Clone returns a deep-enough copy safe to hand to a new owner; the
// coordinator never mutates an Asset in place, it replaces map entries
// with clones carrying the updated fields.
func (a Asset) Clone() Asset {
	out := a
	if a.CaptureAt != nil {
		t := *a.CaptureAt
		out.CaptureAt = &t
	}
	if a.Dimensions != nil {
		d := *a.Dimensions
		out.Dimensions = &d
	}
	return out
}

// AssetRecord is the persistent superset of Asset, minus live derivative
// state, plus the store-private internal key.
type AssetRecord struct {
	InternalKey int64      `db:"internal_key"`     // private to the persistence layer
	ID          string     `db:"asset_identifier"` // opaque asset-identifier, authoritative across the API
	FolderKey   string     `db:"folder_key"`
	Path        string     `db:"path"`
	Filename    string     `db:"filename"`
	Ext         string     `db:"ext"`
	Flag        Flag       `db:"flag"`
	CaptureAt   *time.Time `db:"capture_instant"`
	ModifiedAt  time.Time  `db:"modified_at"`
	ByteSize    int64      `db:"byte_size"`
	Width       *int       `db:"width"`
	Height      *int       `db:"height"`
}

// Project converts a persisted record into a live asset projection with
// derivative state defaulted to pending/absent.
func (r AssetRecord) Project() Asset {
	a := Asset{
		ID:             r.ID,
		FolderID:       r.FolderKey,
		Path:           r.Path,
		Filename:       r.Filename,
		Ext:            r.Ext,
		Flag:           r.Flag,
		CaptureAt:      r.CaptureAt,
		ModifiedAt:     r.ModifiedAt,
		ByteSize:       r.ByteSize,
		ThumbnailState: DerivativePending,
		PreviewState:   DerivativePending,
	}
	if r.Width != nil && r.Height != nil {
		a.Dimensions = &Dimensions{Width: *r.Width, Height: *r.Height}
	}
	return a
}

// FolderRecord is the persistent record of a scanned folder. InternalKey
// is the folder's stable identifier (content-derived from its path, see
// internal/coordinator), distinct from the directory handle's own
// lookup key in the handle store (§4.4 keeps these as separate APIs).
type FolderRecord struct {
	InternalKey     string     `db:"folder_key"`
	Path            string     `db:"root_path"` // unique
	Name            string     `db:"display_name"`
	HandleLookupKey string     `db:"handle_lookup_key"`
	LastScanAt      *time.Time `db:"last_opened_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

// FolderSummary is the reduced view returned by "list recent folders".
type FolderSummary struct {
	InternalKey  string     `db:"folder_key"`
	Name         string     `db:"display_name"`
	Path         string     `db:"root_path"`
	LastScanAt   *time.Time `db:"last_opened_at"`
	AssetCount   int        `db:"asset_count"`
	IsAccessible bool       `db:"-"`
}

// EditStateRecord is the opaque, round-tripped edit payload for one asset.
// The core never interprets Payload; it is forwarded verbatim to/from the
// editor and to the decoder's "render edited derivative" call.
type EditStateRecord struct {
	AssetID       string    `db:"asset_identifier"` // primary key
	SchemaVersion int       `db:"schema_version"`
	UpdatedAt     time.Time `db:"updated_at"`
	Payload       []byte    `db:"payload"` // opaque serialized payload (JSON, interpreted only by the decoder)
}

// FlagCounts summarizes flags across one folder's assets.
type FlagCounts struct {
	All      int
	Picks    int
	Rejects  int
	Unflagged int
}
