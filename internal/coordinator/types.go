// Package coordinator implements the catalog coordinator of §4.6: the
// single public entry point that binds together the scan pipeline, the
// persistence layer, the two derivative pipelines, and the in-memory
// asset projection. Every collaborator it depends on is expressed as an
// interface so tests (and the mock coordinator, see mock.go) can
// substitute fakes, per §9's "Polymorphic persistence" design note.
package coordinator

import (
	"context"

	"photocatalog/internal/model"
)

// FolderStore is the persistence-layer seam for folder records (§4.4).
type FolderStore interface {
	Upsert(ctx context.Context, f *model.FolderRecord) error
	GetByKey(ctx context.Context, key string) (*model.FolderRecord, error)
	GetByPath(ctx context.Context, path string) (*model.FolderRecord, error)
	ListRecent(ctx context.Context, limit int) ([]model.FolderSummary, error)
	Touch(ctx context.Context, key string) error
}

// AssetStore is the persistence-layer seam for asset records (§4.4).
type AssetStore interface {
	UpsertBatch(ctx context.Context, records []*model.AssetRecord) error
	ListByFolder(ctx context.Context, folderKey string) ([]model.AssetRecord, error)
	GetByID(ctx context.Context, id string) (*model.AssetRecord, error)
	SetFlag(ctx context.Context, id string, flag model.Flag) error
	SetFlagBatch(ctx context.Context, ids []string, flag model.Flag) error
	FlagCounts(ctx context.Context, folderKey string) (model.FlagCounts, error)
}

// EditStateStore is the persistence-layer seam for opaque edit payloads
// (§3 "Edit state record").
type EditStateStore interface {
	Upsert(ctx context.Context, rec *model.EditStateRecord) error
	Get(ctx context.Context, assetID string) (*model.EditStateRecord, error)
	Delete(ctx context.Context, assetID string) error
	DeleteBatch(ctx context.Context, assetIDs []string) error
}

// HandleStore is the separate key-value store for opaque directory
// handles (§4.4), deliberately distinct from FolderStore/AssetStore.
type HandleStore interface {
	Put(ctx context.Context, key string, handle string) error
	Get(ctx context.Context, key string) (handle string, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// ScanPipeline is the scanner collaborator contract (§4.5, §6). recursive
// controls whether the walk descends into subdirectories (default true).
type ScanPipeline interface {
	Scan(ctx context.Context, root string, recursive bool, emit func(model.ScanBatch) error, progress func(model.ScanProgress)) error
}

// PermissionStatus mirrors the File System Access API's three-valued
// permission result (§6 "Directory handle").
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionPrompt  PermissionStatus = "prompt"
	PermissionDenied  PermissionStatus = "denied"
)

// DirectoryHandle is the opaque directory capability collaborator of §6.
// In a browser this wraps a FileSystemDirectoryHandle; in this Go
// deployment it wraps a plain filesystem path (§9's explicitly sanctioned
// substitution for environments without such capabilities).
type DirectoryHandle interface {
	// Serialize returns the opaque string this handle persists as under
	// a handle-lookup key (§4.4). For LocalDirectoryHandle this is the
	// absolute path.
	Serialize() string
	// Path returns the absolute root path this handle addresses.
	Path() string
	// QueryPermission reports the current permission state without
	// prompting the user.
	QueryPermission(ctx context.Context) (PermissionStatus, error)
	// RequestPermission reports the permission state, prompting
	// interactively if the platform supports it (a local path handle has
	// no interactive prompt, so this degrades to QueryPermission).
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	// OpenFile returns a lazy bytes producer for the file at relPath
	// (slash-separated, relative to the handle's root), per §6's
	// "get_file" operation.
	OpenFile(relPath string) model.BytesProducer
}

// FolderPicker is the platform folder-picker collaborator of §6.
type FolderPicker interface {
	// Pick prompts the user (or, for a CLI picker, reads an argument) to
	// choose a directory. ErrPickerCancelled indicates a silent user
	// cancel, distinct from every other failure.
	Pick(ctx context.Context) (DirectoryHandle, error)
}

// Engine is the public contract both Coordinator and MockCoordinator
// satisfy, so internal/server can depend on an interface rather than a
// concrete type and swap in the demo coordinator with no code changes
// (§9 "Mock coordinator").
type Engine interface {
	Start(ctx context.Context)
	Close()
	SetCallbacks(cb Callbacks)
	State() model.CatalogState

	SelectFolder(ctx context.Context) (*model.FolderRecord, error)
	LoadFromPersistence(ctx context.Context) (bool, error)
	ListRecentFolders(ctx context.Context, limit int) ([]model.FolderSummary, error)
	LoadFolderByKey(ctx context.Context, key string) (bool, error)

	Scan(ctx context.Context, recursive bool) error
	Rescan(ctx context.Context, recursive bool) error
	CancelScan()

	GetAsset(id string) (model.Asset, bool)
	ListAssets() []model.Asset
	CurrentFolder() (model.FolderRecord, bool)
	FlagCounts(ctx context.Context) (model.FlagCounts, error)

	SetFlag(ctx context.Context, id string, flag model.Flag) error
	SetFlagBatch(ctx context.Context, ids []string, flag model.Flag) error

	RequestThumbnail(id string, priority model.Priority) error
	RequestPreview(id string, priority model.Priority) error
	UpdateThumbnailPriority(id string, priority model.Priority)
	UpdatePreviewPriority(id string, priority model.Priority)
	CancelThumbnail(id string)
	CancelPreview(id string)
	CancelAllThumbnails()
	CancelAllPreviews()
	CancelBackgroundThumbnails()
	CancelBackgroundPreviews()
	RegenerateThumbnail(id string, editState []byte, priority model.Priority) error
	RegeneratePreview(id string, editState []byte, priority model.Priority) error

	SaveEditState(ctx context.Context, id string, schemaVersion int, payload []byte) error
	LoadEditState(ctx context.Context, id string) (*model.EditStateRecord, error)

	Destroy()
}
