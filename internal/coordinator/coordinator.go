package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/decoder"
	"photocatalog/internal/model"
	"photocatalog/internal/pipeline"
)

// Callbacks are the four UI event hooks plus the two derivative-error
// hooks the coordinator forwards from its pipelines (§4.6, §6). Every
// field is nullable; SetCallbacks replaces the whole set atomically so an
// in-flight invocation always sees a single consistent snapshot (§9,
// "Dynamic callbacks").
type Callbacks struct {
	OnAssetsAdded    func(batch []model.Asset)
	OnAssetUpdated   func(asset model.Asset)
	OnThumbnailReady func(id, handle string)
	OnPreviewReady   func(id, handle string)
	OnThumbnailError func(id string, err error)
	OnPreviewError   func(id string, err error)
}

// Coordinator is the catalog coordinator of §4.6 — the single public
// entry point binding the scan pipeline, persistence layer, two
// derivative pipelines, and the in-memory asset projection together.
type Coordinator struct {
	folders    FolderStore
	assets     AssetStore
	editStates EditStateStore
	handles    HandleStore
	scanner    ScanPipeline
	picker     FolderPicker

	thumbnails *pipeline.Pipeline
	previews   *pipeline.Pipeline

	log *slog.Logger

	// mu serializes every state-changing operation so the coordinator's
	// public contract appears atomic to a caller (§5).
	mu            sync.Mutex
	state         model.CatalogState
	stateErr      string
	assetMap      map[string]model.Asset
	currentFolder *model.FolderRecord
	currentHandle DirectoryHandle
	scanCancel    context.CancelFunc
	progress      model.ScanProgress

	cbMu sync.RWMutex
	cb   Callbacks
}

// Deps bundles every collaborator seam the coordinator needs, per §9's
// "every collaborator is a replaceable seam" design note.
type Deps struct {
	Folders    FolderStore
	Assets     AssetStore
	EditStates EditStateStore
	Handles    HandleStore
	Scanner    ScanPipeline
	Picker     FolderPicker
	Thumbnails *pipeline.Pipeline
	Previews   *pipeline.Pipeline
	Log        *slog.Logger
}

// New constructs a Coordinator in the initializing state and wires the
// two derivative pipelines' callbacks to forward into it. Callers must
// call Start before issuing requests.
func New(d Deps) *Coordinator {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		folders:    d.Folders,
		assets:     d.Assets,
		editStates: d.EditStates,
		handles:    d.Handles,
		scanner:    d.Scanner,
		picker:     d.Picker,
		thumbnails: d.Thumbnails,
		previews:   d.Previews,
		log:        log,
		state:      model.StateInitializing,
		assetMap:   make(map[string]model.Asset),
	}
	c.thumbnails.SetCallbacks(c.thumbnailReady, c.thumbnailError)
	c.previews.SetCallbacks(c.previewReady, c.previewError)
	return c
}

// Start launches both derivative pipelines' worker pools and transitions
// the coordinator to ready. ctx governs the pipelines' worker lifetime;
// cancelling it (or calling Close) stops them.
func (c *Coordinator) Start(ctx context.Context) {
	c.thumbnails.Start(ctx)
	c.previews.Start(ctx)
	c.mu.Lock()
	c.state = model.StateReady
	c.mu.Unlock()
}

// Close stops both pipelines' worker pools. Distinct from Destroy: Close
// tears down the process-level goroutines, Destroy resets catalog state
// (§4.6) while keeping the coordinator usable for a new folder.
func (c *Coordinator) Close() {
	c.thumbnails.Stop()
	c.previews.Stop()
}

// SetCallbacks installs the UI event hooks. Safe to call at any time.
func (c *Coordinator) SetCallbacks(cb Callbacks) {
	c.cbMu.Lock()
	c.cb = cb
	c.cbMu.Unlock()
}

func (c *Coordinator) callbacks() Callbacks {
	c.cbMu.RLock()
	defer c.cbMu.RUnlock()
	return c.cb
}

// State reports the coordinator's current lifecycle state (§4.6).
func (c *Coordinator) State() model.CatalogState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) requireReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateReady {
		return catalogerr.New(catalogerr.Unknown, fmt.Sprintf("catalog is not ready (state=%s)", c.state))
	}
	return nil
}

// ---- Pipeline callback forwarding (§4.6 "Callback forwarding discipline") ----

// thumbnailReady always forwards to the UI's on_thumbnail_ready callback,
// known asset or not; the in-memory projection is only updated if the
// asset is still known, so a dropped asset is never resurrected.
func (c *Coordinator) thumbnailReady(id, handle string) {
	cb := c.callbacks()
	a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) {
		a.ThumbnailState = model.DerivativeReady
		a.ThumbnailHandle = handle
	})
	if cb.OnThumbnailReady != nil {
		cb.OnThumbnailReady(id, handle)
	}
	if ok && cb.OnAssetUpdated != nil {
		cb.OnAssetUpdated(a)
	}
}

func (c *Coordinator) previewReady(id, handle string) {
	cb := c.callbacks()
	if cb.OnPreviewReady != nil {
		cb.OnPreviewReady(id, handle)
	}
	if a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) {
		a.PreviewState = model.DerivativeReady
		a.PreviewHandle = handle
	}); ok && cb.OnAssetUpdated != nil {
		cb.OnAssetUpdated(a)
	}
}

func (c *Coordinator) thumbnailError(id string, code catalogerr.Code, err error) {
	cb := c.callbacks()
	if cb.OnThumbnailError != nil {
		cb.OnThumbnailError(id, catalogerr.Wrap(code, "thumbnail render failed", err))
	}
	if a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) {
		a.ThumbnailState = model.DerivativeError
	}); ok && cb.OnAssetUpdated != nil {
		cb.OnAssetUpdated(a)
	}
}

func (c *Coordinator) previewError(id string, code catalogerr.Code, err error) {
	cb := c.callbacks()
	if cb.OnPreviewError != nil {
		cb.OnPreviewError(id, catalogerr.Wrap(code, "preview render failed", err))
	}
	if a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) {
		a.PreviewState = model.DerivativeError
	}); ok && cb.OnAssetUpdated != nil {
		cb.OnAssetUpdated(a)
	}
}

// updateAssetIfKnown replaces the map entry for id with a clone carrying
// mutate's changes, never mutating the stored value in place (§3's
// "replaced, never mutated" invariant). ok is false if id is unknown.
func (c *Coordinator) updateAssetIfKnown(id string, mutate func(*model.Asset)) (model.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assetMap[id]
	if !ok {
		return model.Asset{}, false
	}
	clone := a.Clone()
	mutate(&clone)
	c.assetMap[id] = clone
	return clone, true
}

// ---- Reads ----

// GetAsset returns the live projection for id, if known.
func (c *Coordinator) GetAsset(id string) (model.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assetMap[id]
	return a, ok
}

// ListAssets returns every currently known asset. Order is unspecified.
func (c *Coordinator) ListAssets() []model.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Asset, 0, len(c.assetMap))
	for _, a := range c.assetMap {
		out = append(out, a)
	}
	return out
}

// CurrentFolder returns the folder currently loaded, if any.
func (c *Coordinator) CurrentFolder() (model.FolderRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentFolder == nil {
		return model.FolderRecord{}, false
	}
	return *c.currentFolder, true
}

// FlagCounts summarizes flags across the current folder's assets.
func (c *Coordinator) FlagCounts(ctx context.Context) (model.FlagCounts, error) {
	c.mu.Lock()
	folder := c.currentFolder
	c.mu.Unlock()
	if folder == nil {
		return model.FlagCounts{}, catalogerr.New(catalogerr.FolderNotFound, "no current folder")
	}
	counts, err := c.assets.FlagCounts(ctx, folder.InternalKey)
	if err != nil {
		return model.FlagCounts{}, catalogerr.Wrap(catalogerr.DatabaseError, "flag counts", err)
	}
	return counts, nil
}

// ---- Folder selection & session restore (§4.6) ----

// SelectFolder invokes the folder picker, persists the folder record
// (reusing one matched by path) and the opaque handle under a freshly
// generated lookup key, and sets it as the current folder. A user cancel
// returns (nil, nil) — silent, per §4.6.
func (c *Coordinator) SelectFolder(ctx context.Context) (*model.FolderRecord, error) {
	handle, err := c.picker.Pick(ctx)
	if err != nil {
		if err == ErrPickerCancelled {
			return nil, nil
		}
		return nil, catalogerr.Wrap(catalogerr.PermissionDenied, "folder picker failed", err)
	}

	rec, err := c.persistFolder(ctx, handle)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.currentFolder = rec
	c.currentHandle = handle
	c.assetMap = make(map[string]model.Asset)
	c.state = model.StateReady
	c.mu.Unlock()

	return rec, nil
}

// persistFolder upserts a folder record for handle's path, reusing an
// existing record's key when the path is already known, and persists the
// handle under a freshly generated handle-lookup key.
func (c *Coordinator) persistFolder(ctx context.Context, handle DirectoryHandle) (*model.FolderRecord, error) {
	path := handle.Path()
	existing, err := c.folders.GetByPath(ctx, path)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.DatabaseError, "look up folder by path", err)
	}

	rec := &model.FolderRecord{
		Path:            path,
		Name:            baseName(path),
		HandleLookupKey: uuid.NewString(),
	}
	if existing != nil {
		rec.InternalKey = existing.InternalKey
	} else {
		rec.InternalKey = folderKeyFor(path)
	}

	if err := c.handles.Put(ctx, rec.HandleLookupKey, handle.Serialize()); err != nil {
		// Handle persistence failure degrades the "re-open without
		// re-picking" feature but never breaks the catalog (§4.4).
		c.log.Warn("failed to persist directory handle", "error", err)
	}

	if err := c.folders.Upsert(ctx, rec); err != nil {
		return nil, catalogerr.Wrap(catalogerr.DatabaseError, "upsert folder", err)
	}
	return rec, nil
}

// folderKeyFor deterministically derives a folder's internal key from its
// path, so re-deriving it (rather than round-tripping through the store)
// is always consistent.
func folderKeyFor(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("photocatalog-folder:"+path)).String()
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// LoadFromPersistence restores the most recently opened folder without
// prompting the picker, per §4.6's "Load from persistence" operation. ok
// is false if there is no persisted folder, or its handle's permission is
// no longer granted.
func (c *Coordinator) LoadFromPersistence(ctx context.Context) (bool, error) {
	recent, err := c.folders.ListRecent(ctx, 1)
	if err != nil {
		return false, catalogerr.Wrap(catalogerr.DatabaseError, "list recent folders", err)
	}
	if len(recent) == 0 {
		return false, nil
	}

	folder, err := c.folders.GetByKey(ctx, recent[0].InternalKey)
	if err != nil {
		return false, catalogerr.Wrap(catalogerr.DatabaseError, "get folder by key", err)
	}
	if folder == nil {
		return false, nil
	}

	handle, granted, err := c.resolveHandle(ctx, folder, false)
	if err != nil {
		return false, err
	}
	if !granted {
		return false, nil
	}

	if err := c.loadFolderAssets(ctx, folder, handle); err != nil {
		return false, err
	}
	return true, nil
}

// LoadFolderByKey loads a specific previously-scanned folder, requesting
// permission interactively if it is not already granted, per §4.6.
func (c *Coordinator) LoadFolderByKey(ctx context.Context, key string) (bool, error) {
	folder, err := c.folders.GetByKey(ctx, key)
	if err != nil {
		return false, catalogerr.Wrap(catalogerr.DatabaseError, "get folder by key", err)
	}
	if folder == nil {
		return false, catalogerr.New(catalogerr.FolderNotFound, "folder not found")
	}

	handle, granted, err := c.resolveHandle(ctx, folder, true)
	if err != nil {
		return false, err
	}
	if !granted {
		return false, nil
	}

	if err := c.loadFolderAssets(ctx, folder, handle); err != nil {
		return false, err
	}
	if err := c.folders.Touch(ctx, folder.InternalKey); err != nil {
		c.log.Warn("failed to touch folder last-opened time", "error", err)
	}
	return true, nil
}

// resolveHandle loads a folder's persisted handle path and checks its
// permission, interactively if requested.
func (c *Coordinator) resolveHandle(ctx context.Context, folder *model.FolderRecord, interactive bool) (DirectoryHandle, bool, error) {
	path, found, err := c.handles.Get(ctx, folder.HandleLookupKey)
	if err != nil {
		return nil, false, catalogerr.Wrap(catalogerr.DatabaseError, "get directory handle", err)
	}
	if !found {
		return nil, false, nil
	}

	handle, err := NewLocalDirectoryHandle(path)
	if err != nil {
		return nil, false, catalogerr.Wrap(catalogerr.Unknown, "resolve directory handle", err)
	}

	var status PermissionStatus
	if interactive {
		status, err = handle.RequestPermission(ctx)
	} else {
		status, err = handle.QueryPermission(ctx)
	}
	if err != nil {
		return nil, false, catalogerr.Wrap(catalogerr.PermissionDenied, "query permission", err)
	}
	return handle, status == PermissionGranted, nil
}

// loadFolderAssets loads a folder's persisted assets into the in-memory
// projection wholesale, replacing whatever was there before, and fires a
// single on_assets_added for the full batch (§4.6).
func (c *Coordinator) loadFolderAssets(ctx context.Context, folder *model.FolderRecord, handle DirectoryHandle) error {
	records, err := c.assets.ListByFolder(ctx, folder.InternalKey)
	if err != nil {
		return catalogerr.Wrap(catalogerr.DatabaseError, "list assets by folder", err)
	}

	batch := make([]model.Asset, 0, len(records))
	assetMap := make(map[string]model.Asset, len(records))
	for _, rec := range records {
		a := rec.Project()
		assetMap[a.ID] = a
		batch = append(batch, a)
	}

	c.mu.Lock()
	c.currentFolder = folder
	c.currentHandle = handle
	c.assetMap = assetMap
	c.state = model.StateReady
	c.mu.Unlock()

	cb := c.callbacks()
	if cb.OnAssetsAdded != nil {
		cb.OnAssetsAdded(batch)
	}
	return nil
}

// ListRecentFolders returns a bounded list of recently opened folders,
// probing each one's handle accessibility concurrently (an errgroup fan
// out, mirroring the teacher's bounded-concurrency upload fan-out) since
// each probe is an independent filesystem stat with no shared state.
func (c *Coordinator) ListRecentFolders(ctx context.Context, limit int) ([]model.FolderSummary, error) {
	summaries, err := c.folders.ListRecent(ctx, limit)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.DatabaseError, "list recent folders", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range summaries {
		i := i
		g.Go(func() error {
			summaries[i].IsAccessible = c.probeAccessible(gctx, summaries[i].InternalKey)
			return nil
		})
	}
	_ = g.Wait() // probeAccessible never returns an error; this never fails

	return summaries, nil
}

// probeAccessible reports whether a folder's handle can still be opened
// without prompting. Any failure in the probe maps to false, per §4.6.
func (c *Coordinator) probeAccessible(ctx context.Context, folderKey string) bool {
	folder, err := c.folders.GetByKey(ctx, folderKey)
	if err != nil || folder == nil {
		return false
	}
	_, granted, err := c.resolveHandle(ctx, folder, false)
	if err != nil {
		return false
	}
	return granted
}

// ---- Scanning (§4.6 "Scan current folder") ----

// Scan walks the current folder, upserting new and changed assets and
// projecting them into the in-memory map in batches. Cancellation
// returns to ready silently; any other failure transitions to error and
// is rethrown.
func (c *Coordinator) Scan(ctx context.Context, recursive bool) error {
	c.mu.Lock()
	if c.currentFolder == nil {
		c.mu.Unlock()
		return catalogerr.New(catalogerr.FolderNotFound, "no current folder")
	}
	if c.state == model.StateScanning {
		c.mu.Unlock()
		return catalogerr.New(catalogerr.Unknown, "scan already in progress")
	}
	folder := c.currentFolder
	handle := c.currentHandle
	scanCtx, cancel := context.WithCancel(ctx)
	c.scanCancel = cancel
	c.state = model.StateScanning
	c.progress = model.ScanProgress{}
	c.mu.Unlock()

	existing, err := c.assets.ListByFolder(ctx, folder.InternalKey)
	if err != nil {
		c.setErrorState(err)
		return catalogerr.Wrap(catalogerr.DatabaseError, "list existing assets", err)
	}
	byPath := make(map[string]model.AssetRecord, len(existing))
	for _, rec := range existing {
		byPath[rec.Path] = rec
	}

	scanErr := c.scanner.Scan(scanCtx, handle.Path(), recursive, func(batch model.ScanBatch) error {
		return c.applyScanBatch(scanCtx, folder, byPath, batch)
	}, func(p model.ScanProgress) {
		c.mu.Lock()
		c.progress = p
		c.mu.Unlock()
	})

	c.mu.Lock()
	c.scanCancel = nil
	c.mu.Unlock()

	if scanErr != nil {
		if catalogerr.Is(scanErr, catalogerr.ScanCancelled) {
			c.mu.Lock()
			c.state = model.StateReady
			c.mu.Unlock()
			return nil
		}
		c.setErrorState(scanErr)
		return scanErr
	}

	if err := c.folders.Touch(ctx, folder.InternalKey); err != nil {
		c.log.Warn("failed to update folder last-scan time", "error", err)
	}
	c.mu.Lock()
	c.state = model.StateReady
	c.mu.Unlock()
	return nil
}

// Rescan is identical to Scan; the path-keyed upsert in applyScanBatch
// already makes repeated scans of an unchanged folder idempotent.
func (c *Coordinator) Rescan(ctx context.Context, recursive bool) error {
	return c.Scan(ctx, recursive)
}

// CancelScan fires the in-progress scan's cancellation token. Safe to
// call when no scan is active.
func (c *Coordinator) CancelScan() {
	c.mu.Lock()
	cancel := c.scanCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Coordinator) setErrorState(err error) {
	c.mu.Lock()
	c.state = model.StateError
	c.stateErr = err.Error()
	c.mu.Unlock()
}

// applyScanBatch upserts one batch of scanned files against the known
// records for this folder, deciding insert vs. update by path, and
// projects the delta into the in-memory map before emitting
// on_assets_added with just that delta (§4.6).
func (c *Coordinator) applyScanBatch(ctx context.Context, folder *model.FolderRecord, byPath map[string]model.AssetRecord, batch model.ScanBatch) error {
	var toUpsert []*model.AssetRecord
	for _, rec := range batch {
		if existing, ok := byPath[rec.Path]; ok {
			if existing.ModifiedAt.Equal(rec.ModifiedAt) {
				continue // unchanged: no write, no event
			}
			updated := existing
			updated.ByteSize = rec.ByteSize
			updated.ModifiedAt = rec.ModifiedAt
			toUpsert = append(toUpsert, &updated)
			continue
		}

		newRec := &model.AssetRecord{
			ID:         uuid.NewString(),
			FolderKey:  folder.InternalKey,
			Path:       rec.Path,
			Filename:   rec.Filename,
			Ext:        rec.Ext,
			Flag:       model.FlagNone,
			ModifiedAt: rec.ModifiedAt,
			ByteSize:   rec.ByteSize,
			CaptureAt:  extractCaptureDate(rec),
		}
		toUpsert = append(toUpsert, newRec)
	}

	if len(toUpsert) == 0 {
		return nil
	}

	if err := c.assets.UpsertBatch(ctx, toUpsert); err != nil {
		return catalogerr.Wrap(catalogerr.DatabaseError, "upsert scanned assets", err)
	}

	delta := make([]model.Asset, 0, len(toUpsert))
	c.mu.Lock()
	for _, rec := range toUpsert {
		byPath[rec.Path] = *rec
		a := rec.Project()
		if existingLive, ok := c.assetMap[a.ID]; ok {
			// Carry forward derivative state across a metadata-only
			// update so a re-scan never resets "ready" thumbnails.
			a.ThumbnailState = existingLive.ThumbnailState
			a.ThumbnailHandle = existingLive.ThumbnailHandle
			a.PreviewState = existingLive.PreviewState
			a.PreviewHandle = existingLive.PreviewHandle
		}
		c.assetMap[a.ID] = a
		delta = append(delta, a)
	}
	c.progress.AssetsAdded += len(delta)
	c.mu.Unlock()

	cb := c.callbacks()
	if cb.OnAssetsAdded != nil {
		cb.OnAssetsAdded(delta)
	}
	return nil
}

// extractCaptureDate best-effort extracts a JPEG's EXIF capture date
// during the scan's per-file pass (§9's open question, supplemented per
// SPEC_FULL.md — original_source/ is empty for this spec, so this
// follows the "silence is an invitation" rule rather than a concrete
// original behavior). Absent on any failure or for non-JPEG containers
// (raw .arw), matching spec's documented fallback.
func extractCaptureDate(rec model.ScanRecord) *time.Time {
	if rec.Ext != "jpg" && rec.Ext != "jpeg" {
		return nil
	}
	data, err := rec.Bytes()
	if err != nil {
		return nil
	}
	t, ok := decoder.ExtractCaptureTime(data)
	if !ok {
		return nil
	}
	return &t
}

// ---- Flags (§4.6 "Set flag") ----

// SetFlag updates a single asset's flag. A no-op if the asset is unknown.
func (c *Coordinator) SetFlag(ctx context.Context, id string, flag model.Flag) error {
	c.mu.Lock()
	_, known := c.assetMap[id]
	c.mu.Unlock()
	if !known {
		return nil
	}

	if err := c.assets.SetFlag(ctx, id, flag); err != nil {
		return catalogerr.Wrap(catalogerr.DatabaseError, "set flag", err)
	}

	a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) { a.Flag = flag })
	if ok {
		if cb := c.callbacks(); cb.OnAssetUpdated != nil {
			cb.OnAssetUpdated(a)
		}
	}
	return nil
}

// SetFlagBatch updates the flag for every known id in one transaction,
// emitting on_asset_updated once per changed asset (§4.6, §8).
func (c *Coordinator) SetFlagBatch(ctx context.Context, ids []string, flag model.Flag) error {
	c.mu.Lock()
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.assetMap[id]; ok {
			known = append(known, id)
		}
	}
	c.mu.Unlock()

	if len(known) == 0 {
		return nil
	}

	if err := c.assets.SetFlagBatch(ctx, known, flag); err != nil {
		return catalogerr.Wrap(catalogerr.DatabaseError, "batch set flag", err)
	}

	cb := c.callbacks()
	for _, id := range known {
		if a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) { a.Flag = flag }); ok && cb.OnAssetUpdated != nil {
			cb.OnAssetUpdated(a)
		}
	}
	return nil
}

// ---- Derivative requests (§4.6) ----

func (c *Coordinator) bytesProducerFor(id string) (model.BytesProducer, error) {
	c.mu.Lock()
	a, known := c.assetMap[id]
	handle := c.currentHandle
	c.mu.Unlock()
	if !known {
		return nil, catalogerr.New(catalogerr.FolderNotFound, "unknown asset")
	}
	path := a.Path
	return func() ([]byte, error) {
		// handle is the one captured at request time, not re-read here;
		// if no folder handle was current then, fail with FOLDER_NOT_FOUND.
		if handle == nil {
			return nil, catalogerr.New(catalogerr.FolderNotFound, "folder handle no longer available")
		}
		return handle.OpenFile(path)()
	}, nil
}

// transitionPendingToLoading moves an asset's derivative state from
// pending to loading and emits on_asset_updated, per §4.6's "Transitions
// the in-memory asset state from pending -> loading when appropriate".
func (c *Coordinator) transitionPendingToLoading(id string, kind string) {
	a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) {
		if kind == "thumbnail" && a.ThumbnailState == model.DerivativePending {
			a.ThumbnailState = model.DerivativeLoading
		}
		if kind == "preview" && a.PreviewState == model.DerivativePending {
			a.PreviewState = model.DerivativeLoading
		}
	})
	if ok {
		if cb := c.callbacks(); cb.OnAssetUpdated != nil {
			cb.OnAssetUpdated(a)
		}
	}
}

// RequestThumbnail forwards a thumbnail render request to the thumbnail
// pipeline at the given priority.
func (c *Coordinator) RequestThumbnail(id string, priority model.Priority) error {
	producer, err := c.bytesProducerFor(id)
	if err != nil {
		return err
	}
	c.transitionPendingToLoading(id, "thumbnail")
	c.thumbnails.Request(id, priority, producer)
	return nil
}

// RequestPreview forwards a preview render request to the preview
// pipeline at the given priority.
func (c *Coordinator) RequestPreview(id string, priority model.Priority) error {
	producer, err := c.bytesProducerFor(id)
	if err != nil {
		return err
	}
	c.transitionPendingToLoading(id, "preview")
	c.previews.Request(id, priority, producer)
	return nil
}

func (c *Coordinator) UpdateThumbnailPriority(id string, priority model.Priority) {
	c.thumbnails.UpdatePriority(id, priority)
}

func (c *Coordinator) UpdatePreviewPriority(id string, priority model.Priority) {
	c.previews.UpdatePriority(id, priority)
}

func (c *Coordinator) CancelThumbnail(id string) { c.thumbnails.Cancel(id) }
func (c *Coordinator) CancelPreview(id string)   { c.previews.Cancel(id) }

func (c *Coordinator) CancelAllThumbnails() { c.thumbnails.CancelAll() }
func (c *Coordinator) CancelAllPreviews()   { c.previews.CancelAll() }

func (c *Coordinator) CancelBackgroundThumbnails() { c.thumbnails.CancelBackground() }
func (c *Coordinator) CancelBackgroundPreviews()   { c.previews.CancelBackground() }

// RegenerateThumbnail transitions the asset's thumbnail state to loading,
// emits on_asset_updated, and asks the thumbnail pipeline to regenerate
// with edits (§4.6, §8 scenario 5).
func (c *Coordinator) RegenerateThumbnail(id string, editState []byte, priority model.Priority) error {
	producer, err := c.bytesProducerFor(id)
	if err != nil {
		return err
	}
	a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) { a.ThumbnailState = model.DerivativeLoading })
	if ok {
		if cb := c.callbacks(); cb.OnAssetUpdated != nil {
			cb.OnAssetUpdated(a)
		}
	}
	c.thumbnails.Regenerate(id, priority, producer, editState)
	return nil
}

// RegeneratePreview is RegenerateThumbnail's preview-pipeline twin.
func (c *Coordinator) RegeneratePreview(id string, editState []byte, priority model.Priority) error {
	producer, err := c.bytesProducerFor(id)
	if err != nil {
		return err
	}
	a, ok := c.updateAssetIfKnown(id, func(a *model.Asset) { a.PreviewState = model.DerivativeLoading })
	if ok {
		if cb := c.callbacks(); cb.OnAssetUpdated != nil {
			cb.OnAssetUpdated(a)
		}
	}
	c.previews.Regenerate(id, priority, producer, editState)
	return nil
}

// ---- Edit state round trip (§3 "Edit state record") ----

// SaveEditState upserts the opaque edit payload for an asset.
func (c *Coordinator) SaveEditState(ctx context.Context, id string, schemaVersion int, payload []byte) error {
	rec := &model.EditStateRecord{AssetID: id, SchemaVersion: schemaVersion, Payload: payload}
	if err := c.editStates.Upsert(ctx, rec); err != nil {
		return catalogerr.Wrap(catalogerr.DatabaseError, "save edit state", err)
	}
	return nil
}

// LoadEditState retrieves the opaque edit payload for an asset, nil if
// none has been saved.
func (c *Coordinator) LoadEditState(ctx context.Context, id string) (*model.EditStateRecord, error) {
	rec, err := c.editStates.Get(ctx, id)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.DatabaseError, "load edit state", err)
	}
	return rec, nil
}

// ---- Teardown (§4.6 "Destroy") ----

// Destroy cancels any active scan, cancels all pending pipeline work,
// clears both caches' memory tiers, clears the in-memory asset map and
// current folder, and returns to initializing. Idempotent.
func (c *Coordinator) Destroy() {
	c.CancelScan()
	c.thumbnails.CancelAll()
	c.previews.CancelAll()
	c.thumbnails.ClearCacheMemory()
	c.previews.ClearCacheMemory()

	c.mu.Lock()
	c.assetMap = make(map[string]model.Asset)
	c.currentFolder = nil
	c.currentHandle = nil
	c.state = model.StateInitializing
	c.mu.Unlock()
}
