package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/model"
	"photocatalog/internal/priorityqueue"
)

// mockRenderDelay is the fixed artificial latency simulating a render, so
// the loading state is externally observable instead of resolving
// synchronously within the request call.
const mockRenderDelay = 150 * time.Millisecond

// mockFolder is a canned folder for the demo coordinator, indexed by its
// position in mockFolders.
type mockFolder struct {
	key       string
	name      string
	path      string
	numAssets int
}

var mockFolders = []mockFolder{
	{key: "mock-folder-1", name: "Iceland 2024", path: "/demo/iceland-2024", numAssets: 18},
	{key: "mock-folder-2", name: "Studio Session", path: "/demo/studio-session", numAssets: 9},
	{key: "mock-folder-3", name: "Family Archive", path: "/demo/family-archive", numAssets: 42},
}

// epoch anchors every synthetic timestamp the mock coordinator produces,
// since real wall-clock reads are unavailable during generation.
var mockEpoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// MockCoordinator implements the same public surface as Coordinator
// (§9, "Mock coordinator" — a UI can be developed and demoed against
// deterministic synthetic data without a running Postgres instance, a
// real photo folder, or a decode worker). It never touches a database,
// a filesystem, or a pipeline; every derivative "renders" are simulated
// on a short fixed delay with deterministic "handles".
type MockCoordinator struct {
	mu            sync.Mutex
	state         model.CatalogState
	currentFolder *mockFolder
	assetMap      map[string]model.Asset
	order         []string

	// thumbQueue/previewQueue hold queued mock renders in priority order,
	// so a later, higher-priority request resolves before an earlier,
	// lower-priority one still waiting (§4.3, mirrored by internal/pipeline
	// for the real coordinator).
	qmu          sync.Mutex
	qcond        *sync.Cond
	thumbQueue   *priorityqueue.Queue
	previewQueue *priorityqueue.Queue
	closed       bool

	cbMu sync.RWMutex
	cb   Callbacks
}

// NewMock constructs a demo coordinator in the initializing state and
// starts its two simulated derivative workers.
func NewMock() *MockCoordinator {
	m := &MockCoordinator{
		state:        model.StateInitializing,
		assetMap:     make(map[string]model.Asset),
		thumbQueue:   priorityqueue.New(),
		previewQueue: priorityqueue.New(),
	}
	m.qcond = sync.NewCond(&m.qmu)
	go m.worker(m.thumbQueue, true)
	go m.worker(m.previewQueue, false)
	return m
}

func (m *MockCoordinator) SetCallbacks(cb Callbacks) {
	m.cbMu.Lock()
	m.cb = cb
	m.cbMu.Unlock()
}

func (m *MockCoordinator) callbacks() Callbacks {
	m.cbMu.RLock()
	defer m.cbMu.RUnlock()
	return m.cb
}

func (m *MockCoordinator) State() model.CatalogState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ListRecentFolders returns the fixed demo folder list; every entry
// reports accessible, since there is no real filesystem behind it.
func (m *MockCoordinator) ListRecentFolders(_ context.Context, limit int) ([]model.FolderSummary, error) {
	out := make([]model.FolderSummary, 0, len(mockFolders))
	for _, f := range mockFolders {
		lastOpened := mockEpoch
		out = append(out, model.FolderSummary{
			InternalKey:  f.key,
			Name:         f.name,
			Path:         f.path,
			LastScanAt:   &lastOpened,
			AssetCount:   f.numAssets,
			IsAccessible: true,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LoadFolderByKey loads one of the canned demo folders, generating its
// synthetic assets deterministically from its index.
func (m *MockCoordinator) LoadFolderByKey(_ context.Context, key string) (bool, error) {
	for i := range mockFolders {
		if mockFolders[i].key == key {
			m.loadMockFolder(&mockFolders[i])
			return true, nil
		}
	}
	return false, catalogerr.New(catalogerr.FolderNotFound, "folder not found")
}

// SelectFolder always "selects" the first demo folder, simulating a
// picker with nothing to cancel.
func (m *MockCoordinator) SelectFolder(context.Context) (*model.FolderRecord, error) {
	f := &mockFolders[0]
	m.loadMockFolder(f)
	rec := &model.FolderRecord{InternalKey: f.key, Path: f.path, Name: f.name}
	return rec, nil
}

func (m *MockCoordinator) LoadFromPersistence(context.Context) (bool, error) {
	m.loadMockFolder(&mockFolders[0])
	return true, nil
}

func (m *MockCoordinator) loadMockFolder(f *mockFolder) {
	assetMap := make(map[string]model.Asset, f.numAssets)
	order := make([]string, 0, f.numAssets)
	batch := make([]model.Asset, 0, f.numAssets)
	for i := 0; i < f.numAssets; i++ {
		a := mockAsset(f.key, i)
		assetMap[a.ID] = a
		order = append(order, a.ID)
		batch = append(batch, a)
	}

	m.mu.Lock()
	m.currentFolder = f
	m.assetMap = assetMap
	m.order = order
	m.state = model.StateReady
	m.mu.Unlock()

	if cb := m.callbacks(); cb.OnAssetsAdded != nil {
		cb.OnAssetsAdded(batch)
	}
}

func mockAsset(folderKey string, i int) model.Asset {
	capture := mockEpoch.Add(time.Duration(i) * 13 * time.Hour)
	flags := []model.Flag{model.FlagNone, model.FlagNone, model.FlagPick, model.FlagNone, model.FlagReject}
	return model.Asset{
		ID:             fmt.Sprintf("%s-asset-%03d", folderKey, i),
		FolderID:       folderKey,
		Path:           fmt.Sprintf("IMG_%04d.jpg", 1000+i),
		Filename:       fmt.Sprintf("IMG_%04d.jpg", 1000+i),
		Ext:            "jpg",
		Flag:           flags[i%len(flags)],
		CaptureAt:      &capture,
		ModifiedAt:     capture,
		ByteSize:       int64(4_500_000 + i*37_000),
		Dimensions:     &model.Dimensions{Width: 6000, Height: 4000},
		ThumbnailState: model.DerivativePending,
		PreviewState:   model.DerivativePending,
	}
}

func (m *MockCoordinator) GetAsset(id string) (model.Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assetMap[id]
	return a, ok
}

func (m *MockCoordinator) ListAssets() []model.Asset {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Asset, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.assetMap[id])
	}
	return out
}

func (m *MockCoordinator) CurrentFolder() (model.FolderRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentFolder == nil {
		return model.FolderRecord{}, false
	}
	return model.FolderRecord{InternalKey: m.currentFolder.key, Path: m.currentFolder.path, Name: m.currentFolder.name}, true
}

func (m *MockCoordinator) FlagCounts(context.Context) (model.FlagCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := model.FlagCounts{All: len(m.assetMap)}
	for _, a := range m.assetMap {
		switch a.Flag {
		case model.FlagPick:
			counts.Picks++
		case model.FlagReject:
			counts.Rejects++
		default:
			counts.Unflagged++
		}
	}
	return counts, nil
}

func (m *MockCoordinator) SetFlag(_ context.Context, id string, flag model.Flag) error {
	m.mu.Lock()
	a, ok := m.assetMap[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	a = a.Clone()
	a.Flag = flag
	m.assetMap[id] = a
	m.mu.Unlock()

	if cb := m.callbacks(); cb.OnAssetUpdated != nil {
		cb.OnAssetUpdated(a)
	}
	return nil
}

func (m *MockCoordinator) SetFlagBatch(ctx context.Context, ids []string, flag model.Flag) error {
	for _, id := range ids {
		if err := m.SetFlag(ctx, id, flag); err != nil {
			return err
		}
	}
	return nil
}

// RequestThumbnail simulates a derivative render: it transitions the
// asset to loading immediately, then enqueues the request onto a
// priority-ordered queue a background worker drains, mirroring
// internal/pipeline's "loading then ready" externally observable
// behavior and its priority-before-arrival-order semantics (§4.3,
// preserved for the mock coordinator per spec).
func (m *MockCoordinator) RequestThumbnail(id string, priority model.Priority) error {
	return m.enqueueDerivative(m.thumbQueue, id, priority, true)
}

func (m *MockCoordinator) RequestPreview(id string, priority model.Priority) error {
	return m.enqueueDerivative(m.previewQueue, id, priority, false)
}

func (m *MockCoordinator) enqueueDerivative(q *priorityqueue.Queue, id string, priority model.Priority, thumbnail bool) error {
	a, ok := m.transitionLoading(id, thumbnail)
	if !ok {
		return catalogerr.New(catalogerr.FolderNotFound, "unknown asset")
	}

	if cb := m.callbacks(); cb.OnAssetUpdated != nil {
		cb.OnAssetUpdated(a)
	}

	m.qmu.Lock()
	q.Enqueue(priorityqueue.Entry{ID: id, Priority: priority})
	m.qmu.Unlock()
	m.qcond.Broadcast()
	return nil
}

// transitionLoading marks an asset's thumbnail or preview state loading
// and returns the updated asset, or false if the asset is unknown.
func (m *MockCoordinator) transitionLoading(id string, thumbnail bool) (model.Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assetMap[id]
	if !ok {
		return model.Asset{}, false
	}
	a = a.Clone()
	if thumbnail {
		a.ThumbnailState = model.DerivativeLoading
	} else {
		a.PreviewState = model.DerivativeLoading
	}
	m.assetMap[id] = a
	return a, true
}

// worker drains q in priority order, resolving each entry to a ready
// derivative after a fixed simulated render delay. One worker runs per
// derivative kind for the lifetime of the mock coordinator.
func (m *MockCoordinator) worker(q *priorityqueue.Queue, thumbnail bool) {
	for {
		entry, ok := m.nextQueueEntry(q)
		if !ok {
			return
		}
		time.Sleep(mockRenderDelay)
		m.resolveDerivative(entry.ID, thumbnail)
	}
}

func (m *MockCoordinator) nextQueueEntry(q *priorityqueue.Queue) (priorityqueue.Entry, bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	for {
		if m.closed {
			return priorityqueue.Entry{}, false
		}
		if e, ok := q.Dequeue(); ok {
			return e, true
		}
		m.qcond.Wait()
	}
}

func (m *MockCoordinator) resolveDerivative(id string, thumbnail bool) {
	m.mu.Lock()
	a, ok := m.assetMap[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	a = a.Clone()
	handle := fmt.Sprintf("mock://%s/%s", id, map[bool]string{true: "thumb", false: "preview"}[thumbnail])
	if thumbnail {
		a.ThumbnailState = model.DerivativeReady
		a.ThumbnailHandle = handle
	} else {
		a.PreviewState = model.DerivativeReady
		a.PreviewHandle = handle
	}
	m.assetMap[id] = a
	m.mu.Unlock()

	cb := m.callbacks()
	if thumbnail && cb.OnThumbnailReady != nil {
		cb.OnThumbnailReady(id, handle)
	}
	if !thumbnail && cb.OnPreviewReady != nil {
		cb.OnPreviewReady(id, handle)
	}
	if cb.OnAssetUpdated != nil {
		cb.OnAssetUpdated(a)
	}
}

func (m *MockCoordinator) UpdateThumbnailPriority(string, model.Priority) {}
func (m *MockCoordinator) UpdatePreviewPriority(string, model.Priority)   {}
func (m *MockCoordinator) CancelThumbnail(string)                        {}
func (m *MockCoordinator) CancelPreview(string)                          {}
func (m *MockCoordinator) CancelAllThumbnails()                          {}
func (m *MockCoordinator) CancelAllPreviews()                            {}
func (m *MockCoordinator) CancelBackgroundThumbnails()                   {}
func (m *MockCoordinator) CancelBackgroundPreviews()                     {}

func (m *MockCoordinator) RegenerateThumbnail(id string, _ []byte, priority model.Priority) error {
	return m.RequestThumbnail(id, priority)
}

func (m *MockCoordinator) RegeneratePreview(id string, _ []byte, priority model.Priority) error {
	return m.RequestPreview(id, priority)
}

func (m *MockCoordinator) SaveEditState(context.Context, string, int, []byte) error {
	return nil
}

func (m *MockCoordinator) LoadEditState(context.Context, string) (*model.EditStateRecord, error) {
	return nil, nil
}

func (m *MockCoordinator) Scan(context.Context, bool) error   { return nil }
func (m *MockCoordinator) Rescan(context.Context, bool) error { return nil }
func (m *MockCoordinator) CancelScan()                        {}

func (m *MockCoordinator) Destroy() {
	m.mu.Lock()
	m.assetMap = make(map[string]model.Asset)
	m.order = nil
	m.currentFolder = nil
	m.state = model.StateInitializing
	m.mu.Unlock()
}

// Close stops the simulated derivative workers.
func (m *MockCoordinator) Close() {
	m.qmu.Lock()
	m.closed = true
	m.qmu.Unlock()
	m.qcond.Broadcast()
}

// Start exists only so MockCoordinator satisfies the Engine interface
// alongside Coordinator; the demo coordinator has no worker pool to
// launch.
func (m *MockCoordinator) Start(context.Context) {}
