package coordinator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photocatalog/internal/decoder"
	"photocatalog/internal/derivativecache"
	"photocatalog/internal/model"
	"photocatalog/internal/pipeline"
)

// ---- in-memory fakes for every collaborator seam ----

type fakeFolderStore struct {
	mu      sync.Mutex
	byKey   map[string]*model.FolderRecord
	byPath  map[string]*model.FolderRecord
	touched map[string]int
}

func newFakeFolderStore() *fakeFolderStore {
	return &fakeFolderStore{
		byKey:   make(map[string]*model.FolderRecord),
		byPath:  make(map[string]*model.FolderRecord),
		touched: make(map[string]int),
	}
}

func (f *fakeFolderStore) Upsert(_ context.Context, rec *model.FolderRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *rec
	f.byKey[rec.InternalKey] = &clone
	f.byPath[rec.Path] = &clone
	return nil
}

func (f *fakeFolderStore) GetByKey(_ context.Context, key string) (*model.FolderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byKey[key], nil
}

func (f *fakeFolderStore) GetByPath(_ context.Context, path string) (*model.FolderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byPath[path], nil
}

func (f *fakeFolderStore) ListRecent(_ context.Context, limit int) ([]model.FolderSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.FolderSummary
	for _, rec := range f.byKey {
		out = append(out, model.FolderSummary{InternalKey: rec.InternalKey, Name: rec.Name, Path: rec.Path})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFolderStore) Touch(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[key]++
	return nil
}

type fakeAssetStore struct {
	mu      sync.Mutex
	records map[string]model.AssetRecord // keyed by asset id
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{records: make(map[string]model.AssetRecord)}
}

func (a *fakeAssetStore) UpsertBatch(_ context.Context, recs []*model.AssetRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range recs {
		a.records[r.ID] = *r
	}
	return nil
}

func (a *fakeAssetStore) ListByFolder(_ context.Context, folderKey string) ([]model.AssetRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.AssetRecord
	for _, r := range a.records {
		if r.FolderKey == folderKey {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *fakeAssetStore) GetByID(_ context.Context, id string) (*model.AssetRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.records[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (a *fakeAssetStore) SetFlag(_ context.Context, id string, flag model.Flag) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.records[id]; ok {
		r.Flag = flag
		a.records[id] = r
	}
	return nil
}

func (a *fakeAssetStore) SetFlagBatch(_ context.Context, ids []string, flag model.Flag) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if r, ok := a.records[id]; ok {
			r.Flag = flag
			a.records[id] = r
		}
	}
	return nil
}

func (a *fakeAssetStore) FlagCounts(_ context.Context, folderKey string) (model.FlagCounts, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var counts model.FlagCounts
	for _, r := range a.records {
		if r.FolderKey != folderKey {
			continue
		}
		counts.All++
		switch r.Flag {
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

type fakeEditStateStore struct {
	mu   sync.Mutex
	data map[string]model.EditStateRecord
}

func newFakeEditStateStore() *fakeEditStateStore {
	return &fakeEditStateStore{data: make(map[string]model.EditStateRecord)}
}

func (e *fakeEditStateStore) Upsert(_ context.Context, rec *model.EditStateRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[rec.AssetID] = *rec
	return nil
}

func (e *fakeEditStateStore) Get(_ context.Context, assetID string) (*model.EditStateRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.data[assetID]; ok {
		return &r, nil
	}
	return nil, nil
}

func (e *fakeEditStateStore) Delete(_ context.Context, assetID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.data, assetID)
	return nil
}

func (e *fakeEditStateStore) DeleteBatch(_ context.Context, ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.data, id)
	}
	return nil
}

type fakeHandleStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeHandleStore() *fakeHandleStore {
	return &fakeHandleStore{data: make(map[string]string)}
}

func (h *fakeHandleStore) Put(_ context.Context, key, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data[key] = path
	return nil
}

func (h *fakeHandleStore) Get(_ context.Context, key string) (string, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.data[key]
	return v, ok, nil
}

func (h *fakeHandleStore) Delete(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.data, key)
	return nil
}

// fakeScanner emits one fixed batch and ignores root, so tests don't
// depend on any real filesystem layout.
type fakeScanner struct {
	batch model.ScanBatch
}

func (s *fakeScanner) Scan(_ context.Context, _ string, _ bool, emit func(model.ScanBatch) error, progress func(model.ScanProgress)) error {
	if err := emit(s.batch); err != nil {
		return err
	}
	progress(model.ScanProgress{AssetsAdded: len(s.batch)})
	return nil
}

// fakeHandle is a DirectoryHandle over a fixed, synthetic path with no
// real filesystem access; fakePicker always resolves to one.
type fakeHandle struct {
	path string
}

func (h *fakeHandle) Serialize() string { return h.path }
func (h *fakeHandle) Path() string      { return h.path }
func (h *fakeHandle) QueryPermission(context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}
func (h *fakeHandle) RequestPermission(context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}
func (h *fakeHandle) OpenFile(relPath string) model.BytesProducer {
	return func() ([]byte, error) { return fixtureJPEG, nil }
}

// fixtureJPEG is a minimal valid JPEG computed once at package init, so
// fakeHandle.OpenFile can hand the real decoder real bytes.
var fixtureJPEG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

type fakePicker struct {
	handle *fakeHandle
}

func (p *fakePicker) Pick(context.Context) (DirectoryHandle, error) {
	return p.handle, nil
}

// ---- test harness ----

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeAssetStore, *fakeScanner) {
	t.Helper()
	folders := newFakeFolderStore()
	assets := newFakeAssetStore()
	editStates := newFakeEditStateStore()
	handles := newFakeHandleStore()
	scan := &fakeScanner{}
	picker := &fakePicker{handle: &fakeHandle{path: "/demo/folder"}}

	dec := decoder.NewLocalDecoder()
	thumbCache := derivativecache.New("thumbnail", 10, derivativecache.NewDiskBlobStore(t.TempDir(), "thumb"), nil)
	previewCache := derivativecache.New("preview", 10, derivativecache.NewDiskBlobStore(t.TempDir(), "preview"), nil)
	thumbPipeline := pipeline.New("thumbnail", decoder.TargetSize{Kind: "thumbnail", LongEdge: 64}, dec, thumbCache, 2, nil)
	previewPipeline := pipeline.New("preview", decoder.TargetSize{Kind: "preview", LongEdge: 128}, dec, previewCache, 2, nil)

	c := New(Deps{
		Folders:    folders,
		Assets:     assets,
		EditStates: editStates,
		Handles:    handles,
		Scanner:    scan,
		Picker:     picker,
		Thumbnails: thumbPipeline,
		Previews:   previewPipeline,
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	t.Cleanup(func() {
		cancel()
		c.Close()
	})

	return c, assets, scan
}

func TestSelectFolderPersistsAndSetsCurrent(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	folder, err := c.SelectFolder(context.Background())
	require.NoError(t, err)
	require.NotNil(t, folder)
	require.Equal(t, "/demo/folder", folder.Path)

	current, ok := c.CurrentFolder()
	require.True(t, ok)
	require.Equal(t, folder.InternalKey, current.InternalKey)
	require.Equal(t, model.StateReady, c.State())
}

func TestScanIngestsAssetsAndFiresCallback(t *testing.T) {
	c, _, scan := newTestCoordinator(t)
	scan.batch = model.ScanBatch{
		{Path: "a.jpg", Filename: "a.jpg", Ext: "jpg", ByteSize: 100, ModifiedAt: time.Unix(1000, 0),
			Bytes: func() ([]byte, error) { return []byte{}, nil }},
		{Path: "b.jpg", Filename: "b.jpg", Ext: "jpg", ByteSize: 200, ModifiedAt: time.Unix(2000, 0),
			Bytes: func() ([]byte, error) { return []byte{}, nil }},
	}

	var added []model.Asset
	var mu sync.Mutex
	c.SetCallbacks(Callbacks{
		OnAssetsAdded: func(batch []model.Asset) {
			mu.Lock()
			added = append(added, batch...)
			mu.Unlock()
		},
	})

	_, err := c.SelectFolder(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Scan(context.Background(), true))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, added, 2)
	require.Len(t, c.ListAssets(), 2)
	require.Equal(t, model.StateReady, c.State())
}

func TestRescanIsIdempotentForUnchangedFiles(t *testing.T) {
	c, assets, scan := newTestCoordinator(t)
	scan.batch = model.ScanBatch{
		{Path: "a.jpg", Filename: "a.jpg", Ext: "jpg", ByteSize: 100, ModifiedAt: time.Unix(1000, 0),
			Bytes: func() ([]byte, error) { return []byte{}, nil }},
	}

	_, err := c.SelectFolder(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Scan(context.Background(), true))
	require.Len(t, c.ListAssets(), 1)
	firstID := c.ListAssets()[0].ID

	require.NoError(t, c.Rescan(context.Background(), true))
	require.Len(t, c.ListAssets(), 1)
	require.Equal(t, firstID, c.ListAssets()[0].ID)
	require.Len(t, assets.records, 1)
}

func TestSetFlagUpdatesKnownAssetOnly(t *testing.T) {
	c, _, scan := newTestCoordinator(t)
	scan.batch = model.ScanBatch{
		{Path: "a.jpg", Filename: "a.jpg", Ext: "jpg", ModifiedAt: time.Unix(1, 0),
			Bytes: func() ([]byte, error) { return []byte{}, nil }},
	}
	_, err := c.SelectFolder(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Scan(context.Background(), true))

	id := c.ListAssets()[0].ID
	require.NoError(t, c.SetFlag(context.Background(), id, model.FlagPick))
	a, ok := c.GetAsset(id)
	require.True(t, ok)
	require.Equal(t, model.FlagPick, a.Flag)

	require.NoError(t, c.SetFlag(context.Background(), "unknown-id", model.FlagPick))
}

func TestRequestThumbnailRendersAndFiresReady(t *testing.T) {
	c, _, scan := newTestCoordinator(t)
	scan.batch = model.ScanBatch{
		{Path: "a.jpg", Filename: "a.jpg", Ext: "jpg", ModifiedAt: time.Unix(1, 0),
			Bytes: func() ([]byte, error) { return []byte{}, nil }},
	}
	_, err := c.SelectFolder(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Scan(context.Background(), true))
	id := c.ListAssets()[0].ID

	ready := make(chan string, 1)
	c.SetCallbacks(Callbacks{
		OnThumbnailReady: func(assetID, handle string) { ready <- handle },
	})

	require.NoError(t, c.RequestThumbnail(id, model.VISIBLE))

	select {
	case handle := <-ready:
		require.NotEmpty(t, handle)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for thumbnail ready callback")
	}

	a, ok := c.GetAsset(id)
	require.True(t, ok)
	require.Equal(t, model.DerivativeReady, a.ThumbnailState)
}

func TestDestroyResetsState(t *testing.T) {
	c, _, scan := newTestCoordinator(t)
	scan.batch = model.ScanBatch{
		{Path: "a.jpg", Filename: "a.jpg", Ext: "jpg", ModifiedAt: time.Unix(1, 0),
			Bytes: func() ([]byte, error) { return []byte{}, nil }},
	}
	_, err := c.SelectFolder(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Scan(context.Background(), true))
	require.Len(t, c.ListAssets(), 1)

	c.Destroy()
	require.Equal(t, model.StateInitializing, c.State())
	require.Empty(t, c.ListAssets())
	_, ok := c.CurrentFolder()
	require.False(t, ok)
}

func TestSaveAndLoadEditState(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	require.NoError(t, c.SaveEditState(context.Background(), "asset-1", 1, []byte(`{"exposure":0.5}`)))

	rec, err := c.LoadEditState(context.Background(), "asset-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 1, rec.SchemaVersion)
	require.JSONEq(t, `{"exposure":0.5}`, string(rec.Payload))
}
