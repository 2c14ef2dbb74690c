package derivativecache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// memStore is a trivial in-memory BlobStore fake for unit tests, standing
// in for the disk/S3 implementations.
type memStore struct {
	data map[string][]byte
	fail bool
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, id string) ([]byte, bool, error) {
	if m.fail {
		return nil, false, errTest
	}
	d, ok := m.data[id]
	return d, ok, nil
}
func (m *memStore) Put(_ context.Context, id string, data []byte) error {
	if m.fail {
		return errTest
	}
	m.data[id] = data
	return nil
}
func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.data, id)
	return nil
}
func (m *memStore) Clear(_ context.Context) error {
	m.data = make(map[string][]byte)
	return nil
}

type testErr string

func (e testErr) Error() string { return string(e) }

const errTest = testErr("boom")

func TestSetThenGetHitsMemory(t *testing.T) {
	c := New("thumb", 2, newMemStore(), nil)
	ctx := context.Background()

	h := c.Set(ctx, "a", []byte("data-a"))
	require.NotEmpty(t, h)

	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, h, got)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New("thumb", 2, newMemStore(), nil)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("a"))
	c.Set(ctx, "b", []byte("b"))
	// Touch "a" so "b" becomes least-recently-used.
	c.Get(ctx, "a")
	c.Set(ctx, "c", []byte("c")) // should evict "b"

	require.Equal(t, 2, c.Size())
	require.True(t, c.Has(ctx, "a"))
	require.True(t, c.Has(ctx, "c"))

	// "b" is no longer in memory. The backing store may or may not hold it
	// yet (the async persistent write may not have run), so "b" itself is
	// not asserted on.
}

func TestCapacityNeverExceeded(t *testing.T) {
	c := New("thumb", 3, newMemStore(), nil)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c.Set(ctx, string(rune('a'+i)), []byte{byte(i)})
		require.LessOrEqual(t, c.Size(), 3)
	}
}

func TestDeleteMissesBothTiers(t *testing.T) {
	store := newMemStore()
	c := New("thumb", 2, store, nil)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("a"))
	store.data["a"] = []byte("a") // ensure persistent write "completed" for the test
	c.Delete(ctx, "a")

	_, ok := c.Get(ctx, "a")
	require.False(t, ok)
	_, found, _ := store.Get(ctx, "a")
	require.False(t, found)
}

func TestPromotionOnPersistentHit(t *testing.T) {
	store := newMemStore()
	store.data["a"] = []byte("from-disk")
	c := New("thumb", 2, store, nil)
	ctx := context.Background()

	h, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.NotEmpty(t, h)
	require.Equal(t, 1, c.Size(), "persistent hit must promote into memory")
}

func TestClearMemoryLeavesPersistent(t *testing.T) {
	store := newMemStore()
	c := New("thumb", 2, store, nil)
	ctx := context.Background()
	c.Set(ctx, "a", []byte("a"))
	store.data["a"] = []byte("a")

	c.ClearMemory()
	require.Equal(t, 0, c.Size())
	_, found, _ := store.Get(ctx, "a")
	require.True(t, found)
}
