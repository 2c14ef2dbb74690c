package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/decoder"
	"photocatalog/internal/derivativecache"
	"photocatalog/internal/model"
	"photocatalog/internal/priorityqueue"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Get(_ context.Context, id string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	return d, ok, nil
}
func (m *memStore) Put(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
	return nil
}
func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}
func (m *memStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

// stubDecoder renders by prefixing the source bytes with "plain:" or
// "edited:" so the two paths give distinct output without real images.
type stubDecoder struct {
	delay time.Duration
	fail  bool
}

func (s *stubDecoder) RenderDerivative(ctx context.Context, source []byte, target decoder.TargetSize) ([]byte, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail {
		return nil, errBoom
	}
	return append([]byte("plain:"), source...), nil
}

func (s *stubDecoder) RenderEditedDerivative(ctx context.Context, source []byte, editState []byte, target decoder.TargetSize) ([]byte, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.fail {
		return nil, errBoom
	}
	return append([]byte("edited:"), source...), nil
}

type boomErr string

func (e boomErr) Error() string { return string(e) }

const errBoom = boomErr("decode failed")

func newTestPipeline(dec decoder.Decoder, workers int) (*Pipeline, *derivativecache.Cache) {
	cache := derivativecache.New("thumb", 100, newMemStore(), nil)
	p := New("thumb", decoder.TargetSize{Kind: "thumbnail", LongEdge: 512}, dec, cache, workers, nil)
	return p, cache
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition never became true within %s", timeout)
}

func TestRequestRendersAndFiresReady(t *testing.T) {
	p, _ := newTestPipeline(&stubDecoder{}, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var mu sync.Mutex
	var gotID, gotHandle string
	p.SetCallbacks(func(id, handle string) {
		mu.Lock()
		gotID, gotHandle = id, handle
		mu.Unlock()
	}, nil)

	p.Request("asset-1", model.VISIBLE, func() ([]byte, error) { return []byte("bytes"), nil })

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotID == "asset-1"
	})
	require.NotEmpty(t, gotHandle)
}

func TestRequestCacheHitSkipsQueue(t *testing.T) {
	p, cache := newTestPipeline(&stubDecoder{}, 1)
	cache.Set(context.Background(), "asset-1", []byte("cached"))

	var called bool
	p.SetCallbacks(func(id, handle string) { called = true }, nil)

	p.Request("asset-1", model.VISIBLE, func() ([]byte, error) {
		t.Fatal("bytes producer should not be invoked on a cache hit")
		return nil, nil
	})

	require.True(t, called)
	require.Equal(t, 0, p.Size())
}

func TestBytesProducerErrorFiresOnError(t *testing.T) {
	p, _ := newTestPipeline(&stubDecoder{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var mu sync.Mutex
	var gotCode catalogerr.Code
	p.SetCallbacks(nil, func(id string, code catalogerr.Code, err error) {
		mu.Lock()
		gotCode = code
		mu.Unlock()
	})

	p.Request("asset-err", model.VISIBLE, func() ([]byte, error) { return nil, errBoom })

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotCode != ""
	})
	require.Equal(t, catalogerr.ThumbnailError, gotCode)
}

func TestCancelBackgroundOnlyRemovesBackgroundPriority(t *testing.T) {
	p, _ := newTestPipeline(&stubDecoder{delay: 50 * time.Millisecond}, 1)

	// One slow in-flight render occupies the single worker so the rest
	// stay queued long enough to assert on.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Request("occupy-worker", model.VISIBLE, func() ([]byte, error) { return []byte("x"), nil })
	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.queue.Enqueue(priorityqueue.Entry{ID: "bg-1", Priority: model.BACKGROUND, Bytes: func() ([]byte, error) { return nil, nil }})
	p.queue.Enqueue(priorityqueue.Entry{ID: "visible-1", Priority: model.VISIBLE, Bytes: func() ([]byte, error) { return nil, nil }})
	p.mu.Unlock()

	p.CancelBackground()

	p.mu.Lock()
	defer p.mu.Unlock()
	require.False(t, p.queue.Contains("bg-1"))
	require.True(t, p.queue.Contains("visible-1"))
}

func TestRegenerateDiscardsStaleInFlightResult(t *testing.T) {
	p, cache := newTestPipeline(&stubDecoder{delay: 100 * time.Millisecond}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var readyCount int
	var mu sync.Mutex
	p.SetCallbacks(func(id, handle string) {
		mu.Lock()
		readyCount++
		mu.Unlock()
	}, nil)

	p.Request("asset-1", model.VISIBLE, func() ([]byte, error) {
		time.Sleep(60 * time.Millisecond)
		return []byte("v1"), nil
	})
	time.Sleep(10 * time.Millisecond) // let the render start, capturing generation 0

	p.Regenerate("asset-1", model.VISIBLE, func() ([]byte, error) { return []byte("v2"), nil }, []byte(`{"rotation":90}`))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return readyCount >= 1
	})

	// The stale v1 render must never have populated the cache with its
	// output; only the v2 (edited) render should ultimately succeed.
	waitFor(t, time.Second, func() bool {
		_, ok := cache.Get(context.Background(), "asset-1")
		return ok
	})

	// Once both renders have finished, only the v2 render fired on_ready.
	waitFor(t, time.Second, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.inFlight) == 0 && p.queue.Size() == 0
	})
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, readyCount)
}
