// Package derivativecache implements the two-tier derivative cache of
// §4.1: a bounded in-memory LRU fronting a persistent BlobStore, keyed by
// asset id, handing back an opaque in-memory handle (here, a
// "cache:<kind>:<id>" string token — a stand-in for a URL/blob-reference
// the UI could render) rather than raw bytes to API callers that only
// need a render target.
package derivativecache

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// entry is the value type stored in the LRU's linked list.
type entry struct {
	id     string
	handle string
	bytes  []byte
}

// Cache is one tier pair (memory + persistent) for one derivative kind
// (thumbnail or preview). Two instances exist in a running coordinator.
type Cache struct {
	kind     string
	capacity int
	store    BlobStore
	log      *slog.Logger

	mu    sync.Mutex
	ll    *list.List               // front = most recently used
	index map[string]*list.Element // id -> element holding *entry

	// persistentReady tracks whether the persistent tier has been usable;
	// once it fails to initialize the cache degrades to memory-only, per
	// §4.1's failure model, and logs a single warning rather than
	// hammering the log on every miss.
	persistentReady bool
	warnedOnce      bool
}

// New constructs a cache for one derivative kind with the given memory
// capacity (default 150 for thumbnails, 50 for previews per §4.1) and
// persistent tier.
func New(kind string, capacity int, store BlobStore, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		kind:            kind,
		capacity:        capacity,
		store:           store,
		log:             log,
		ll:              list.New(),
		index:           make(map[string]*list.Element),
		persistentReady: true,
	}
}

func handleFor(kind, id string) string {
	return fmt.Sprintf("cache:%s:%s", kind, id)
}

// Has reports whether id is present in either tier.
func (c *Cache) Has(ctx context.Context, id string) bool {
	c.mu.Lock()
	_, ok := c.index[id]
	c.mu.Unlock()
	if ok {
		return true
	}
	_, found, err := c.store.Get(ctx, id)
	return err == nil && found
}

// Get checks the memory tier first; on miss it checks the persistent
// tier and, on a persistent hit, promotes the bytes into memory before
// returning. Persistent misses return absent, matching §4.1's read path.
func (c *Cache) Get(ctx context.Context, id string) (handle string, ok bool) {
	c.mu.Lock()
	if el, found := c.index[id]; found {
		c.ll.MoveToFront(el)
		h := el.Value.(*entry).handle
		c.mu.Unlock()
		return h, true
	}
	c.mu.Unlock()

	data, found, err := c.store.Get(ctx, id)
	if err != nil {
		c.warnPersistentFailure(err)
		return "", false
	}
	if !found {
		return "", false
	}

	h := handleFor(c.kind, id)
	c.insertMemory(id, h, data)
	return h, true
}

// Set inserts into the memory tier synchronously (so the returned handle
// is immediately renderable) and schedules a persistent write
// asynchronously; persistent-write failures are logged and swallowed
// per §4.1's write path.
func (c *Cache) Set(ctx context.Context, id string, data []byte) string {
	h := handleFor(c.kind, id)
	c.insertMemory(id, h, data)

	go func() {
		if err := c.store.Put(context.Background(), id, data); err != nil {
			c.warnPersistentFailure(err)
		}
	}()
	_ = ctx
	return h
}

func (c *Cache) insertMemory(id, handle string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[id]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*entry).bytes = data
		el.Value.(*entry).handle = handle
		return
	}

	el := c.ll.PushFront(&entry{id: id, handle: handle, bytes: data})
	c.index[id] = el

	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// evictOldest removes the least-recently-used memory entry. Caller must
// hold c.mu.
func (c *Cache) evictOldest() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.ll.Remove(back)
	delete(c.index, e.id)
}

// Delete removes id from both tiers.
func (c *Cache) Delete(ctx context.Context, id string) {
	c.mu.Lock()
	if el, ok := c.index[id]; ok {
		c.ll.Remove(el)
		delete(c.index, id)
	}
	c.mu.Unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		c.warnPersistentFailure(err)
	}
}

// ClearMemory releases every in-memory entry without touching the
// persistent tier.
func (c *Cache) ClearMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll = list.New()
	c.index = make(map[string]*list.Element)
}

// ClearAll releases the memory tier and clears the persistent tier.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.ClearMemory()
	return c.store.Clear(ctx)
}

// Size reports the current memory-tier occupancy (test/introspection aid).
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) warnPersistentFailure(err error) {
	c.mu.Lock()
	wasReady := c.persistentReady
	c.persistentReady = false
	already := c.warnedOnce
	c.warnedOnce = true
	c.mu.Unlock()

	if wasReady || !already {
		c.log.Warn("derivative cache persistent tier degraded to memory-only",
			slog.String("kind", c.kind), slog.Any("error", err))
	}
}
