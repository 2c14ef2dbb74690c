// Package pipeline implements the priority-ordered derivative pipeline of
// §4.3: a small worker pool pulling from a priorityqueue.Queue, rendering
// bytes through a decoder.Decoder, and writing results into a
// derivativecache.Cache. Two independent Pipeline instances exist in a
// running coordinator, one per derivative kind (thumbnail, preview),
// exactly as the teacher runs one imaging.Service per process but fans
// uploads out with a bounded semaphore (internal/imaging/service.go).
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"photocatalog/internal/catalogerr"
	"photocatalog/internal/decoder"
	"photocatalog/internal/derivativecache"
	"photocatalog/internal/model"
	"photocatalog/internal/priorityqueue"
)

// OnReady is invoked after a derivative has been rendered and cached.
type OnReady func(id string, handle string)

// OnError is invoked when rendering fails; code classifies the failure.
type OnError func(id string, code catalogerr.Code, err error)

// Pipeline renders derivatives for one kind (thumbnail or preview),
// honoring request priority and discarding stale in-flight work when a
// newer generation has been enqueued for the same id (§4.3's
// "regenerate with edits" cancellation semantics).
type Pipeline struct {
	kind    string
	target  decoder.TargetSize
	decode  decoder.Decoder
	cache   *derivativecache.Cache
	log     *slog.Logger
	workers int

	mu          sync.Mutex
	cond        *sync.Cond
	queue       *priorityqueue.Queue
	generations map[string]uint64
	inFlight    map[string]uint64 // id -> generation currently being rendered
	closed      bool

	// onReady/onError are read fresh on every invocation under callbackMu
	// so SetCallbacks can be swapped in at any time (§9, "dynamic
	// callbacks") without requiring pipeline restart.
	callbackMu sync.RWMutex
	onReady    OnReady
	onError    OnError

	wg sync.WaitGroup
}

// New constructs a pipeline for one derivative kind. workers bounds the
// number of concurrent renders in flight, mirroring the teacher's
// semaphore-bounded upload fan-out.
func New(kind string, target decoder.TargetSize, dec decoder.Decoder, cache *derivativecache.Cache, workers int, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	p := &Pipeline{
		kind:        kind,
		target:      target,
		decode:      dec,
		cache:       cache,
		log:         log,
		workers:     workers,
		queue:       priorityqueue.New(),
		generations: make(map[string]uint64),
		inFlight:    make(map[string]uint64),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetCallbacks installs the ready/error callbacks. Safe to call at any
// time, including while renders are in flight.
func (p *Pipeline) SetCallbacks(onReady OnReady, onError OnError) {
	p.callbackMu.Lock()
	p.onReady = onReady
	p.onError = onError
	p.callbackMu.Unlock()
}

func (p *Pipeline) fireReady(id, handle string) {
	p.callbackMu.RLock()
	cb := p.onReady
	p.callbackMu.RUnlock()
	if cb != nil {
		cb(id, handle)
	}
}

func (p *Pipeline) fireError(id string, code catalogerr.Code, err error) {
	p.callbackMu.RLock()
	cb := p.onError
	p.callbackMu.RUnlock()
	if cb != nil {
		cb(id, code, err)
	}
}

// Start launches the worker pool. Workers run until ctx is cancelled or
// Stop is called.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		p.Stop()
	}()
}

// Stop signals every worker to exit once it next wakes, and waits for
// in-flight renders to drain.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// Request enqueues (or re-prioritizes) a derivative render for id at the
// given priority. If a cached derivative already exists it is returned
// immediately via the ready callback and no work is queued.
func (p *Pipeline) Request(id string, priority model.Priority, bytes model.BytesProducer) {
	if handle, ok := p.cache.Get(context.Background(), id); ok {
		p.fireReady(id, handle)
		return
	}

	p.mu.Lock()
	if _, running := p.inFlight[id]; running {
		// Already rendering this generation; the in-flight task's own
		// completion will fire on_ready. Don't spawn a duplicate task
		// (§4.3 "at most one task in flight per id").
		p.mu.Unlock()
		return
	}
	gen := p.generations[id]
	p.queue.Enqueue(priorityqueue.Entry{ID: id, Priority: priority, Bytes: bytes, Generation: gen})
	p.mu.Unlock()
	p.cond.Signal()
}

// UpdatePriority raises or lowers a pending (not yet started) request.
func (p *Pipeline) UpdatePriority(id string, priority model.Priority) {
	p.mu.Lock()
	p.queue.UpdatePriority(id, priority)
	p.mu.Unlock()
}

// Cancel removes a single pending request. A render already in flight is
// not interrupted but its result is discarded on completion if a newer
// generation has since been requested.
func (p *Pipeline) Cancel(id string) {
	p.mu.Lock()
	p.queue.Remove(id)
	p.mu.Unlock()
}

// CancelAll removes every pending request.
func (p *Pipeline) CancelAll() {
	p.mu.Lock()
	p.queue.RemoveWhere(func(priorityqueue.Entry) bool { return true })
	p.mu.Unlock()
}

// CancelBackground removes only pending BACKGROUND-priority requests,
// per §4.3's bulk-cancel-on-navigate behavior.
func (p *Pipeline) CancelBackground() {
	p.mu.Lock()
	p.queue.RemoveWhere(func(e priorityqueue.Entry) bool { return e.Priority == model.BACKGROUND })
	p.mu.Unlock()
}

// Invalidate evicts a cached derivative and bumps its generation so any
// in-flight or already-queued render for the old generation is discarded
// rather than repopulating the cache with stale bytes.
func (p *Pipeline) Invalidate(id string) {
	p.cache.Delete(context.Background(), id)
	p.mu.Lock()
	p.generations[id]++
	p.queue.Remove(id)
	p.mu.Unlock()
}

// Regenerate bumps id's generation, evicts any cached derivative, and
// enqueues a new render carrying editState. Results from any older
// generation still in flight are discarded when they complete.
func (p *Pipeline) Regenerate(id string, priority model.Priority, bytes model.BytesProducer, editState []byte) {
	p.cache.Delete(context.Background(), id)
	p.mu.Lock()
	p.generations[id]++
	gen := p.generations[id]
	p.queue.Remove(id)
	p.queue.Enqueue(priorityqueue.Entry{ID: id, Priority: priority, Bytes: bytes, Generation: gen, EditState: editState})
	p.mu.Unlock()
	p.cond.Signal()
}

// worker pulls the highest-priority pending entry, blocking when the
// queue is empty, and renders it.
func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		entry, ok := p.nextEntry()
		if !ok {
			return
		}
		p.render(ctx, entry)
	}
}

func (p *Pipeline) nextEntry() (priorityqueue.Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return priorityqueue.Entry{}, false
		}
		if e, ok := p.queue.Dequeue(); ok {
			p.inFlight[e.ID] = e.Generation
			return e, true
		}
		p.cond.Wait()
	}
}

func (p *Pipeline) render(ctx context.Context, entry priorityqueue.Entry) {
	defer func() {
		p.mu.Lock()
		delete(p.inFlight, entry.ID)
		p.mu.Unlock()
	}()

	src, err := entry.Bytes()
	if err != nil {
		p.fireError(entry.ID, catalogerr.ThumbnailError, err)
		return
	}

	var out []byte
	if entry.EditState != nil {
		out, err = p.decode.RenderEditedDerivative(ctx, src, entry.EditState, p.target)
	} else {
		out, err = p.decode.RenderDerivative(ctx, src, p.target)
	}
	if err != nil {
		p.fireError(entry.ID, catalogerr.ThumbnailError, err)
		return
	}

	if p.stale(entry.ID, entry.Generation) {
		p.log.Debug("discarding stale derivative render", "kind", p.kind, "id", entry.ID, "generation", entry.Generation)
		return
	}

	handle := p.cache.Set(ctx, entry.ID, out)
	p.fireReady(entry.ID, handle)
}

// stale reports whether a newer generation has been requested for id
// since this render started.
func (p *Pipeline) stale(id string, generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generations[id] > generation
}

// ClearCacheMemory releases this pipeline's cache's in-memory tier
// without touching persistence, per the coordinator's Destroy operation
// (§4.6) — the coordinator never reaches into a pipeline's cache
// directly, it asks the pipeline to do so.
func (p *Pipeline) ClearCacheMemory() {
	p.cache.ClearMemory()
}

// Size reports the number of currently pending (not in-flight) requests.
func (p *Pipeline) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Size()
}
