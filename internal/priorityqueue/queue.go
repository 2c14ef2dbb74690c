// Package priorityqueue implements a mutable-priority, FIFO-within-priority
// scheduler with O(1) lookup by id. It is a plain data structure — no
// goroutines, no locking beyond what a caller layers on top — driven by
// the derivative pipeline (internal/pipeline) and by the mock
// coordinator's simulated render workers.
//
// The small, fixed priority set (model.Priorities) makes a bucketed
// structure — one FIFO queue per priority level plus a side index —
// a natural fit, rather than a general heap.
package priorityqueue

import (
	"container/list"

	"photocatalog/internal/model"
)

// Entry is one queued unit of work, keyed by asset id.
type Entry struct {
	ID       string
	Priority model.Priority
	Bytes    model.BytesProducer
	// EditState is present only for regeneration requests.
	EditState []byte
	// Generation is the generation-counter value captured at enqueue time.
	Generation uint64
}

type node struct {
	entry   Entry
	element *list.Element // element in the bucket list holding this node
	bucket  model.Priority
}

// Queue is a bucketed FIFO-within-priority queue with cancellation and
// lookup by id.
type Queue struct {
	buckets map[model.Priority]*list.List // each list.Element holds *node
	index   map[string]*node
}

// New constructs an empty queue.
func New() *Queue {
	buckets := make(map[model.Priority]*list.List, len(model.Priorities))
	for _, p := range model.Priorities {
		buckets[p] = list.New()
	}
	return &Queue{
		buckets: buckets,
		index:   make(map[string]*node),
	}
}

// Enqueue inserts an entry, or — if an entry for this id is already
// queued — updates its priority (re-bucketing to the tail of the new
// bucket) without touching its producer or generation. This matches
// §4.3's "request for an already queued id updates the queued priority".
func (q *Queue) Enqueue(e Entry) {
	if existing, ok := q.index[e.ID]; ok {
		if existing.bucket != e.Priority {
			q.buckets[existing.bucket].Remove(existing.element)
			existing.bucket = e.Priority
			existing.element = q.buckets[e.Priority].PushBack(existing)
		}
		existing.entry.Priority = e.Priority
		return
	}

	n := &node{entry: e, bucket: e.Priority}
	n.element = q.buckets[e.Priority].PushBack(n)
	q.index[e.ID] = n
}

// Dequeue removes and returns the highest-priority entry, ties broken by
// FIFO insertion order within that priority's bucket.
func (q *Queue) Dequeue() (Entry, bool) {
	for _, p := range model.Priorities {
		b := q.buckets[p]
		front := b.Front()
		if front == nil {
			continue
		}
		n := front.Value.(*node)
		b.Remove(front)
		delete(q.index, n.entry.ID)
		return n.entry, true
	}
	return Entry{}, false
}

// UpdatePriority raises or lowers a pending entry's priority. No-op if the
// id is not queued.
func (q *Queue) UpdatePriority(id string, priority model.Priority) {
	n, ok := q.index[id]
	if !ok {
		return
	}
	if n.bucket == priority {
		return
	}
	q.buckets[n.bucket].Remove(n.element)
	n.bucket = priority
	n.entry.Priority = priority
	n.element = q.buckets[priority].PushBack(n)
}

// Remove removes a pending entry by id. No-op if absent.
func (q *Queue) Remove(id string) {
	n, ok := q.index[id]
	if !ok {
		return
	}
	q.buckets[n.bucket].Remove(n.element)
	delete(q.index, id)
}

// RemoveWhere removes every pending entry matching predicate, returning
// the number removed.
func (q *Queue) RemoveWhere(predicate func(Entry) bool) int {
	removed := 0
	for _, p := range model.Priorities {
		b := q.buckets[p]
		var next *list.Element
		for el := b.Front(); el != nil; el = next {
			next = el.Next()
			n := el.Value.(*node)
			if predicate(n.entry) {
				b.Remove(el)
				delete(q.index, n.entry.ID)
				removed++
			}
		}
	}
	return removed
}

// Contains reports whether id is currently queued.
func (q *Queue) Contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

// Size returns the number of queued entries.
func (q *Queue) Size() int {
	return len(q.index)
}
