// Package outbox is the durable FIFO of payloads that have not been acknowledged yet.
package outbox

import (
	"sync"

	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/store"
)

const outboxKey = "outbox"

// Namespacer resolves the namespace of the current actor.
type Namespacer interface {
	Namespace() store.Namespace
}

// Queue appends at the tail and removes from the head only. Each call
// resolves its namespace afresh unless the queue was pinned.
type Queue struct {
	kv     *store.KV
	scope  Namespacer
	pinned *store.Namespace
	mu     *sync.Mutex
}

// NewQueue creates a queue whose namespace follows scope.
func NewQueue(kv *store.KV, scope Namespacer) *Queue {
	return &Queue{kv: kv, scope: scope, mu: &sync.Mutex{}}
}

// Pin returns a view of the queue bound to ns. The view shares the lock
// of the queue it came from.
func (q *Queue) Pin(ns store.Namespace) *Queue {
	return &Queue{kv: q.kv, scope: q.scope, pinned: &ns, mu: q.mu}
}

// Namespace returns the namespace the next call will address.
func (q *Queue) Namespace() store.Namespace {
	if q.pinned != nil {
		return *q.pinned
	}
	return q.scope.Namespace()
}

func (q *Queue) load(ns store.Namespace) []model.Payload {
	var items []model.Payload
	if !q.kv.Get(ns.Key(outboxKey), &items) {
		return nil
	}
	return items
}

func (q *Queue) save(ns store.Namespace, items []model.Payload) {
	if len(items) == 0 {
		q.kv.Delete(ns.Key(outboxKey))
		return
	}
	q.kv.Set(ns.Key(outboxKey), items)
}

// Enqueue appends p and returns the new length.
func (q *Queue) Enqueue(p model.Payload) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	ns := q.Namespace()
	items := append(q.load(ns), p)
	q.save(ns, items)
	return len(items)
}

// PeekHead returns the oldest payload without removing it.
func (q *Queue) PeekHead() (*model.Payload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.load(q.Namespace())
	if len(items) == 0 {
		return nil, false
	}
	head := items[0]
	return &head, true
}

// RemoveHead removes and returns the oldest payload.
func (q *Queue) RemoveHead() (*model.Payload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ns := q.Namespace()
	items := q.load(ns)
	if len(items) == 0 {
		return nil, false
	}
	head := items[0]
	q.save(ns, items[1:])
	return &head, true
}

// Count returns the queue depth.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load(q.Namespace()))
}

// List returns a copy of the queue contents, oldest first.
func (q *Queue) List() []model.Payload {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.load(q.Namespace())
	if items == nil {
		return []model.Payload{}
	}
	return items
}

// Clear drops every queued payload in the namespace.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.kv.Delete(q.Namespace().Key(outboxKey))
}
