// Package ledger counts delivered payloads per local calendar day.
package ledger

import (
	"sync"
	"time"

	"meter-capture-agent/internal/store"
)

const (
	ledgerKey = "sentLog"
	// DateLayout is the layout of the ledger's day keys.
	DateLayout = "2006-01-02"
)

// Namespacer resolves the namespace of the current actor.
type Namespacer interface {
	Namespace() store.Namespace
}

// Ledger maps YYYY-MM-DD in a fixed zone to the number of payloads acknowledged that day.
// Entries are created lazily and never pruned.
type Ledger struct {
	kv     *store.KV
	scope  Namespacer
	pinned *store.Namespace
	loc    *time.Location
	now    func() time.Time
	mu     *sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger bucketing days in loc. A nil loc is UTC.
func New(kv *store.KV, scope Namespacer, loc *time.Location, opts ...Option) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	l := &Ledger{kv: kv, scope: scope, loc: loc, now: time.Now, mu: &sync.Mutex{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Pin returns a view bound to ns sharing this ledger's lock and clock.
func (l *Ledger) Pin(ns store.Namespace) *Ledger {
	cp := *l
	cp.pinned = &ns
	return &cp
}

func (l *Ledger) namespace() store.Namespace {
	if l.pinned != nil {
		return *l.pinned
	}
	return l.scope.Namespace()
}

// Date returns the ledger day key for t.
func (l *Ledger) Date(t time.Time) string {
	return t.In(l.loc).Format(DateLayout)
}

// TodayKey returns the day key for the current instant.
func (l *Ledger) TodayKey() string {
	return l.Date(l.now())
}

func (l *Ledger) load(ns store.Namespace) map[string]int {
	counts := map[string]int{}
	if !l.kv.Get(ns.Key(ledgerKey), &counts) || counts == nil {
		return map[string]int{}
	}
	return counts
}

// Increment adds one to today's count and returns the new value.
func (l *Ledger) Increment() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	ns := l.namespace()
	counts := l.load(ns)
	day := l.TodayKey()
	counts[day]++
	l.kv.Set(ns.Key(ledgerKey), counts)
	return counts[day]
}

// Today returns today's count.
func (l *Ledger) Today() int {
	return l.CountOn(l.TodayKey())
}

// CountOn returns the count for a YYYY-MM-DD day key.
func (l *Ledger) CountOn(date string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(l.namespace())[date]
}

// All returns every recorded day.
func (l *Ledger) All() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(l.namespace())
}
