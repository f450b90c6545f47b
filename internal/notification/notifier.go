package notification

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Notifier delivers a short human-readable message to the actor.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(msg string)

// Notify calls f(msg).
func (f NotifierFunc) Notify(msg string) { f(msg) }

// Multi fans a message out to every notifier in order.
type Multi []Notifier

// Notify forwards msg to each notifier.
func (m Multi) Notify(msg string) {
	for _, n := range m {
		if n != nil {
			n.Notify(msg)
		}
	}
}

// LogNotifier writes each message to the log.
type LogNotifier struct{}

// Notify logs msg.
func (LogNotifier) Notify(msg string) {
	log.WithField("notification", msg).Info("notify")
}

// Throttle drops messages that arrive within the window of the last forwarded one.
type Throttle struct {
	next   Notifier
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewThrottle wraps next with a suppression window.
func NewThrottle(next Notifier, window time.Duration) *Throttle {
	return &Throttle{next: next, window: window, now: time.Now}
}

// Notify forwards msg unless the window since the last forwarded message is still open.
func (t *Throttle) Notify(msg string) {
	t.mu.Lock()
	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		t.mu.Unlock()
		log.WithField("notification", msg).Debug("notification throttled")
		return
	}
	t.last = now
	t.mu.Unlock()

	t.next.Notify(msg)
}

// Entry is one message kept by a Feed.
type Entry struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Feed keeps the most recent messages so the UI can poll for them.
type Feed struct {
	size int
	now  func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// NewFeed creates a feed holding at most size entries.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 1
	}
	return &Feed{size: size, now: time.Now}
}

// Notify appends msg, evicting the oldest entry when full.
func (f *Feed) Notify(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, Entry{Message: msg, At: f.now()})
	if over := len(f.entries) - f.size; over > 0 {
		f.entries = append([]Entry(nil), f.entries[over:]...)
	}
}

// Recent returns the kept entries, oldest first.
func (f *Feed) Recent() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entry{}, f.entries...)
}

// Since returns the entries recorded strictly after t.
func (f *Feed) Since(t time.Time) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Entry{}
	for _, e := range f.entries {
		if e.At.After(t) {
			out = append(out, e)
		}
	}
	return out
}
