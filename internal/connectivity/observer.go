// Package connectivity tracks whether the device can reach the network.
package connectivity

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"meter-capture-agent/internal/notification"
)

// Messages shown on a state change.
const (
	MsgOffline = "You are offline. Submissions will queue to Outbox."
	MsgOnline  = "Back online"
)

type state int

const (
	stateUnknown state = iota
	stateOnline
	stateOffline
)

// Observer holds the last known connectivity state and announces each
// transition once. The first signal only sets the baseline. It never starts
// a drain.
type Observer struct {
	notifier notification.Notifier

	mu    sync.RWMutex
	state state
}

// NewObserver creates an observer in the unknown state.
func NewObserver(notifier notification.Notifier) *Observer {
	return &Observer{notifier: notifier}
}

// Set records a connectivity signal and returns true if it changed the state.
func (o *Observer) Set(online bool) bool {
	next := stateOffline
	if online {
		next = stateOnline
	}

	o.mu.Lock()
	prev := o.state
	if prev == next {
		o.mu.Unlock()
		return false
	}
	o.state = next
	o.mu.Unlock()

	if prev == stateUnknown {
		log.WithField("online", online).Info("connectivity baseline recorded")
		return true
	}
	log.WithField("online", online).Info("connectivity changed")
	if o.notifier != nil {
		if online {
			o.notifier.Notify(MsgOnline)
		} else {
			o.notifier.Notify(MsgOffline)
		}
	}
	return true
}

// Online reports the last known state. Unknown counts as online, so the
// submission path tries a direct send until told otherwise.
func (o *Observer) Online() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state != stateOffline
}

// Known reports whether any signal has been received yet.
func (o *Observer) Known() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state != stateUnknown
}
