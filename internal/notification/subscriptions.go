package notification

import (
	"strings"
	"sync"
	"time"

	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/store"
)

// SubscriptionsKey is the global key holding the registered browsers.
var SubscriptionsKey = store.Global("push_subscriptions")

// Subscriptions is the list of web push endpoints registered on this device.
type Subscriptions struct {
	kv *store.KV
	mu sync.Mutex
}

// NewSubscriptions creates a subscription list over kv.
func NewSubscriptions(kv *store.KV) *Subscriptions {
	return &Subscriptions{kv: kv}
}

func (s *Subscriptions) load() []model.PushSubscription {
	var subs []model.PushSubscription
	s.kv.Get(SubscriptionsKey, &subs)
	return subs
}

// Save adds sub, replacing the keys of an existing subscription with the same endpoint.
func (s *Subscriptions) Save(sub model.PushSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	subs := s.load()
	for i := range subs {
		if subs[i].Endpoint == sub.Endpoint {
			subs[i].P256DH = sub.P256DH
			subs[i].Auth = sub.Auth
			s.kv.Set(SubscriptionsKey, subs)
			return
		}
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.kv.Set(SubscriptionsKey, append(subs, sub))
}

// Delete removes the subscription with the given endpoint and reports whether one existed.
func (s *Subscriptions) Delete(endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.load()
	kept := subs[:0]
	for _, sub := range subs {
		if sub.Endpoint != endpoint {
			kept = append(kept, sub)
		}
	}
	if len(kept) == len(subs) {
		return false
	}
	s.kv.Set(SubscriptionsKey, kept)
	return true
}

// List returns every registered subscription.
func (s *Subscriptions) List() []model.PushSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.load()
	if subs == nil {
		return []model.PushSubscription{}
	}
	return subs
}
