// Package identity resolves the current actor and the namespace their state lives in.
package identity

import (
	"strings"
	"time"

	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/store"
)

// CurrentUserKey is the global key holding the signed-in actor.
var CurrentUserKey = store.Global("currentUser")

// Scoper derives the namespace of the current actor. It rereads the
// currentUser key on every call, so a sign-in or sign-out takes effect
// for the next operation without any notification.
type Scoper struct {
	kv *store.KV
}

// NewScoper creates a Scoper over kv.
func NewScoper(kv *store.KV) *Scoper {
	return &Scoper{kv: kv}
}

// Current returns the signed-in actor, or nil for the guest.
func (s *Scoper) Current() *model.Actor {
	var actor model.Actor
	if !s.kv.Get(CurrentUserKey, &actor) {
		return nil
	}
	if strings.TrimSpace(actor.Username) == "" {
		return nil
	}
	return &actor
}

// Namespace returns the namespace of the current actor.
func (s *Scoper) Namespace() store.Namespace {
	actor := s.Current()
	if actor == nil {
		return store.Guest
	}
	return store.ActorNamespace(actor.Username)
}

// Key scopes a logical name to the current actor.
func (s *Scoper) Key(name string) store.Key {
	return s.Namespace().Key(name)
}

// SetActor persists actor as the current user. The role defaults to user.
func (s *Scoper) SetActor(username, role, tz string, now time.Time) model.Actor {
	if role == "" {
		role = model.RoleUser
	}
	actor := model.Actor{
		Username:  username,
		Role:      role,
		Timestamp: now,
		Timezone:  tz,
	}
	s.kv.Set(CurrentUserKey, actor)
	return actor
}

// Clear signs the current actor out. Namespaced state is left in place.
func (s *Scoper) Clear() {
	s.kv.Delete(CurrentUserKey)
}
