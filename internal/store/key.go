package store

import "fmt"

// Scope says which namespace a key belongs to.
type Scope int

const (
	// ScopeGlobal keys are shared by every actor on the device (settings, client_id, currentUser).
	ScopeGlobal Scope = iota
	// ScopeGuest keys belong to the shared unauthenticated namespace.
	ScopeGuest
	// ScopeActor keys belong to one authenticated actor.
	ScopeActor
)

// Namespace identifies whose state a scoped key addresses.
type Namespace struct {
	Scope Scope
	Actor string
}

// Guest is the namespace used while nobody is signed in.
var Guest = Namespace{Scope: ScopeGuest}

// ActorNamespace returns the namespace of the given username. An empty username maps to Guest.
func ActorNamespace(username string) Namespace {
	if username == "" {
		return Guest
	}
	return Namespace{Scope: ScopeActor, Actor: username}
}

// Key returns the composite key for a logical name inside this namespace.
func (ns Namespace) Key(name string) Key {
	return Key{Scope: ns.Scope, Actor: ns.Actor, Name: name}
}

func (ns Namespace) String() string {
	switch ns.Scope {
	case ScopeGuest:
		return "guest"
	case ScopeActor:
		return "actor:" + ns.Actor
	default:
		return "global"
	}
}

// Key is a structured storage key: a logical name plus the namespace it lives in.
type Key struct {
	Scope Scope
	Actor string
	Name  string
}

// Global returns a key shared by all actors.
func Global(name string) Key {
	return Key{Scope: ScopeGlobal, Name: name}
}

// String renders the key in the persisted layout: "name", "guest:name" or "name@username".
func (k Key) String() string {
	switch k.Scope {
	case ScopeGuest:
		return "guest:" + k.Name
	case ScopeActor:
		return fmt.Sprintf("%s@%s", k.Name, k.Actor)
	default:
		return k.Name
	}
}
