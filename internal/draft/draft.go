// Package draft keeps the in-progress capture form for the current actor.
package draft

import (
	"time"

	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/store"
)

const draftKey = "draft"

// Namespacer resolves the namespace of the current actor.
type Namespacer interface {
	Namespace() store.Namespace
}

// Cache holds one form snapshot per namespace.
type Cache struct {
	kv    *store.KV
	scope Namespacer
	now   func() time.Time
}

// NewCache creates a draft cache.
func NewCache(kv *store.KV, scope Namespacer) *Cache {
	return &Cache{kv: kv, scope: scope, now: time.Now}
}

// Save stores form as the current actor's draft, stamping it with the save time.
func (c *Cache) Save(form model.Form) model.Form {
	form.SavedAt = c.now()
	c.kv.Set(c.scope.Namespace().Key(draftKey), form)
	return form
}

// Load returns the current actor's draft, if any.
func (c *Cache) Load() (model.Form, bool) {
	var form model.Form
	ok := c.kv.Get(c.scope.Namespace().Key(draftKey), &form)
	return form, ok
}

// Clear removes the current actor's draft.
func (c *Cache) Clear() {
	c.kv.Delete(c.scope.Namespace().Key(draftKey))
}
