package store

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// KV stores structured values under structured keys. It never reports
// failures to callers: a broken backend or an undecodable value reads as
// absent and a failed write is logged and dropped.
type KV struct {
	backend Storage
}

// NewKV wraps a Storage backend.
func NewKV(backend Storage) *KV {
	return &KV{backend: backend}
}

// Durable reports whether the selected backend persists across restarts.
func (kv *KV) Durable() bool {
	return kv.backend.Durable()
}

// Get decodes the value stored under key into dest and reports whether it did so.
func (kv *KV) Get(key Key, dest any) bool {
	raw, found, err := kv.backend.Get(key.String())
	if err != nil {
		log.WithField("key", key.String()).WithError(err).Warn("store read failed")
		return false
	}
	if !found || len(raw) == 0 || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.WithField("key", key.String()).WithError(err).Warn("stored value is not decodable")
		return false
	}
	return true
}

// Set encodes value and stores it under key.
func (kv *KV) Set(key Key, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.WithField("key", key.String()).WithError(err).Warn("value is not encodable; write dropped")
		return
	}
	if err := kv.backend.Set(key.String(), raw); err != nil {
		log.WithField("key", key.String()).WithError(err).Warn("store write failed")
	}
}

// Delete removes key.
func (kv *KV) Delete(key Key) {
	if err := kv.backend.Delete(key.String()); err != nil {
		log.WithField("key", key.String()).WithError(err).Warn("store delete failed")
	}
}
