package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meter-capture-agent/internal/model"
)

// Storage is a raw byte-oriented key/value backend.
type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Durable reports whether values survive a process restart.
	Durable() bool
}

// gormStorage implements Storage on top of a GORM database.
type gormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a durable Storage backed by the kv_entries table.
// The table must already be migrated.
func NewGormStorage(db *gorm.DB) Storage {
	return &gormStorage{db: db}
}

func (s *gormStorage) Get(key string) ([]byte, bool, error) {
	var rows []model.KVEntry
	if err := s.db.Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).Limit(1).Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return []byte(rows[0].Value), true, nil
}

func (s *gormStorage) Set(key string, value []byte) error {
	entry := model.KVEntry{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (s *gormStorage) Delete(key string) error {
	if err := s.db.Delete(&model.KVEntry{Key: key}).Error; err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *gormStorage) Durable() bool { return true }

// memoryStorage keeps values for the lifetime of the process only.
type memoryStorage struct {
	c *cache.Cache
}

// NewMemoryStorage creates a non-durable Storage.
func NewMemoryStorage() Storage {
	return &memoryStorage{c: cache.New(cache.NoExpiration, 0)}
}

func (m *memoryStorage) Get(key string) ([]byte, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("read %q: unexpected value type %T", key, v)
	}
	return append([]byte(nil), b...), true, nil
}

func (m *memoryStorage) Set(key string, value []byte) error {
	m.c.Set(key, append([]byte(nil), value...), cache.NoExpiration)
	return nil
}

func (m *memoryStorage) Delete(key string) error {
	m.c.Delete(key)
	return nil
}

func (m *memoryStorage) Durable() bool { return false }

const probeKey = "_ls_"

var errProbeMismatch = errors.New("probe value did not round-trip")

// Select returns durable when it passes a write/read/delete probe, and an
// in-memory Storage otherwise. A nil durable backend selects memory directly.
func Select(durable Storage) Storage {
	if durable == nil {
		log.Warn("durable store unavailable; captured data will not survive a restart")
		return NewMemoryStorage()
	}
	if err := probe(durable); err != nil {
		log.WithError(err).Warn("durable store failed its probe; falling back to memory for this run")
		return NewMemoryStorage()
	}
	return durable
}

func probe(s Storage) error {
	if err := s.Set(probeKey, []byte("1")); err != nil {
		return err
	}
	v, found, err := s.Get(probeKey)
	if err != nil {
		return err
	}
	if !found || string(v) != "1" {
		return errProbeMismatch
	}
	return s.Delete(probeKey)
}
