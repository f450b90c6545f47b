package model

import "time"

// KVEntry is one row of the durable key/value table.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name independent of GORM's pluralisation.
func (KVEntry) TableName() string {
	return "kv_entries"
}
