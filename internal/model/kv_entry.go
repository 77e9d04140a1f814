package model

import "time"

// KVEntry backs the SQL implementation of the key-value store.
type KVEntry struct {
	Key   string `gorm:"column:entry_key;primaryKey;size:255"`
	Value string `gorm:"column:entry_value;type:longtext;not null"`
	// Placeholder rows are inserted inside an update transaction so the row
	// lock has a row to hold; they are never committed.
	Placeholder bool `gorm:"column:placeholder;not null;default:false"`
	UpdatedAt   time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
