package models

import "time"

// StorageEntry is one key/value pair of persisted session state.
type StorageEntry struct {
	Key       string    `gorm:"column:key;primaryKey;size:255"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (StorageEntry) TableName() string {
	return "storage_entries"
}
