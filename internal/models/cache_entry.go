package models

import (
	"time"
)

// LeadCacheEntry is the database row backing the leads cache slot.
type LeadCacheEntry struct {
	Slot       string `gorm:"primaryKey;size:128"`
	Payload    []byte
	CapturedAt time.Time `gorm:"index"`
	LeadCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table name across drivers.
func (LeadCacheEntry) TableName() string {
	return "lead_cache_entries"
}
