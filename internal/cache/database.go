package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrimoveis/leadcache/internal/models"
)

// DefaultKey names the slot in keyed backends.
const DefaultKey = "leads"

// DatabaseStore implements Store on the SQL database as a single row.
type DatabaseStore struct {
	db  *gorm.DB
	key string
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB, key string) *DatabaseStore {
	if db == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &DatabaseStore{db: db, key: key}
}

// Read loads the slot row.
func (s *DatabaseStore) Read(ctx context.Context) (*Entry, error) {
	if s == nil {
		return nil, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var row models.LeadCacheEntry
	err := s.db.WithContext(ctx).Take(&row, "slot = ?", s.key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	return Decode(row.Payload)
}

// Write upserts the slot row in one statement.
func (s *DatabaseStore) Write(ctx context.Context, entry Entry) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := Encode(entry)
	if err != nil {
		return err
	}

	row := models.LeadCacheEntry{
		Slot:       s.key,
		Payload:    payload,
		CapturedAt: entry.Timestamp,
		LeadCount:  len(entry.Leads),
		UpdatedAt:  time.Now(),
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "captured_at", "lead_count", "updated_at"}),
		}).Create(&row).Error
}

// Ping checks the database connection.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
