package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrimoveis/leadcache/internal/database/testutil"
	"github.com/mrimoveis/leadcache/internal/leads"
	"github.com/mrimoveis/leadcache/internal/models"
)

func TestDatabaseStoreRoundTrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db, "")
	ctx := context.Background()

	_, err := store.Read(ctx)
	require.ErrorIs(t, err, ErrCacheMiss)

	first := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(ctx, sampleEntry(first)))

	second := first.Add(time.Hour)
	require.NoError(t, store.Write(ctx, Entry{
		Timestamp: second,
		Leads:     leads.FromRecords([]leads.Record{{"id": "z"}}),
	}))

	entry, err := store.Read(ctx)
	require.NoError(t, err)
	require.True(t, entry.Timestamp.Equal(second))
	require.Equal(t, []string{"z"}, entry.Leads.IDs())

	var count int64
	require.NoError(t, db.Model(&models.LeadCacheEntry{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var row models.LeadCacheEntry
	require.NoError(t, db.Take(&row, "slot = ?", DefaultKey).Error)
	require.Equal(t, 1, row.LeadCount)

	require.NoError(t, store.Ping(ctx))
}

func TestDatabaseStoreCorruptRow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db, "leads")

	require.NoError(t, db.Create(&models.LeadCacheEntry{
		Slot:       "leads",
		Payload:    []byte("garbage"),
		CapturedAt: time.Now(),
	}).Error)

	_, err := store.Read(context.Background())
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDatabaseStoreSlotsAreIsolated(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	require.NoError(t, NewDatabaseStore(db, "a").Write(ctx, sampleEntry(time.Now())))

	_, err := NewDatabaseStore(db, "b").Read(ctx)
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewDatabaseStoreNilDB(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil, "leads"))
}
