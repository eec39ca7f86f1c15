package outages

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ship-status-dash/pkg/types"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store, db
}

func TestStore(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []types.Outage{
		{ComponentName: "Tide", Severity: types.SeverityDown, StartTime: now.Add(-2 * time.Hour), DiscoveredFrom: "test", CreatedBy: "test"},
		{ComponentName: "Tide", Severity: types.SeverityDegraded, StartTime: now.Add(-time.Hour), DiscoveredFrom: "test", CreatedBy: "test",
			EndTime: sql.NullTime{Time: now.Add(-30 * time.Minute), Valid: true}},
		{ComponentName: "Deck", Severity: types.SeveritySuspected, StartTime: now.Add(-10 * time.Minute), DiscoveredFrom: "test", CreatedBy: "test",
			EndTime: sql.NullTime{Time: now.Add(time.Hour), Valid: true}},
		{ComponentName: "Hook", Severity: types.SeverityDown, StartTime: now, DiscoveredFrom: "test", CreatedBy: "test"},
	}
	require.NoError(t, db.Create(&seed).Error)

	t.Run("list active", func(t *testing.T) {
		outages, err := store.ListActive(ctx, []string{"Tide", "Deck"}, now)
		require.NoError(t, err)
		require.Len(t, outages, 2)
		assert.Equal(t, "Deck", outages[0].ComponentName, "most recent first")
		assert.Equal(t, "Tide", outages[1].ComponentName)
		assert.Equal(t, types.SeverityDown, outages[1].Severity)
	})

	t.Run("list active with no names", func(t *testing.T) {
		outages, err := store.ListActive(ctx, nil, now)
		require.NoError(t, err)
		assert.NotNil(t, outages)
		assert.Empty(t, outages)
	})

	t.Run("list all", func(t *testing.T) {
		outages, err := store.List(ctx, []string{"Tide"})
		require.NoError(t, err)
		assert.Len(t, outages, 2)
	})

	t.Run("get", func(t *testing.T) {
		outage, err := store.Get(ctx, "Hook", seed[3].ID)
		require.NoError(t, err)
		assert.Equal(t, types.SeverityDown, outage.Severity)
		assert.True(t, outage.AutoResolve)
	})

	t.Run("get from wrong sub-component", func(t *testing.T) {
		_, err := store.Get(ctx, "Tide", seed[3].ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
