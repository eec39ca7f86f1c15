// Package outages reads outage records from the database.
package outages

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ship-status-dash/pkg/types"
)

// ErrNotFound is returned when an outage does not exist for the requested sub-component.
var ErrNotFound = errors.New("outage not found")

// Store is a read-only view over the outages table.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the outages table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&types.Outage{})
}

// ListActive returns outages for the given sub-components that have not ended by now, most recent first.
func (s *Store) ListActive(ctx context.Context, subComponentNames []string, now time.Time) ([]types.Outage, error) {
	outages := []types.Outage{}
	if len(subComponentNames) == 0 {
		return outages, nil
	}
	err := s.db.WithContext(ctx).
		Where("component_name IN ? AND (end_time IS NULL OR end_time > ?)", subComponentNames, now).
		Order("start_time DESC").
		Find(&outages).Error
	return outages, err
}

// List returns every outage, active or not, for the given sub-components, most recent first.
func (s *Store) List(ctx context.Context, subComponentNames []string) ([]types.Outage, error) {
	outages := []types.Outage{}
	if len(subComponentNames) == 0 {
		return outages, nil
	}
	err := s.db.WithContext(ctx).
		Where("component_name IN ?", subComponentNames).
		Order("start_time DESC").
		Find(&outages).Error
	return outages, err
}

// Get returns a single outage recorded against subComponentName.
func (s *Store) Get(ctx context.Context, subComponentName string, id uint) (*types.Outage, error) {
	var outage types.Outage
	err := s.db.WithContext(ctx).Where("id = ? AND component_name = ?", id, subComponentName).First(&outage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &outage, nil
}

// CountTables returns the number of base tables in the public schema. Only meaningful on PostgreSQL.
func (s *Store) CountTables(ctx context.Context) (int64, error) {
	var tableCount int64
	err := s.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE'").
		Scan(&tableCount).Error
	return tableCount, err
}
