// Package store persists the entity registry in a sqlite database.
package store

import (
	"errors"
	"fmt"
	"log"

	"github.com/larsks/omada-poe/internal/hub"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrOpenFailed    = errors.New("failed to open registry database")
	ErrMigrateFailed = errors.New("registry migration failed")
)

// RegistryEntry is the database row for one registered entity.
type RegistryEntry struct {
	UniqueID string `gorm:"primaryKey"`
	EntityID string `gorm:"uniqueIndex"`
	Platform string
	Name     string
}

// Store implements hub.RegistryStore.
type Store struct {
	db *gorm.DB
}

var _ hub.RegistryStore = (*Store)(nil)

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrOpenFailed, path, err)
	}

	if err := db.AutoMigrate(&RegistryEntry{}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigrateFailed, err)
	}

	log.Printf("opened entity registry %s", path)
	return &Store{db: db}, nil
}

// Load returns every stored entry.
func (s *Store) Load() ([]hub.RegistryEntry, error) {
	var rows []RegistryEntry
	if err := s.db.Order("entity_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	entries := make([]hub.RegistryEntry, len(rows))
	for i, row := range rows {
		entries[i] = hub.RegistryEntry{
			EntityID: row.EntityID,
			UniqueID: row.UniqueID,
			Platform: row.Platform,
			Name:     row.Name,
		}
	}
	return entries, nil
}

// Save inserts or updates an entry.
func (s *Store) Save(entry hub.RegistryEntry) error {
	row := RegistryEntry{
		UniqueID: entry.UniqueID,
		EntityID: entry.EntityID,
		Platform: entry.Platform,
		Name:     entry.Name,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save registry entry %s: %w", entry.EntityID, err)
	}
	return nil
}

// Delete removes the entry for uniqueID.
func (s *Store) Delete(uniqueID string) error {
	if err := s.db.Delete(&RegistryEntry{}, "unique_id = ?", uniqueID).Error; err != nil {
		return fmt.Errorf("failed to delete registry entry %s: %w", uniqueID, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
