// Package store manages the GridPilot work-unit history database.
// It wraps GORM over SQLite and is the single shared mutable resource in
// the gateway: every read and write goes through one connection so that
// composite-key inserts and status updates cannot interleave.
package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vesaa/gridpilot/internal/models"
)

// StatusOutcome reports what a SetStatus call actually did. A status update
// can arrive for a unit the gateway never recorded; that is a named outcome,
// not an error.
type StatusOutcome int

const (
	StatusUpdated StatusOutcome = iota
	StatusNoSuchUnit
)

// Store is the durable history of dispatched work per device and project.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. AutoMigrate only adds what is missing; existing tables are left
// untouched.
func Open(path string) (*Store, error) {
	return open(sqlite.Open(path))
}

// OpenMemory opens a throwaway in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	return open(sqlite.Open(":memory:"))
}

func open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Serialize all access through a single connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.WorkUnit{}, &models.AppVersion{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertWorkUnit persists wu unless a row with the same
// (result_name, project) key already exists; a key collision is a no-op.
func (s *Store) InsertWorkUnit(wu *models.WorkUnit) error {
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(wu).Error
}

// InsertAppVersion persists av with the same insert-once semantics over its
// five-column key.
func (s *Store) InsertAppVersion(av *models.AppVersion) error {
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(av).Error
}

// SetStatus overwrites the status of the workunit with the given key.
// A missing row yields StatusNoSuchUnit and a nil error.
func (s *Store) SetStatus(project, resultName string, status int64) (StatusOutcome, error) {
	res := s.db.Model(&models.WorkUnit{}).
		Where("project = ? AND result_name = ?", project, resultName).
		Update("status", status)
	if res.Error != nil {
		return StatusNoSuchUnit, res.Error
	}
	if res.RowsAffected == 0 {
		return StatusNoSuchUnit, nil
	}
	return StatusUpdated, nil
}

// ListSince returns every workunit dispatched to the device identified by
// cpid strictly after cutoff (unix seconds). Order is unspecified.
func (s *Store) ListSince(cpid string, cutoff int64) ([]models.WorkUnit, error) {
	var units []models.WorkUnit
	err := s.db.Where("cpid = ? AND timestamp > ?", cpid, cutoff).Find(&units).Error
	return units, err
}

// PruneBefore deletes workunits dispatched before cutoff and returns the
// number of rows removed. AppVersions are a small descriptive catalogue and
// are never pruned.
func (s *Store) PruneBefore(cutoff int64) (int64, error) {
	res := s.db.Where("timestamp < ?", cutoff).Delete(&models.WorkUnit{})
	return res.RowsAffected, res.Error
}
