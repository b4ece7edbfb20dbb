package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"mm_stats/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists fetched exchange events so repeated runs over the same
// blocks do not hit the RPC node again.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite event cache at path.
// An empty path resolves to the per-user data directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		p, err := getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		path = p
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.EventRecord{}, &domain.FetchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "MMStats", "data", "events.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Event Operations
// ======================================================================================

// Covers reports whether events of kind are cached for every block in r.
func (s *Storage) Covers(contract string, kind domain.EventKind, r domain.BlockRange) (bool, error) {
	var n int64
	err := s.db.Model(&domain.FetchRecord{}).
		Where("contract = ? AND kind = ? AND from_block <= ? AND to_block >= ?", contract, kind, r.From, r.To).
		Count(&n).Error
	return n > 0, err
}

// SaveEvents replaces the cached events of kind in r and marks r as covered.
func (s *Storage) SaveEvents(contract string, kind domain.EventKind, r domain.BlockRange, records []domain.EventRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("contract = ? AND kind = ? AND block >= ? AND block <= ?", contract, kind, r.From, r.To).
			Delete(&domain.EventRecord{}).Error
		if err != nil {
			return err
		}

		if len(records) > 0 {
			for i := range records {
				records[i].Contract = contract
				records[i].Kind = kind
			}
			if err := tx.CreateInBatches(records, 500).Error; err != nil {
				return err
			}
		}

		return tx.Create(&domain.FetchRecord{
			Contract:  contract,
			Kind:      kind,
			FromBlock: r.From,
			ToBlock:   r.To,
			Events:    len(records),
			FetchedAt: time.Now(),
		}).Error
	})
}

// LoadEvents returns the cached events of kind in r in chain order.
func (s *Storage) LoadEvents(contract string, kind domain.EventKind, r domain.BlockRange) ([]domain.EventRecord, error) {
	var records []domain.EventRecord
	err := s.db.
		Where("contract = ? AND kind = ? AND block >= ? AND block <= ?", contract, kind, r.From, r.To).
		Order("block, log_index").
		Find(&records).Error
	return records, err
}

// Purge drops everything cached for contract.
func (s *Storage) Purge(contract string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contract = ?", contract).Delete(&domain.EventRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("contract = ?", contract).Delete(&domain.FetchRecord{}).Error
	})
}
