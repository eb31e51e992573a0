// Package storage provides the optional warm-start snapshot store: the
// latest sample per exchange+symbol, so a restart does not begin blind.
// No price history is ever kept.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"assetwatch/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PriceSnapshot is the persisted form of one last-known sample.
type PriceSnapshot struct {
	Exchange  string `gorm:"primaryKey"`
	Symbol    string `gorm:"primaryKey"`
	Price     string
	Currency  string
	Timestamp int64
	UpdatedAt time.Time
}

// SQLiteStore persists snapshots in an embedded database.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the snapshot database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if err := db.AutoMigrate(&PriceSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save upserts the latest sample for one exchange+symbol.
func (s *SQLiteStore) Save(ctx context.Context, update domain.PriceUpdate) error {
	snap := PriceSnapshot{
		Exchange:  update.Exchange,
		Symbol:    update.Data.Symbol,
		Price:     update.Data.Price.String(),
		Currency:  update.Data.Currency,
		Timestamp: update.Data.Timestamp,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Save(&snap).Error
}

// Load returns every stored sample for an exchange. Rows with an
// unparsable price are skipped.
func (s *SQLiteStore) Load(ctx context.Context, exchange string) ([]domain.PriceData, error) {
	var snaps []PriceSnapshot
	err := s.db.WithContext(ctx).Find(&snaps, "exchange = ?", exchange).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.PriceData, 0, len(snaps))
	for _, snap := range snaps {
		price, err := decimal.NewFromString(snap.Price)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceData{
			Symbol:    snap.Symbol,
			Price:     price,
			Currency:  snap.Currency,
			Timestamp: snap.Timestamp,
		})
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
