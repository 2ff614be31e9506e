// Package repository persists named JSON records such as the move history
// and user settings.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/models"
)

// Well-known record names
const (
	HistoryRecord  = "moveHistory"
	SettingsRecord = "settings"
)

// Store reads and writes named JSON values
type Store interface {
	// Get decodes the named value into dest. It reports false when no
	// record exists.
	Get(ctx context.Context, name string, dest any) (bool, error)
	Put(ctx context.Context, name string, value any) error
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		db, err := InitMySQL(cfg)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	case config.DriverSQLite, "":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// GormStore keeps records in a relational table through gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get loads and decodes the named record
func (r *GormStore) Get(ctx context.Context, name string, dest any) (bool, error) {
	var rec models.Record
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if result.Error != nil {
		return false, fmt.Errorf("database error reading %s: %w", name, result.Error)
	}
	if err := json.Unmarshal([]byte(rec.Value), dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return true, nil
}

// Put encodes value and upserts it under name
func (r *GormStore) Put(ctx context.Context, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	rec := models.Record{Name: name, Value: string(data), UpdatedAt: time.Now()}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("failed to save %s: %w", name, result.Error)
	}
	return nil
}

// Delete removes the named record if present
func (r *GormStore) Delete(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Record{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", name, result.Error)
	}
	return nil
}

// Ping checks the underlying connection
func (r *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection
func (r *GormStore) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	logrus.Info("Closing database connection")
	return sqlDB.Close()
}
