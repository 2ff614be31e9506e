package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS records (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// SQLiteStore keeps records in a local SQLite file
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates the database at path, enables WAL mode
// and applies pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between the scheduler and API handlers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logrus.WithField("path", path).Info("SQLite store initialized")
	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	current := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Get loads and decodes the named record
func (s *SQLiteStore) Get(ctx context.Context, name string, dest any) (bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM records WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading record %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return false, fmt.Errorf("decoding record %s: %w", name, err)
	}
	return true, nil
}

// Put encodes value and upserts it under name
func (s *SQLiteStore) Put(ctx context.Context, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing record %s: %w", name, err)
	}
	return nil
}

// Delete removes the named record if present
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting record %s: %w", name, err)
	}
	return nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
