// Package store persists detections and per-stage candidate audit records
// backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages matching persistence backed by SQLite. It implements both
// domain.DetectionStore and domain.StageStore. Concurrent pipeline items
// write disjoint detection keys, so per-row serialization at the database
// layer is the only locking required.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS detections (
        id TEXT PRIMARY KEY,
        image_id TEXT NOT NULL,
        project_id TEXT NOT NULL,
        item_index INTEGER NOT NULL DEFAULT 0,
        x1 INTEGER NOT NULL DEFAULT 0,
        y1 INTEGER NOT NULL DEFAULT 0,
        x2 INTEGER NOT NULL DEFAULT 0,
        y2 INTEGER NOT NULL DEFAULT 0,
        brand TEXT,
        product_name TEXT,
        size TEXT,
        flavor TEXT,
        category TEXT,
        brand_confidence REAL NOT NULL DEFAULT 0,
        name_confidence REAL NOT NULL DEFAULT 0,
        size_confidence REAL NOT NULL DEFAULT 0,
        flavor_confidence REAL NOT NULL DEFAULT 0,
        category_confidence REAL NOT NULL DEFAULT 0,
        fully_analyzed INTEGER NOT NULL DEFAULT 0,
        crop_ref TEXT,
        selected_key TEXT,
        selected_name TEXT,
        selected_brand TEXT,
        selected_category TEXT,
        selected_image TEXT,
        selection_method TEXT,
        matched_at TEXT
    )`,
	`CREATE INDEX IF NOT EXISTS idx_detections_image ON detections(image_id)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_project ON detections(project_id)`,
	`CREATE TABLE IF NOT EXISTS stage_records (
        detection_id TEXT NOT NULL,
        candidate_key TEXT NOT NULL,
        stage TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT '',
        brand TEXT,
        size TEXT,
        category TEXT,
        image_ref TEXT,
        raw TEXT,
        match_status TEXT,
        confidence REAL,
        similarity REAL,
        reason TEXT,
        updated_at TEXT NOT NULL,
        UNIQUE(detection_id, candidate_key, stage)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_stage_records_detection ON stage_records(detection_id)`,
}

func nullableString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func stringOrEmpty(value sql.NullString) string {
	if value.Valid {
		return value.String
	}
	return ""
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
