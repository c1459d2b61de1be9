// Package db provides the SQLite connection and schema for goveed.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Fade ledger - append-only history, several rows per session (started, then one terminal phase)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS fade_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			device TEXT NOT NULL,
			session_id TEXT NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_fade_ledger_type_ts ON fade_ledger(event_type, timestamp);
		CREATE INDEX IF NOT EXISTS idx_fade_ledger_device_ts ON fade_ledger(device, timestamp);
		CREATE INDEX IF NOT EXISTS idx_fade_ledger_session ON fade_ledger(session_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create fade_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
