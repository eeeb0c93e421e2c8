// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/chatrelay/pkg/storage/sqlstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id TEXT PRIMARY KEY,
	subject TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	messages TEXT NOT NULL,
	response TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL,
	frames INTEGER NOT NULL DEFAULT 0,
	complete BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_turns_subject_created ON turns(subject, created_at DESC);
`

const upsert = `
INSERT OR REPLACE INTO turns(id, subject, model, messages, response, status, frames, complete, created_at, duration_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Dialect is the SQLite dialect.
var Dialect = sqlstore.Dialect{
	Name:        "sqlite",
	Schema:      schema,
	Placeholder: func(int) string { return "?" },
	Upsert:      upsert,
}

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqlstore.Store
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// writers from the worker pool.
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	store, err := sqlstore.New(context.Background(), db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Driver{Store: store}, nil
}
