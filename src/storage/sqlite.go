package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// -----------------------------------------------------------------------------

type SQLiteStore struct {
	sqlStore
	Config *models.MConfig
}

// -----------------------------------------------------------------------------

func NewSQLiteStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteStore, error) {
	if cfg.Storage.DBPath == "" {
		return nil, errors.New("sqlite store requires storage.db_path")
	}
	return &SQLiteStore{
		Config: cfg,
		sqlStore: sqlStore{
			Logger: log,
			dialect: dialect{
				name:     "sqlite",
				table:    func(name string) string { return name },
				conflict: sqliteConflict,
			},
		},
	}, nil
}

func sqliteConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	d.DB = db

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("SQLite reference store ready at %s", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) createTables(ctx context.Context) error {
	tables := []struct{ name, ddl string }{
		{"instruments", `
			CREATE TABLE IF NOT EXISTS instruments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				symbol TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				exchange TEXT NOT NULL DEFAULT '',
				active INTEGER NOT NULL DEFAULT 1
			);`},
		{"feeds", `
			CREATE TABLE IF NOT EXISTS feeds (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				provider TEXT NOT NULL DEFAULT '',
				protocol TEXT NOT NULL DEFAULT '',
				endpoint TEXT NOT NULL DEFAULT '',
				enabled INTEGER NOT NULL DEFAULT 1
			);`},
		{"subscriptions", `
			CREATE TABLE IF NOT EXISTS subscriptions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				instrument_id INTEGER NOT NULL REFERENCES instruments(id),
				feed_id INTEGER NOT NULL REFERENCES feeds(id),
				priority INTEGER NOT NULL DEFAULT 0,
				active INTEGER NOT NULL DEFAULT 1,
				UNIQUE (instrument_id, feed_id)
			);`},
	}

	for _, t := range tables {
		if _, err := d.DB.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}
