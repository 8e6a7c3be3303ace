package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresStore struct {
	sqlStore
	Config *models.MConfig
	Schema string
}

// -----------------------------------------------------------------------------

// NewPostgresStore keeps its tables in a schema named after the executable
func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) (*PostgresStore, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return newPostgresStore(cfg, log, name), nil
}

func newPostgresStore(cfg *models.MConfig, log *logger.Logger, schema string) *PostgresStore {
	return &PostgresStore{
		Config: cfg,
		Schema: schema,
		sqlStore: sqlStore{
			Logger: log,
			dialect: dialect{
				name:     "postgres",
				table:    func(name string) string { return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name) },
				numbered: true,
				conflict: postgresConflict,
			},
		},
	}
}

func postgresConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Name() {
	case "unique_violation", "foreign_key_violation":
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	// the database often comes up together with the service
	_, err = helpers.RetryWithBackoff(ctx, d.Logger, "postgres ping", 5, 500*time.Millisecond,
		func() (struct{}, error) { return struct{}{}, db.PingContext(ctx) })
	if err != nil {
		db.Close()
		return err
	}
	d.DB = db

	schema := pq.QuoteIdentifier(d.Schema)
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}
	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) createTables(ctx context.Context) error {
	tables := []struct{ name, ddl string }{
		{"instruments", `
			CREATE TABLE IF NOT EXISTS {instruments} (
				id BIGSERIAL PRIMARY KEY,
				symbol TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				exchange TEXT NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT TRUE
			);`},
		{"feeds", `
			CREATE TABLE IF NOT EXISTS {feeds} (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				provider TEXT NOT NULL DEFAULT '',
				protocol TEXT NOT NULL DEFAULT '',
				endpoint TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT TRUE
			);`},
		{"subscriptions", `
			CREATE TABLE IF NOT EXISTS {subscriptions} (
				id BIGSERIAL PRIMARY KEY,
				instrument_id BIGINT NOT NULL REFERENCES {instruments}(id),
				feed_id BIGINT NOT NULL REFERENCES {feeds}(id),
				priority INTEGER NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				UNIQUE (instrument_id, feed_id)
			);`},
	}

	for _, t := range tables {
		if _, err := d.DB.ExecContext(ctx, d.bind(t.ddl)); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	return nil
}
