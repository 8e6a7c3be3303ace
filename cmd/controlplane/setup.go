package main

import (
	"context"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/storage"
)

// -----------------------------------------------------------------------------

// setupDatabase initializes the reference store based on config
func setupDatabase(ctx context.Context, config *models.MConfig, appLogger *logger.Logger) (interfaces.IReferenceStore, error) {
	var db interfaces.IReferenceStore
	var err error

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresStore(config, logger.NewLogger(config, "PostgresStore"))
	default:
		// Default to SQLite
		db, err = storage.NewSQLiteStore(config, logger.NewLogger(config, "SQLiteStore"))
	}

	if err != nil {
		appLogger.Error("Failed to init db: %v", err)
		return nil, err
	}
	if err := db.Initialize(ctx); err != nil {
		appLogger.Error("Failed to migrate db: %v", err)
		return nil, err
	}
	return db, nil
}
