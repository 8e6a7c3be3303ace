package interfaces

import (
	"context"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IReferenceStore defines the contract for reference-data persistence.
// Missing rows are reported as storage.ErrNotFound, uniqueness violations
// as storage.ErrConflict.
// -----------------------------------------------------------------------------

type IReferenceStore interface {

	// Initialize sets up the database schema and tables.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	ListInstruments(ctx context.Context) ([]models.MInstrument, error)
	GetInstrument(ctx context.Context, id int64) (models.MInstrument, error)
	CreateInstrument(ctx context.Context, in models.MInstrument) (models.MInstrument, error)
	UpdateInstrument(ctx context.Context, id int64, in models.MInstrument) (models.MInstrument, error)
	DeleteInstrument(ctx context.Context, id int64) error

	// -----------------------------------------------------------------------------

	ListFeeds(ctx context.Context) ([]models.MFeed, error)
	GetFeed(ctx context.Context, id int64) (models.MFeed, error)
	CreateFeed(ctx context.Context, in models.MFeed) (models.MFeed, error)
	UpdateFeed(ctx context.Context, id int64, in models.MFeed) (models.MFeed, error)
	DeleteFeed(ctx context.Context, id int64) error

	// -----------------------------------------------------------------------------

	ListSubscriptions(ctx context.Context) ([]models.MSubscription, error)
	GetSubscription(ctx context.Context, id int64) (models.MSubscription, error)
	CreateSubscription(ctx context.Context, in models.MSubscription) (models.MSubscription, error)
	UpdateSubscription(ctx context.Context, id int64, in models.MSubscription) (models.MSubscription, error)
	DeleteSubscription(ctx context.Context, id int64) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
