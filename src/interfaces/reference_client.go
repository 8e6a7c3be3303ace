package interfaces

import (
	"context"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IReferenceClient is the dashboard's view of the reference-data REST API.
// Non-2xx responses surface as *helpers.FetchError.
// -----------------------------------------------------------------------------

type IReferenceClient interface {
	ListInstruments(ctx context.Context) ([]models.MInstrument, error)
	GetInstrument(ctx context.Context, id int64) (models.MInstrument, error)
	CreateInstrument(ctx context.Context, in models.MInstrument) (models.MInstrument, error)
	UpdateInstrument(ctx context.Context, id int64, in models.MInstrument) (models.MInstrument, error)
	DeleteInstrument(ctx context.Context, id int64) error

	ListFeeds(ctx context.Context) ([]models.MFeed, error)
	GetFeed(ctx context.Context, id int64) (models.MFeed, error)
	CreateFeed(ctx context.Context, in models.MFeed) (models.MFeed, error)
	UpdateFeed(ctx context.Context, id int64, in models.MFeed) (models.MFeed, error)
	DeleteFeed(ctx context.Context, id int64) error

	ListSubscriptions(ctx context.Context) ([]models.MSubscription, error)
	GetSubscription(ctx context.Context, id int64) (models.MSubscription, error)
	CreateSubscription(ctx context.Context, in models.MSubscription) (models.MSubscription, error)
	UpdateSubscription(ctx context.Context, id int64, in models.MSubscription) (models.MSubscription, error)
	DeleteSubscription(ctx context.Context, id int64) error
}
