package interfaces

import (
	"context"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// IEventExchanger fans market events out to connected stream clients.
// -----------------------------------------------------------------------------

type IEventExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast routes one event to every interested client
	Broadcast(event *models.MMarketEvent)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}

// -----------------------------------------------------------------------------
// IEventPublisher forwards market events to an external backbone.
// -----------------------------------------------------------------------------

type IEventPublisher interface {
	Publish(ctx context.Context, event *models.MMarketEvent) error
	Close() error
}
