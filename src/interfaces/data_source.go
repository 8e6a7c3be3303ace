package interfaces

import (
	"context"
	"market-dashboard/src/models"
	"sync"
)

// -----------------------------------------------------------------------------
// IFeedSource produces market events for the data plane.
// -----------------------------------------------------------------------------

type IFeedSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// UpdateSymbols replaces the set of symbols the source produces
	UpdateSymbols(symbols []string) error

	// -----------------------------------------------------------------------------

	// Start begins producing events
	// ctx: controls the lifecycle (cancellation stops the source)
	// out: channel to push events to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, out chan<- *models.MMarketEvent, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source outside of context cancellation
	Stop() error
}
