package cache

import (
	"sort"
	"sync"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------

// MStats summarises the cache for the dashboard stat cards
type MStats struct {
	Symbols       int   `json:"symbols"`
	LatestTrades  int   `json:"latestTrades"`
	LatestQuotes  int   `json:"latestQuotes"`
	TotalIngested int64 `json:"totalIngested"`
}

// -----------------------------------------------------------------------------

// LatestState keeps the most recently received event per symbol.
// Arrival order wins; event timestamps are never compared.
type LatestState struct {
	mu       sync.RWMutex
	events   map[string]models.MMarketEvent
	ingested int64
}

// -----------------------------------------------------------------------------

func NewLatestState() *LatestState {
	return &LatestState{
		events: make(map[string]models.MMarketEvent),
	}
}

// -----------------------------------------------------------------------------

// Ingest overwrites the entry for the event's symbol
func (c *LatestState) Ingest(event *models.MMarketEvent) {
	if event == nil {
		return
	}
	c.mu.Lock()
	c.events[event.Symbol] = *event
	c.ingested++
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get returns the latest event for symbol
func (c *LatestState) Get(symbol string) (models.MMarketEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[symbol]
	return e, ok
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy of the symbol map
func (c *LatestState) Snapshot() map[string]models.MMarketEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.MMarketEvent, len(c.events))
	for k, v := range c.events {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------

// Sorted returns the snapshot ordered by symbol
func (c *LatestState) Sorted() []models.MMarketEvent {
	snap := c.Snapshot()
	out := make([]models.MMarketEvent, 0, len(snap))
	for _, v := range snap {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// -----------------------------------------------------------------------------

func (c *LatestState) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// -----------------------------------------------------------------------------

func (c *LatestState) Stats() MStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := MStats{Symbols: len(c.events), TotalIngested: c.ingested}
	for _, e := range c.events {
		switch e.EventType {
		case models.EventTypeTrade:
			stats.LatestTrades++
		case models.EventTypeQuote:
			stats.LatestQuotes++
		}
	}
	return stats
}
