package utils

import (
	"sync"
	"time"

	"market-dashboard/src/logger"
)

// MarketScheduler knows which exchange each symbol trades on and whether
// that exchange is open.
type MarketScheduler struct {
	Logger *logger.Logger

	mu        sync.RWMutex
	symbols   map[string]*TradingCalendar
	calendars map[string]*TradingCalendar // by MIC
	now       func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Logger:    l,
		calendars: make(map[string]*TradingCalendar),
		now:       time.Now,
	}
	ms.UpdateSymbols(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// UpdateSymbols replaces the tracked symbols; calendars are loaded once per MIC
func (ms *MarketScheduler) UpdateSymbols(symbols []string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.symbols = make(map[string]*TradingCalendar, len(symbols))
	for _, symbol := range symbols {
		mic := MICForSymbol(symbol)
		cal, ok := ms.calendars[mic]
		if !ok {
			cal = GetCalendar(mic)
			ms.calendars[mic] = cal
			if cal.Fallback {
				ms.Logger.Warning("No calendar for %s; using Mon-Fri 09:30-16:00 New York", mic)
			}
		}
		ms.symbols[symbol] = cal
	}

	ms.Logger.Info("MarketScheduler: Mapped %d symbols to %d calendars.", len(symbols), len(ms.calendars))
}

// -----------------------------------------------------------------------------

// IsOpen reports whether symbol's market is open now. Unknown symbols use
// the default calendar.
func (ms *MarketScheduler) IsOpen(symbol string) bool {
	ms.mu.RLock()
	cal, ok := ms.symbols[symbol]
	now := ms.now()
	ms.mu.RUnlock()

	if !ok {
		cal = GetCalendar(MICForSymbol(symbol))
	}
	return cal.IsOpenOnMinute(now)
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked market is currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	now := ms.now()
	seen := make(map[*TradingCalendar]bool)
	for _, cal := range ms.symbols {
		if seen[cal] {
			continue
		}
		seen[cal] = true
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// SetClock overrides the time source
func (ms *MarketScheduler) SetClock(now func() time.Time) {
	ms.mu.Lock()
	ms.now = now
	ms.mu.Unlock()
}
