package feed

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"
	"market-dashboard/src/utils"

	"github.com/shopspring/decimal"
)

// basePrices seeds the random walk; other symbols start at 100
var basePrices = map[string]float64{
	"AAPL":  185.0,
	"GOOGL": 140.0,
	"MSFT":  375.0,
	"AMZN":  170.0,
	"META":  480.0,
	"NVDA":  850.0,
	"TSLA":  240.0,
	"JPM":   190.0,
}

var (
	maxDrift      = decimal.RequireFromString("0.001")  // per tick
	spreadPercent = decimal.RequireFromString("0.0002") // half-spread
	minTick       = decimal.RequireFromString("0.01")
)

// -----------------------------------------------------------------------------

// SyntheticSource is a random-walk exchange producing trades and quotes
type SyntheticSource struct {
	Config    models.MSyntheticConfig
	Logger    *logger.Logger
	Scheduler *utils.MarketScheduler

	symbols atomic.Value // []string

	mu      sync.Mutex
	rng     *rand.Rand
	prices  map[string]decimal.Decimal
	counter uint64
	cancel  context.CancelFunc
	running atomic.Bool
}

// -----------------------------------------------------------------------------

func NewSyntheticSource(cfg models.MSyntheticConfig, scheduler *utils.MarketScheduler, log *logger.Logger) *SyntheticSource {
	return newSyntheticSource(cfg, scheduler, log, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

func newSyntheticSource(cfg models.MSyntheticConfig, scheduler *utils.MarketScheduler, log *logger.Logger, rng *rand.Rand) *SyntheticSource {
	s := &SyntheticSource{
		Config:    cfg,
		Logger:    log,
		Scheduler: scheduler,
		rng:       rng,
		prices:    make(map[string]decimal.Decimal),
	}
	s.UpdateSymbols(cfg.Symbols)
	return s
}

// -----------------------------------------------------------------------------

func (s *SyntheticSource) Name() string {
	return s.Config.Name
}

// -----------------------------------------------------------------------------

func (s *SyntheticSource) UpdateSymbols(symbols []string) error {
	symbols = protocol.NormalizeSymbols(symbols)

	s.mu.Lock()
	for _, sym := range symbols {
		if _, ok := s.prices[sym]; ok {
			continue
		}
		base, ok := basePrices[sym]
		if !ok {
			base = 100
		}
		s.prices[sym] = decimal.NewFromFloat(base)
	}
	s.mu.Unlock()

	s.symbols.Store(symbols)
	if s.Scheduler != nil {
		s.Scheduler.UpdateSymbols(symbols)
	}
	return nil
}

func (s *SyntheticSource) getSymbols() []string {
	if v, ok := s.symbols.Load().([]string); ok {
		return v
	}
	return nil
}

// -----------------------------------------------------------------------------

// Start emits events until ctx is cancelled or Stop is called. A disabled
// source returns immediately.
func (s *SyntheticSource) Start(ctx context.Context, out chan<- *models.MMarketEvent, wg *sync.WaitGroup) error {
	if !s.Config.Enabled {
		s.Logger.Info("Synthetic feed %s is disabled", s.Name())
		wg.Done()
		return nil
	}
	if len(s.getSymbols()) == 0 {
		return errors.New("synthetic feed has no symbols")
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("synthetic feed already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.counter = 0
	s.mu.Unlock()

	s.Logger.Info("Synthetic feed %s started: %d symbols, %d msg/s, burst=%v",
		s.Name(), len(s.getSymbols()), s.Config.MessagesPerSecond, s.Config.BurstEnabled)

	go func() {
		defer wg.Done()
		defer s.running.Store(false)
		s.run(ctx, out)
	}()
	return nil
}

// -----------------------------------------------------------------------------

func (s *SyntheticSource) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *SyntheticSource) run(ctx context.Context, out chan<- *models.MMarketEvent) {
	rate := s.Config.MessagesPerSecond
	if rate <= 0 {
		rate = 1
	}
	interval := time.Second / time.Duration(rate)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	burstEvery := time.Duration(s.Config.BurstIntervalMs) * time.Millisecond
	burstFor := time.Duration(s.Config.BurstDurationMs) * time.Millisecond
	nextBurst := time.Now().Add(burstEvery)
	var burstUntil time.Time

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("Synthetic feed %s stopped", s.Name())
			return
		case now := <-ticker.C:
			n := 1
			if s.Config.BurstEnabled && burstEvery > 0 {
				if !now.Before(nextBurst) {
					burstUntil = now.Add(burstFor)
					nextBurst = now.Add(burstEvery)
					s.Logger.Debug("Synthetic feed %s entering burst mode", s.Name())
				}
				if now.Before(burstUntil) && s.Config.BurstMultiplier > 1 {
					n = s.Config.BurstMultiplier
				}
			}

			for i := 0; i < n; i++ {
				event := s.generate()
				if event == nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

// generate produces the next event, or nil when the chosen symbol's market
// is closed and the feed follows market hours
func (s *SyntheticSource) generate() *models.MMarketEvent {
	symbols := s.getSymbols()
	if len(symbols) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := symbols[s.rng.IntN(len(symbols))]
	if s.Config.MarketHoursOnly && s.Scheduler != nil && !s.Scheduler.IsOpen(symbol) {
		return nil
	}

	s.counter++
	ratio := uint64(max(s.Config.TradeToQuoteRatio, 0))
	isTrade := s.counter%(ratio+1) == 0

	price := s.nextPriceLocked(symbol)
	event := &models.MMarketEvent{
		Symbol:    symbol,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    s.Name(),
	}

	if isTrade {
		side := models.SideBuy
		if s.rng.IntN(2) == 1 {
			side = models.SideSell
		}
		event.EventType = models.EventTypeTrade
		event.Trade = &models.MTrade{Price: price, Size: s.lotLocked(), Side: side}
		return event
	}

	half := decimal.Max(minTick, price.Mul(spreadPercent)).Round(4)
	event.EventType = models.EventTypeQuote
	event.Quote = &models.MQuote{
		BidPrice: price.Sub(half),
		BidSize:  s.lotLocked(),
		AskPrice: price.Add(half),
		AskSize:  s.lotLocked(),
	}
	return event
}

// -----------------------------------------------------------------------------

// nextPriceLocked drifts the symbol's price by up to 0.1% and rounds to cents
func (s *SyntheticSource) nextPriceLocked(symbol string) decimal.Decimal {
	drift := decimal.NewFromFloat(s.rng.Float64()*2 - 1).Mul(maxDrift)
	price := s.prices[symbol].Mul(decimal.NewFromInt(1).Add(drift)).Round(2)
	if price.LessThan(minTick) {
		price = minTick
	}
	s.prices[symbol] = price
	return price
}

// lotLocked is a round lot between 100 and 10000
func (s *SyntheticSource) lotLocked() int64 {
	return int64(s.rng.IntN(100)+1) * 100
}
