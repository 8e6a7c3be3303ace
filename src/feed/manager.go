package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
)

// Manager runs every feed source under one context and fans their events
// into the exchange, and optionally into a publisher
type Manager struct {
	Sources   map[string]interfaces.IFeedSource
	Exchange  interfaces.IEventExchanger
	Publisher interfaces.IEventPublisher
	Logger    *logger.Logger
	Metrics   *metrics.Collector
	Errors    *helpers.ErrorHandler

	mu     sync.RWMutex
	events chan *models.MMarketEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	pumpWG sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewManager(sources []interfaces.IFeedSource, exchange interfaces.IEventExchanger, log *logger.Logger, m *metrics.Collector) *Manager {
	mgr := &Manager{
		Sources:  make(map[string]interfaces.IFeedSource),
		Exchange: exchange,
		Logger:   log,
		Metrics:  m,
		Errors:   helpers.NewErrorHandler(log),
	}
	for _, s := range sources {
		mgr.Sources[s.Name()] = s
	}
	return mgr
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *Manager) AddSource(source interfaces.IFeedSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}
	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	if m.ctx != nil {
		return m.startLocked(source)
	}
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *Manager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}
	m.Errors.Handle(source.Stop(), "stopping source "+name)
	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// SourceNames lists the registered sources, sorted
func (m *Manager) SourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.Sources))
	for name := range m.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------

// Start starts every source and the pump that feeds the exchange
func (m *Manager) Start(parentCtx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("feed manager is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancel = cancel
	m.events = make(chan *models.MMarketEvent, 1024)

	m.pumpWG.Add(1)
	go m.pump(ctx, m.events)

	for _, src := range m.Sources {
		if err := m.startLocked(src); err != nil {
			m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			m.abortLocked()
			return err
		}
	}
	return nil
}

// abortLocked unwinds a partial Start so the manager can be started again
func (m *Manager) abortLocked() {
	m.cancel()
	m.wg.Wait()
	m.pumpWG.Wait()
	m.ctx = nil
	m.cancel = nil
}

func (m *Manager) startLocked(src interfaces.IFeedSource) error {
	m.wg.Add(1)
	if err := src.Start(m.ctx, m.events, &m.wg); err != nil {
		m.wg.Done()
		return fmt.Errorf("failed to start source %s: %w", src.Name(), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels every source and waits for them and the pump to exit
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()
		return nil
	}
	m.Logger.Info("Stopping feed manager...")
	m.cancel()
	m.ctx = nil
	m.cancel = nil
	m.mu.Unlock()

	m.wg.Wait()
	m.pumpWG.Wait()

	if m.Publisher != nil {
		m.Errors.Handle(m.Publisher.Close(), "closing publisher")
	}
	m.Logger.Info("Feed manager stopped.")
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) UpdateSymbols(symbols []string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, src := range m.Sources {
		if err := src.UpdateSymbols(symbols); err != nil {
			m.Logger.Error("Failed to update symbols for %s: %v", src.Name(), err)
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) pump(ctx context.Context, events <-chan *models.MMarketEvent) {
	defer m.pumpWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			m.Metrics.ObserveFeedEvent(event.Source)
			m.Exchange.Broadcast(event)
			if m.Publisher != nil {
				m.Errors.Handle(m.Publisher.Publish(ctx, event), "publishing "+event.Symbol)
			}
		}
	}
}
