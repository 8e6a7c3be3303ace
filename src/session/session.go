package session

import (
	"errors"
	"fmt"
	"sync"

	"market-dashboard/src/cache"
	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"
	"market-dashboard/src/stream"
	"market-dashboard/src/subscription"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------

// ChangeKind tells observers what moved
type ChangeKind string

const (
	ChangeState ChangeKind = "state"
	ChangeEvent ChangeKind = "event"
)

// Change is passed to observers after the session has applied it
type Change struct {
	Kind  ChangeKind
	State models.MConnectionState
	Event *models.MMarketEvent
}

// MStatus is the session summary shown by the dashboard
type MStatus struct {
	SessionID string                  `json:"sessionId"`
	URL       string                  `json:"url"`
	State     models.MConnectionState `json:"state"`
	Desired   []string                `json:"subscriptions"`
	Stats     cache.MStats            `json:"stats"`
}

// -----------------------------------------------------------------------------

// Session is one dashboard's live stream client: a connection manager, the
// desired subscriptions and the latest state per symbol. Every reaction to
// the transport runs on the manager's dispatcher.
type Session struct {
	ID      string
	Config  *models.MConfig
	Logger  *logger.Logger
	Metrics *metrics.Collector

	Manager *stream.Manager
	Tracker *subscription.Tracker
	Cache   *cache.LatestState

	observersMu sync.RWMutex
	observers   []func(Change)
}

// -----------------------------------------------------------------------------

// NewSession builds the session; nothing is dialled until Start
func NewSession(cfg *models.MConfig, dialer interfaces.IDialer, log *logger.Logger, m *metrics.Collector) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session requires a config")
	}
	if log == nil {
		log = logger.NewLogger(cfg, "Session")
	}

	url := cfg.Stream.URL
	if url == "" {
		resolved, err := stream.ResolveStreamURL(cfg.Stream.PageURL, cfg.Stream.Path)
		if err != nil {
			return nil, helpers.NewConfigurationError("resolve stream url", err)
		}
		url = resolved
	}

	s := &Session{
		ID:      uuid.NewString(),
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Cache:   cache.NewLatestState(),
	}
	s.Manager = stream.NewManager(url, dialer, stream.PolicyFromConfig(cfg.Stream.Reconnect),
		logger.NewLogger(cfg, "StreamManager"), m)
	s.Tracker = subscription.NewTracker(s.Manager, logger.NewLogger(cfg, "SubscriptionTracker"))

	// tracker first: the replay goes out before observers hear about Connected
	s.Manager.AddListener(s.Tracker)
	s.Manager.AddListener(s)
	return s, nil
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start subscribes the default symbols and connects
func (s *Session) Start() error {
	s.Logger.Info("Session %s streaming from %s", s.ID, s.Manager.URL)
	s.Tracker.Subscribe(s.Config.Stream.DefaultSymbols)
	if err := s.Manager.Connect(); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close tears the connection down and cancels any pending reconnect
func (s *Session) Close() {
	s.Manager.Dispose()
	s.Logger.Info("Session %s closed", s.ID)
}

// -----------------------------------------------------------------------------
// Subscriptions and state
// -----------------------------------------------------------------------------

func (s *Session) Subscribe(symbols []string) {
	s.Tracker.Subscribe(symbols)
}

func (s *Session) Unsubscribe(symbols []string) {
	s.Tracker.Unsubscribe(symbols)
}

func (s *Session) Snapshot() map[string]models.MMarketEvent {
	return s.Cache.Snapshot()
}

func (s *Session) State() models.MConnectionState {
	return s.Manager.State()
}

func (s *Session) Status() MStatus {
	return MStatus{
		SessionID: s.ID,
		URL:       s.Manager.URL,
		State:     s.Manager.State(),
		Desired:   s.Tracker.Desired(),
		Stats:     s.Cache.Stats(),
	}
}

// -----------------------------------------------------------------------------

// OnChange registers fn to run after every state change and cache update.
// fn runs on the dispatcher and must not block.
func (s *Session) OnChange(fn func(Change)) {
	s.observersMu.Lock()
	s.observers = append(s.observers, fn)
	s.observersMu.Unlock()
}

// -----------------------------------------------------------------------------
// Stream listener
// -----------------------------------------------------------------------------

func (s *Session) OnStateChange(state models.MConnectionState) {
	s.Logger.Info("Stream %s", state)
	s.notify(Change{Kind: ChangeState, State: state})
}

// -----------------------------------------------------------------------------

func (s *Session) OnMessage(raw []byte) {
	msg, err := protocol.Classify(raw)
	if err != nil {
		s.Metrics.ObserveParseError()
		s.Logger.Warning("Discarding message: %v", err)
		return
	}

	if msg.IsAck() {
		s.Metrics.ObserveAck()
		s.Logger.Debug("Ack %s %v", msg.Ack.Status, msg.Ack.Symbols)
		return
	}

	s.Cache.Ingest(msg.Event)
	s.Metrics.ObserveEvent(msg.Event.EventType)
	s.notify(Change{Kind: ChangeEvent, Event: msg.Event})
}

// -----------------------------------------------------------------------------

func (s *Session) notify(c Change) {
	s.observersMu.RLock()
	observers := s.observers
	s.observersMu.RUnlock()

	for _, fn := range observers {
		fn(c)
	}
}
