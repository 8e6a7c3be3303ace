package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
)

// ErrDisposed is returned by Connect after Dispose
var ErrDisposed = errors.New("stream manager disposed")

// -----------------------------------------------------------------------------
// Manager
// -----------------------------------------------------------------------------

// Manager owns one logical stream connection. It reconnects after every
// closure until Disconnect is called, and delivers state changes and inbound
// messages to listeners in occurrence order on a single dispatcher goroutine.
// Listeners may call Send, Connect and Disconnect from their callbacks.
type Manager struct {
	URL     string
	Logger  *logger.Logger
	Metrics *metrics.Collector

	dialer interfaces.IDialer
	delays *delays

	mu         sync.Mutex
	state      models.MConnectionState
	conn       interfaces.ITransport
	generation uint64
	timer      *time.Timer
	cancelDial context.CancelFunc
	attempts   int
	autoRetry  bool
	disposed   bool

	listenersMu sync.RWMutex
	listeners   []interfaces.IStreamListener

	queue *notificationQueue
	done  chan struct{}
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewManager(url string, dialer interfaces.IDialer, policy ReconnectPolicy, log *logger.Logger, m *metrics.Collector) *Manager {
	if log == nil {
		log = logger.NewLogger(nil, "StreamManager")
	}
	mgr := &Manager{
		URL:     url,
		Logger:  log,
		Metrics: m,
		dialer:  dialer,
		delays:  newDelays(policy),
		state:   models.StateDisconnected,
		queue:   newNotificationQueue(),
		done:    make(chan struct{}),
	}
	go mgr.dispatch()
	return mgr
}

// -----------------------------------------------------------------------------

// AddListener registers l for every subsequent notification
func (m *Manager) AddListener(l interfaces.IStreamListener) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, l)
	m.listenersMu.Unlock()
}

// -----------------------------------------------------------------------------

// State returns the current connection state
func (m *Manager) State() models.MConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Connect opens the transport unless one is open or opening, and enables
// automatic reconnection.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return ErrDisposed
	}
	m.autoRetry = true
	if m.state == models.StateConnecting || m.state == models.StateConnected {
		return nil
	}

	m.stopTimerLocked()
	m.attempts = 0
	m.delays.reset()
	m.openLocked()
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the transport, cancels any pending reconnect and disables
// automatic reconnection until the next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.autoRetry = false
	m.stopTimerLocked()
	m.generation++
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	m.conn = nil
	if m.state != models.StateDisconnected {
		m.setStateLocked(models.StateDisconnected)
	}
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.Logger.Debug("Close on disconnect: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

// Dispose disconnects and stops the dispatcher once pending notifications are
// delivered. The manager cannot be reused afterwards.
func (m *Manager) Dispose() {
	m.Disconnect()

	m.mu.Lock()
	already := m.disposed
	m.disposed = true
	m.mu.Unlock()

	if !already {
		m.queue.close()
	}
}

// -----------------------------------------------------------------------------

// Done is closed when the dispatcher has exited after Dispose
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// -----------------------------------------------------------------------------

// ReconnectPending reports whether a reconnect timer is armed
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// -----------------------------------------------------------------------------
// Send
// -----------------------------------------------------------------------------

// Send writes data when connected; otherwise it is dropped and false returned
func (m *Manager) Send(data []byte) bool {
	m.mu.Lock()
	if m.state != models.StateConnected || m.conn == nil {
		state := m.state
		m.mu.Unlock()
		m.Metrics.ObserveSend(false)
		m.Logger.Debug("Dropping outbound message while %s", state)
		return false
	}
	conn, gen := m.conn, m.generation
	m.mu.Unlock()

	if err := conn.WriteMessage(data); err != nil {
		m.Metrics.ObserveSend(false)
		m.Logger.Warning("Write failed: %v", err)
		m.transportDown(gen, err)
		return false
	}
	m.Metrics.ObserveSend(true)
	return true
}

// -----------------------------------------------------------------------------
// Internals (callers hold m.mu where the name ends in Locked)
// -----------------------------------------------------------------------------

func (m *Manager) openLocked() {
	m.generation++
	gen := m.generation
	m.setStateLocked(models.StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	go m.dial(ctx, cancel, gen)
}

// -----------------------------------------------------------------------------

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	conn, err := m.dialer.Dial(ctx, m.URL)
	cancel()

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	m.cancelDial = nil
	if err != nil {
		m.Logger.Warning("Connect to %s failed: %v", m.URL, err)
		m.downLocked(err)
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.attempts = 0
	m.delays.reset()
	// queued before the read loop starts, so it precedes every message
	m.setStateLocked(models.StateConnected)
	m.mu.Unlock()

	m.Logger.Info("Connected to %s", m.URL)
	go m.readLoop(conn, gen)
}

// -----------------------------------------------------------------------------

func (m *Manager) readLoop(conn interfaces.ITransport, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.transportDown(gen, err)
			return
		}

		m.mu.Lock()
		if gen != m.generation {
			m.mu.Unlock()
			return
		}
		m.queue.push(notification{kind: notifyMessage, data: data})
		m.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------

// transportDown handles a read or write failure on the connection of gen
func (m *Manager) transportDown(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation || m.conn == nil {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.conn = nil
	m.generation++
	m.downLocked(err)
	m.mu.Unlock()

	conn.Close()
}

// -----------------------------------------------------------------------------

// downLocked records a closure: Errored first unless the close was normal,
// then Disconnected, then a reconnect if allowed.
func (m *Manager) downLocked(err error) {
	if err != nil && !errors.Is(err, ErrClosed) {
		m.Logger.Warning("Stream error: %v", err)
		m.setStateLocked(models.StateErrored)
	} else {
		m.Logger.Info("Stream closed")
	}
	m.setStateLocked(models.StateDisconnected)
	m.scheduleLocked()
}

// -----------------------------------------------------------------------------

func (m *Manager) scheduleLocked() {
	if !m.autoRetry || m.disposed {
		return
	}
	limit := m.delays.policy.MaxAttempts
	if limit > 0 && m.attempts >= limit {
		m.Logger.Error("Giving up after %d reconnect attempts", m.attempts)
		return
	}

	delay := m.delays.next()
	m.attempts++
	gen := m.generation
	m.Metrics.ObserveReconnect()
	m.Logger.Info("Reconnecting in %v (attempt %d)", delay, m.attempts)

	m.timer = time.AfterFunc(delay, func() { m.reconnect(gen) })
}

// -----------------------------------------------------------------------------

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || !m.autoRetry || m.disposed {
		return
	}
	m.timer = nil
	if m.state == models.StateConnecting || m.state == models.StateConnected {
		return
	}
	m.openLocked()
}

// -----------------------------------------------------------------------------

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) setStateLocked(s models.MConnectionState) {
	m.state = s
	m.Metrics.ObserveState(s)
	m.queue.push(notification{kind: notifyState, state: s})
}

// -----------------------------------------------------------------------------
// Dispatcher
// -----------------------------------------------------------------------------

func (m *Manager) dispatch() {
	defer close(m.done)

	for {
		n, ok := m.queue.pop()
		if !ok {
			return
		}

		m.listenersMu.RLock()
		listeners := make([]interfaces.IStreamListener, len(m.listeners))
		copy(listeners, m.listeners)
		m.listenersMu.RUnlock()

		for _, l := range listeners {
			m.deliver(l, n)
		}
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) deliver(l interfaces.IStreamListener, n notification) {
	defer func() {
		if r := recover(); r != nil {
			m.Logger.Error("Listener panic: %v", r)
		}
	}()

	switch n.kind {
	case notifyState:
		l.OnStateChange(n.state)
	case notifyMessage:
		l.OnMessage(n.data)
	}
}
