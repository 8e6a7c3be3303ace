package subscription

import (
	"sort"
	"sync"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"
)

// -----------------------------------------------------------------------------

// Tracker holds the desired symbol set independently of the connection and
// replays it on every (re)connect.
type Tracker struct {
	Logger *logger.Logger

	sender interfaces.ISender

	// sendMu orders set changes with their wire messages, replays included
	sendMu  sync.Mutex
	mu      sync.Mutex
	desired map[string]struct{}
}

// -----------------------------------------------------------------------------

func NewTracker(sender interfaces.ISender, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.NewLogger(nil, "SubscriptionTracker")
	}
	return &Tracker{
		Logger:  log,
		sender:  sender,
		desired: make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Subscribe adds symbols to the desired set and tells the server right away.
// The sender drops the message unless connected; the next replay covers it.
func (t *Tracker) Subscribe(symbols []string) {
	t.change(models.ActionSubscribe, symbols)
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbols from the desired set
func (t *Tracker) Unsubscribe(symbols []string) {
	t.change(models.ActionUnsubscribe, symbols)
}

// -----------------------------------------------------------------------------

func (t *Tracker) change(action models.MAction, symbols []string) {
	symbols = protocol.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	for _, s := range symbols {
		if action == models.ActionSubscribe {
			t.desired[s] = struct{}{}
		} else {
			delete(t.desired, s)
		}
	}
	t.mu.Unlock()

	t.send(action, symbols)
}

// -----------------------------------------------------------------------------

// OnStateChange replays the full desired set on every transition into
// Connected, as a single subscribe message.
func (t *Tracker) OnStateChange(state models.MConnectionState) {
	if state == models.StateConnected {
		t.Replay()
	}
}

// OnMessage ignores inbound traffic; acks are informational
func (t *Tracker) OnMessage([]byte) {}

// -----------------------------------------------------------------------------

// Replay sends the whole desired set; nothing is sent when it is empty
func (t *Tracker) Replay() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	symbols := t.Desired()
	if len(symbols) == 0 {
		return
	}
	t.Logger.Info("Replaying subscription for %d symbols", len(symbols))
	t.send(models.ActionSubscribe, symbols)
}

// -----------------------------------------------------------------------------

// Desired returns a sorted copy of the desired set
func (t *Tracker) Desired() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.desired))
	for s := range t.desired {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

func (t *Tracker) Contains(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.desired[symbol]
	return ok
}

// -----------------------------------------------------------------------------

func (t *Tracker) send(action models.MAction, symbols []string) {
	data, err := protocol.EncodeCommand(action, symbols)
	if err != nil {
		t.Logger.Error("Encode %s: %v", action, err)
		return
	}
	if !t.sender.Send(data) {
		t.Logger.Debug("%s %v not sent; it will be replayed on connect", action, symbols)
	}
}
