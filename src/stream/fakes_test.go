package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// fakeTransport
// -----------------------------------------------------------------------------

type fakeTransport struct {
	inbound chan []byte
	fail    chan error

	mu        sync.Mutex
	written   [][]byte
	writeErr  error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport(preloaded ...string) *fakeTransport {
	t := &fakeTransport{
		inbound: make(chan []byte, 64),
		fail:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
	for _, m := range preloaded {
		t.inbound <- []byte(m)
	}
	return t
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case d := <-t.inbound:
		return d, nil
	case err := <-t.fail:
		return nil, err
	case <-t.closed:
		return nil, ErrClosed
	}
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.written = append(t.written, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.written))
	for i, w := range t.written {
		out[i] = string(w)
	}
	return out
}

// peerClose simulates the server closing the socket normally
func (t *fakeTransport) peerClose() { t.fail <- ErrClosed }

// peerError simulates an abrupt transport failure
func (t *fakeTransport) peerError() { t.fail <- io.ErrUnexpectedEOF }

// -----------------------------------------------------------------------------
// fakeDialer
// -----------------------------------------------------------------------------

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	failErr error
	block   chan struct{}
	next    func() *fakeTransport
	opened  []*fakeTransport
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (interfaces.ITransport, error) {
	d.mu.Lock()
	d.dials++
	block, failErr := d.block, d.failErr
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failErr != nil {
		return nil, failErr
	}

	t := newFakeTransport()
	if d.next != nil {
		t = d.next()
	}
	d.mu.Lock()
	d.opened = append(d.opened, t)
	d.mu.Unlock()
	return t, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) Last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.opened) == 0 {
		return nil
	}
	return d.opened[len(d.opened)-1]
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.failErr = err
	d.mu.Unlock()
}

// -----------------------------------------------------------------------------
// recorder
// -----------------------------------------------------------------------------

type recorder struct {
	mu      sync.Mutex
	entries []string
	onState func(models.MConnectionState)
}

func (r *recorder) OnStateChange(s models.MConnectionState) {
	r.mu.Lock()
	r.entries = append(r.entries, "state:"+s.String())
	r.mu.Unlock()
	if r.onState != nil {
		r.onState(s)
	}
}

func (r *recorder) OnMessage(raw []byte) {
	r.mu.Lock()
	r.entries = append(r.entries, "msg:"+string(raw))
	r.mu.Unlock()
}

func (r *recorder) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func (r *recorder) Count(entry string) int {
	n := 0
	for _, e := range r.Entries() {
		if e == entry {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

var errBoom = errors.New("connection refused")

func quietLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "ERROR", "StreamManager")
}

func fastPolicy(delay time.Duration) ReconnectPolicy {
	return ReconnectPolicy{InitialDelay: delay, MaxDelay: delay, Multiplier: 1}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestManager(t *testing.T, d *fakeDialer, policy ReconnectPolicy) (*Manager, *recorder) {
	t.Helper()
	m := NewManager("ws://test/ws/market-data", d, policy, quietLogger(), nil)
	rec := &recorder{}
	m.AddListener(rec)
	t.Cleanup(m.Dispose)
	return m, rec
}
