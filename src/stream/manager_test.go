package stream

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"market-dashboard/src/models"
)

func TestConnectedPrecedesMessages(t *testing.T) {
	d := &fakeDialer{next: func() *fakeTransport {
		return newFakeTransport("m1", "m2", "m3")
	}}
	m, rec := newTestManager(t, d, fastPolicy(time.Hour))

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	eventually(t, "three messages", func() bool { return len(rec.Entries()) == 5 })

	want := []string{"state:connecting", "state:connected", "msg:m1", "msg:m2", "msg:m3"}
	if got := rec.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	m, rec := newTestManager(t, d, fastPolicy(time.Hour))

	for i := 0; i < 3; i++ {
		m.Connect()
	}
	if m.State() != models.StateConnecting {
		t.Fatalf("state = %v", m.State())
	}
	eventually(t, "dial", func() bool { return d.Dials() == 1 })

	close(d.block)
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	m.Connect()
	m.Connect()

	time.Sleep(20 * time.Millisecond)
	if d.Dials() != 1 {
		t.Fatalf("dials = %d, want 1", d.Dials())
	}
	if rec.Count("state:connected") != 1 {
		t.Fatalf("connected notifications = %v", rec.Entries())
	}
}

func TestSendDroppedUnlessConnected(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	m, _ := newTestManager(t, d, fastPolicy(time.Hour))

	if m.Send([]byte("early")) {
		t.Fatal("send while disconnected should be dropped")
	}
	m.Connect()
	if m.Send([]byte("connecting")) {
		t.Fatal("send while connecting should be dropped")
	}

	close(d.block)
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	if !m.Send([]byte("live")) {
		t.Fatal("send while connected should be written")
	}

	if got := d.Last().Written(); !reflect.DeepEqual(got, []string{"live"}) {
		t.Fatalf("written = %v; dropped messages must never be sent later", got)
	}
}

func TestCleanCloseReconnectsWithoutError(t *testing.T) {
	d := &fakeDialer{}
	m, rec := newTestManager(t, d, fastPolicy(5*time.Millisecond))

	m.Connect()
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	first := d.Last()

	first.peerClose()
	eventually(t, "second connection", func() bool {
		return d.Dials() == 2 && m.State() == models.StateConnected
	})

	want := []string{
		"state:connecting", "state:connected",
		"state:disconnected",
		"state:connecting", "state:connected",
	}
	eventually(t, "notifications", func() bool { return len(rec.Entries()) == len(want) })
	if got := rec.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestTransportErrorGoesThroughErrored(t *testing.T) {
	d := &fakeDialer{}
	m, rec := newTestManager(t, d, fastPolicy(5*time.Millisecond))

	m.Connect()
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	d.Last().peerError()

	eventually(t, "reconnect", func() bool { return rec.Count("state:connected") == 2 })
	want := []string{
		"state:connecting", "state:connected",
		"state:error", "state:disconnected",
		"state:connecting", "state:connected",
	}
	if got := rec.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestDialFailureRetries(t *testing.T) {
	d := &fakeDialer{failErr: errBoom}
	m, rec := newTestManager(t, d, fastPolicy(5*time.Millisecond))

	m.Connect()
	eventually(t, "three dials", func() bool { return d.Dials() >= 3 })

	d.setFail(nil)
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })

	entries := rec.Entries()
	if entries[0] != "state:connecting" || entries[1] != "state:error" || entries[2] != "state:disconnected" {
		t.Fatalf("dial failure should go through error then disconnected: %v", entries)
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestManager(t, d, fastPolicy(50*time.Millisecond))

	m.Connect()
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	d.Last().peerClose()
	eventually(t, "reconnect armed", m.ReconnectPending)

	m.Disconnect()
	if m.ReconnectPending() {
		t.Fatal("reconnect timer still armed after Disconnect")
	}

	time.Sleep(150 * time.Millisecond)
	if d.Dials() != 1 {
		t.Fatalf("dials = %d after Disconnect, want 1", d.Dials())
	}
	if m.State() != models.StateDisconnected {
		t.Fatalf("state = %v", m.State())
	}
}

func TestDisconnectWhileConnectingAbandonsDial(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	m, rec := newTestManager(t, d, fastPolicy(5*time.Millisecond))

	m.Connect()
	eventually(t, "dial started", func() bool { return d.Dials() == 1 })
	m.Disconnect()

	time.Sleep(30 * time.Millisecond)
	if m.State() != models.StateDisconnected || d.Dials() != 1 {
		t.Fatalf("state = %v dials = %d", m.State(), d.Dials())
	}
	if rec.Count("state:connected") != 0 {
		t.Fatalf("unexpected connected: %v", rec.Entries())
	}
}

func TestStaleTransportIsIgnored(t *testing.T) {
	d := &fakeDialer{}
	m, rec := newTestManager(t, d, fastPolicy(time.Hour))

	m.Connect()
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	old := d.Last()
	m.Disconnect()

	old.inbound <- []byte("late")
	old.peerError()
	time.Sleep(30 * time.Millisecond)

	for _, e := range rec.Entries() {
		if e == "msg:late" || e == "state:error" {
			t.Fatalf("stale transport leaked %q: %v", e, rec.Entries())
		}
	}
}

func TestMaxAttemptsStopsRetrying(t *testing.T) {
	d := &fakeDialer{failErr: errBoom}
	policy := fastPolicy(2 * time.Millisecond)
	policy.MaxAttempts = 3
	m, _ := newTestManager(t, d, policy)

	m.Connect()
	eventually(t, "initial dial plus three retries", func() bool {
		return d.Dials() == 4 && !m.ReconnectPending() && m.State() == models.StateDisconnected
	})
	time.Sleep(30 * time.Millisecond)
	if d.Dials() != 4 {
		t.Fatalf("dials = %d, want 4", d.Dials())
	}

	// an explicit Connect starts a fresh budget
	d.setFail(nil)
	m.Connect()
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
}

func TestListenerMaySendOnConnected(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager("ws://test", d, fastPolicy(5*time.Millisecond), quietLogger(), nil)
	t.Cleanup(m.Dispose)

	rec := &recorder{}
	rec.onState = func(s models.MConnectionState) {
		if s == models.StateConnected {
			m.Send([]byte("replay"))
		}
	}
	m.AddListener(rec)

	m.Connect()
	eventually(t, "replay written", func() bool {
		last := d.Last()
		return last != nil && len(last.Written()) == 1
	})

	d.Last().peerClose()
	eventually(t, "second replay", func() bool {
		return d.Dials() == 2 && d.Last() != nil && len(d.Last().Written()) == 1
	})
}

func TestWriteFailureTriggersReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, rec := newTestManager(t, d, fastPolicy(5*time.Millisecond))

	m.Connect()
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	d.Last().mu.Lock()
	d.Last().writeErr = errors.New("broken pipe")
	d.Last().mu.Unlock()

	if m.Send([]byte("x")) {
		t.Fatal("failed write reported as sent")
	}
	eventually(t, "reconnected", func() bool { return rec.Count("state:connected") == 2 })
}

func TestDispose(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager("ws://test", d, fastPolicy(5*time.Millisecond), quietLogger(), nil)
	rec := &recorder{}
	m.AddListener(rec)

	m.Connect()
	eventually(t, "connected", func() bool { return m.State() == models.StateConnected })
	m.Dispose()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	if err := m.Connect(); !errors.Is(err, ErrDisposed) {
		t.Fatalf("Connect after Dispose = %v", err)
	}
	if got := rec.Entries(); got[len(got)-1] != "state:disconnected" {
		t.Fatalf("final notification = %v", got)
	}
	m.Dispose()
}
