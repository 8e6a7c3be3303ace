package session

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"market-dashboard/src/config"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"
	"market-dashboard/src/stream"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// feedServer answers the first subscribe of every connection with a scripted
// burst, and can drop the current connection on demand.
type feedServer struct {
	mu       sync.Mutex
	commands []models.MSubscriptionCommand
	conns    []*websocket.Conn
	script   []string
}

func (f *feedServer) handle(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	first := true
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := protocol.DecodeCommand(raw)
		if err != nil {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.mu.Unlock()

		ack, _ := protocol.EncodeAck(models.AckSubscribed, cmd.Symbols)
		conn.WriteMessage(websocket.TextMessage, ack)
		if first {
			first = false
			for _, m := range f.script {
				conn.WriteMessage(websocket.TextMessage, []byte(m))
			}
		}
	}
}

func (f *feedServer) Commands() []models.MSubscriptionCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MSubscriptionCommand(nil), f.commands...)
}

func (f *feedServer) dropLatest() {
	f.mu.Lock()
	c := f.conns[len(f.conns)-1]
	f.mu.Unlock()
	c.Close()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSession(t *testing.T, srv *httptest.Server) (*Session, *metrics.Collector) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Stream.PageURL = srv.URL
	cfg.Stream.DefaultSymbols = []string{"AAPL", "MSFT"}
	cfg.Stream.Reconnect = models.MReconnectConfig{InitialDelayMs: 10, MaxDelayMs: 10, Multiplier: 1}
	cfg.LogLevel = "ERROR"

	m := metrics.New("session_test")
	s, err := NewSession(cfg, &stream.WebSocketDialer{PongWait: time.Second, WriteWait: time.Second},
		logger.NewWithWriter(io.Discard, "ERROR", "Session"), m)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s, m
}

func TestSessionIngestsAndSurvivesGarbage(t *testing.T) {
	feed := &feedServer{script: []string{
		`{"bad json`,
		`{"eventType":"TRADE","symbol":"AAPL","timestamp":"t1","source":"SYN","payload":{"price":185.1,"size":100,"side":"BUY"}}`,
		`{"eventType":"CANDLE","symbol":"AAPL","payload":{}}`,
		`{"eventType":"QUOTE","symbol":"AAPL","timestamp":"t0","source":"SYN","payload":{"bidPrice":185,"bidSize":100,"askPrice":185.2,"askSize":200}}`,
		`{"kind":"event","eventType":"TRADE","symbol":"MSFT","timestamp":"t2","source":"SYN","payload":{"price":375,"size":300,"side":"SELL"}}`,
	}}
	srv := httptest.NewServer(http.HandlerFunc(feed.handle))
	defer srv.Close()

	s, m := newTestSession(t, srv)

	var mu sync.Mutex
	var states []models.MConnectionState
	s.OnChange(func(c Change) {
		if c.Kind == ChangeState {
			mu.Lock()
			states = append(states, c.State)
			mu.Unlock()
		}
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eventually(t, "two symbols cached", func() bool { return s.Cache.Len() == 2 })

	aapl, _ := s.Cache.Get("AAPL")
	if aapl.EventType != models.EventTypeQuote {
		t.Fatalf("AAPL should hold the later-arriving quote, got %+v", aapl)
	}
	if got := testutil.ToFloat64(m.ParseErrors); got != 2 {
		t.Fatalf("parse errors = %v", got)
	}
	if got := testutil.ToFloat64(m.AcksReceived); got < 1 {
		t.Fatalf("acks = %v", got)
	}

	cmds := feed.Commands()
	if len(cmds) != 1 || cmds[0].Action != models.ActionSubscribe || len(cmds[0].Symbols) != 2 {
		t.Fatalf("commands = %+v", cmds)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != models.StateConnecting || states[1] != models.StateConnected {
		t.Fatalf("states = %v", states)
	}
}

func TestSessionReplaysDesiredSetAfterDrop(t *testing.T) {
	feed := &feedServer{}
	srv := httptest.NewServer(http.HandlerFunc(feed.handle))
	defer srv.Close()

	s, _ := newTestSession(t, srv)
	s.Start()
	eventually(t, "initial subscribe", func() bool { return len(feed.Commands()) == 1 })

	s.Subscribe([]string{"NVDA"})
	s.Unsubscribe([]string{"MSFT"})
	eventually(t, "live changes", func() bool { return len(feed.Commands()) == 3 })

	feed.dropLatest()
	eventually(t, "replay after reconnect", func() bool { return len(feed.Commands()) == 4 })

	replay := feed.Commands()[3]
	if replay.Action != models.ActionSubscribe {
		t.Fatalf("replay action = %s", replay.Action)
	}
	if len(replay.Symbols) != 2 || replay.Symbols[0] != "AAPL" || replay.Symbols[1] != "NVDA" {
		t.Fatalf("replay symbols = %v", replay.Symbols)
	}
	if s.State() != models.StateConnected {
		t.Fatalf("state = %v", s.State())
	}
}

func TestSessionCloseStopsReconnecting(t *testing.T) {
	feed := &feedServer{}
	srv := httptest.NewServer(http.HandlerFunc(feed.handle))
	defer srv.Close()

	s, _ := newTestSession(t, srv)
	s.Start()
	eventually(t, "connected", func() bool { return s.State() == models.StateConnected })

	s.Close()
	time.Sleep(50 * time.Millisecond)
	if s.Manager.ReconnectPending() {
		t.Fatal("reconnect still pending after Close")
	}
	if st := s.Status(); st.State != models.StateDisconnected || st.SessionID == "" {
		t.Fatalf("status = %+v", st)
	}
}

func TestNewSessionRejectsBadEndpoint(t *testing.T) {
	cfg := config.Defaults()
	cfg.Stream.PageURL = "ftp://nowhere"
	if _, err := NewSession(cfg, &stream.WebSocketDialer{}, nil, nil); err == nil {
		t.Fatal("expected configuration error")
	}
}
