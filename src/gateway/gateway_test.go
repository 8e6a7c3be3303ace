package gateway

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market-dashboard/src/config"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"
	"market-dashboard/src/session"
	"market-dashboard/src/stream"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

var _ interfaces.IEventExchanger = (*Gateway)(nil)

func startGateway(t *testing.T) (*Gateway, *httptest.Server, *metrics.Collector) {
	t.Helper()
	cfg := config.Defaults()
	m := metrics.New("gateway_test")
	g := NewGateway(cfg, m, logger.NewWithWriter(io.Discard, "ERROR", "Gateway"))
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(func() {
		g.Stop()
		srv.Close()
	})
	return g, srv, m
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/market-data"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func trade(symbol string) *models.MMarketEvent {
	return &models.MMarketEvent{
		EventType: models.EventTypeTrade,
		Symbol:    symbol,
		Timestamp: "2024-01-02T15:04:05Z",
		Source:    "TEST",
		Trade:     &models.MTrade{Price: decimal.RequireFromString("101.25"), Size: 100, Side: models.SideBuy},
	}
}

func send(t *testing.T, conn *websocket.Conn, action models.MAction, symbols ...string) {
	t.Helper()
	data, _ := protocol.EncodeCommand(action, symbols)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func next(t *testing.T, conn *websocket.Conn) protocol.Classified {
	t.Helper()
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.Classify(raw)
	if err != nil {
		t.Fatalf("classify %s: %v", raw, err)
	}
	return msg
}

func TestSubscribeAckThenFilteredRouting(t *testing.T) {
	g, srv, m := startGateway(t)
	conn := dial(t, srv)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"explode"}`))
	send(t, conn, models.ActionSubscribe, "AAPL")

	ack := next(t, conn)
	if !ack.IsAck() || ack.Ack.Status != models.AckSubscribed || len(ack.Ack.Symbols) != 1 || ack.Ack.Kind != models.KindAck {
		t.Fatalf("ack = %+v", ack.Ack)
	}

	g.Broadcast(trade("MSFT"))
	g.Broadcast(trade("AAPL"))

	msg := next(t, conn)
	if msg.IsAck() || msg.Event.Symbol != "AAPL" || !msg.Event.Trade.Price.Equal(decimal.RequireFromString("101.25")) {
		t.Fatalf("event = %+v", msg.Event)
	}
	if got := testutil.ToFloat64(m.GatewayRouted); got != 1 {
		t.Fatalf("routed = %v", got)
	}
}

func TestWildcardAndUnsubscribe(t *testing.T) {
	g, srv, _ := startGateway(t)
	conn := dial(t, srv)

	send(t, conn, models.ActionSubscribe, Wildcard)
	next(t, conn)

	g.Broadcast(trade("TSLA"))
	if msg := next(t, conn); msg.Event == nil || msg.Event.Symbol != "TSLA" {
		t.Fatalf("wildcard delivery = %+v", msg)
	}

	send(t, conn, models.ActionUnsubscribe, Wildcard)
	if ack := next(t, conn); !ack.IsAck() || ack.Ack.Status != models.AckUnsubscribed {
		t.Fatalf("unsubscribe ack = %+v", ack)
	}

	g.Broadcast(trade("TSLA"))
	send(t, conn, models.ActionSubscribe, "JPM")
	if msg := next(t, conn); !msg.IsAck() {
		t.Fatalf("expected only the ack after unsubscribing, got %+v", msg.Event)
	}
}

func TestConnectionCount(t *testing.T) {
	g, srv, _ := startGateway(t)
	conn := dial(t, srv)
	send(t, conn, models.ActionSubscribe, "AAPL")
	next(t, conn)

	if g.Connections() != 1 {
		t.Fatalf("connections = %d", g.Connections())
	}
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for g.Connections() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if g.Connections() != 0 {
		t.Fatalf("connections after close = %d", g.Connections())
	}
}

func TestSessionStreamsFromGateway(t *testing.T) {
	g, srv, _ := startGateway(t)

	cfg := config.Defaults()
	cfg.Stream.PageURL = srv.URL
	cfg.Stream.DefaultSymbols = []string{"NVDA"}
	cfg.LogLevel = "ERROR"
	s, err := session.NewSession(cfg, &stream.WebSocketDialer{PongWait: time.Second, WriteWait: time.Second},
		logger.NewWithWriter(io.Discard, "ERROR", "Session"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.Cache.Len() == 0 && time.Now().Before(deadline) {
		g.Broadcast(trade("AAPL"))
		g.Broadcast(trade("NVDA"))
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := s.Cache.Get("NVDA"); !ok {
		t.Fatal("NVDA never arrived")
	}
	if _, ok := s.Cache.Get("AAPL"); ok {
		t.Fatal("AAPL was not subscribed")
	}
}
