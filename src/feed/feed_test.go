package feed

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

var (
	_ interfaces.IFeedSource     = (*SyntheticSource)(nil)
	_ interfaces.IFeedSource     = (*KafkaSource)(nil)
	_ interfaces.IEventPublisher = (*KafkaPublisher)(nil)
)

func quiet(name string) *logger.Logger {
	return logger.NewWithWriter(io.Discard, "ERROR", name)
}

func syntheticConfig() models.MSyntheticConfig {
	return models.MSyntheticConfig{
		Enabled:           true,
		Name:              "SYNTHETIC",
		Symbols:           []string{"AAPL", "ZZZZ"},
		MessagesPerSecond: 500,
		TradeToQuoteRatio: 5,
	}
}

func TestSyntheticTradeEverySixthMessage(t *testing.T) {
	s := newSyntheticSource(syntheticConfig(), nil, quiet("Synthetic"), rand.New(rand.NewPCG(1, 2)))

	for i := 1; i <= 18; i++ {
		e := s.generate()
		wantTrade := i%6 == 0
		if (e.EventType == models.EventTypeTrade) != wantTrade {
			t.Fatalf("message %d: type %s", i, e.EventType)
		}
		if e.Source != "SYNTHETIC" || e.Timestamp == "" {
			t.Fatalf("message %d: %+v", i, e)
		}
	}
}

func TestSyntheticEventsAreValidOnTheWire(t *testing.T) {
	s := newSyntheticSource(syntheticConfig(), nil, quiet("Synthetic"), rand.New(rand.NewPCG(3, 4)))

	for i := 0; i < 200; i++ {
		e := s.generate()
		raw, err := e.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		back, err := protocol.DecodeEvent(raw)
		if err != nil {
			t.Fatalf("generated event does not classify: %s: %v", raw, err)
		}

		switch back.EventType {
		case models.EventTypeTrade:
			tr := back.Trade
			if tr.Size < 100 || tr.Size > 10000 || tr.Size%100 != 0 || !tr.Price.IsPositive() {
				t.Fatalf("trade = %+v", tr)
			}
		case models.EventTypeQuote:
			q := back.Quote
			if !q.AskPrice.GreaterThan(q.BidPrice) {
				t.Fatalf("crossed quote %+v", q)
			}
			if q.AskPrice.Sub(q.BidPrice).LessThan(decimal.RequireFromString("0.02")) {
				t.Fatalf("spread below two ticks: %+v", q)
			}
		}
	}
}

func TestSyntheticRandomWalkStaysNearBase(t *testing.T) {
	s := newSyntheticSource(syntheticConfig(), nil, quiet("Synthetic"), rand.New(rand.NewPCG(5, 6)))

	var last decimal.Decimal
	for i := 0; i < 50; i++ {
		last = s.nextPriceLocked("ZZZZ")
	}
	// 50 ticks of at most 0.1% each from 100
	if last.LessThan(decimal.NewFromInt(95)) || last.GreaterThan(decimal.NewFromInt(105)) {
		t.Fatalf("price wandered to %s", last)
	}
	if !last.Equal(last.Round(2)) {
		t.Fatalf("price %s not in cents", last)
	}
}

func TestDisabledSyntheticReturnsImmediately(t *testing.T) {
	cfg := syntheticConfig()
	cfg.Enabled = false
	s := NewSyntheticSource(cfg, nil, quiet("Synthetic"))

	var wg sync.WaitGroup
	wg.Add(1)
	if err := s.Start(context.Background(), make(chan *models.MMarketEvent), &wg); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
}

func TestKafkaDecodeSkipsBadRecordsAndFilters(t *testing.T) {
	k := NewKafkaSource(models.MKafkaConfig{Topic: "canonical.events"}, quiet("Kafka"))
	k.UpdateSymbols([]string{"MSFT"})

	if _, ok := k.decode(kafka.Message{Value: []byte(`{"eventType":"CANDLE"}`)}); ok {
		t.Fatal("bad record forwarded")
	}
	good := `{"eventType":"QUOTE","symbol":"MSFT","timestamp":"t","source":"X","payload":{"bidPrice":1,"bidSize":1,"askPrice":2,"askSize":1}}`
	if e, ok := k.decode(kafka.Message{Value: []byte(good)}); !ok || e.Symbol != "MSFT" {
		t.Fatalf("good record: %+v %v", e, ok)
	}
	other := `{"eventType":"QUOTE","symbol":"AAPL","timestamp":"t","source":"X","payload":{"bidPrice":1,"bidSize":1,"askPrice":2,"askSize":1}}`
	if _, ok := k.decode(kafka.Message{Value: []byte(other)}); ok {
		t.Fatal("filtered symbol forwarded")
	}
}

func TestPublisherKeysBySymbol(t *testing.T) {
	s := newSyntheticSource(syntheticConfig(), nil, quiet("Synthetic"), rand.New(rand.NewPCG(7, 8)))
	e := s.generate()

	msg, err := toMessage(e)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Key) != e.Symbol {
		t.Fatalf("key = %s", msg.Key)
	}
	if _, err := protocol.DecodeEvent(msg.Value); err != nil {
		t.Fatalf("published value does not decode: %v", err)
	}
}

// -----------------------------------------------------------------------------

type recordingExchange struct {
	mu     sync.Mutex
	events []*models.MMarketEvent
}

func (r *recordingExchange) Broadcast(e *models.MMarketEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}
func (r *recordingExchange) Start() error { return nil }
func (r *recordingExchange) Stop() error  { return nil }

func (r *recordingExchange) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type failingPublisher struct{ closed bool }

func (p *failingPublisher) Publish(context.Context, *models.MMarketEvent) error {
	return errors.New("broker down")
}
func (p *failingPublisher) Close() error { p.closed = true; return nil }

func TestManagerCountsPublishFailuresAndKeepsPumping(t *testing.T) {
	ex := &recordingExchange{}
	pub := &failingPublisher{}
	m := NewManager([]interfaces.IFeedSource{NewSyntheticSource(syntheticConfig(), nil, quiet("Synthetic"))}, ex, quiet("FeedManager"), nil)
	m.Publisher = pub

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for ex.Len() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	if ex.Len() < 5 {
		t.Fatalf("only %d events reached the exchange", ex.Len())
	}
	if m.Errors.ErrorCount() < int64(ex.Len()) {
		t.Fatalf("error count %d for %d events", m.Errors.ErrorCount(), ex.Len())
	}
	if !pub.closed {
		t.Fatal("publisher not closed on Stop")
	}
}

func TestFailedStartStopsStartedSources(t *testing.T) {
	ex := &recordingExchange{}
	good := NewSyntheticSource(syntheticConfig(), nil, quiet("Synthetic"))
	empty := syntheticConfig()
	empty.Name = "EMPTY"
	empty.Symbols = nil
	bad := NewSyntheticSource(empty, nil, quiet("Synthetic"))

	m := NewManager([]interfaces.IFeedSource{good, bad}, ex, quiet("FeedManager"), nil)
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start should fail on a source without symbols")
	}
	if good.running.Load() {
		t.Fatal("source started before the failure is still running")
	}
	n := ex.Len()
	time.Sleep(30 * time.Millisecond)
	if ex.Len() != n {
		t.Fatal("events still flowing after a failed Start")
	}

	if err := m.RemoveSource("EMPTY"); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	m.Stop()
}

func TestManagerPumpsIntoExchangeAndStops(t *testing.T) {
	ex := &recordingExchange{}
	src := NewSyntheticSource(syntheticConfig(), nil, quiet("Synthetic"))
	m := NewManager([]interfaces.IFeedSource{src}, ex, quiet("FeedManager"), nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	deadline := time.Now().Add(3 * time.Second)
	for ex.Len() < 10 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ex.Len() < 10 {
		t.Fatalf("only %d events reached the exchange", ex.Len())
	}

	m.Stop()
	n := ex.Len()
	time.Sleep(30 * time.Millisecond)
	if ex.Len() != n {
		t.Fatal("events still flowing after Stop")
	}
	if names := m.SourceNames(); len(names) != 1 || names[0] != "SYNTHETIC" {
		t.Fatalf("sources = %v", names)
	}
}
