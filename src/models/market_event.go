package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// MEventType discriminates the payload carried by a market event
type MEventType string

const (
	EventTypeTrade MEventType = "TRADE"
	EventTypeQuote MEventType = "QUOTE"
)

// -----------------------------------------------------------------------------

// MSide is the aggressor side of a trade
type MSide string

const (
	SideBuy  MSide = "BUY"
	SideSell MSide = "SELL"
)

// -----------------------------------------------------------------------------

// MTrade is the payload of a TRADE event
type MTrade struct {
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
	Side  MSide           `json:"side"`
}

// MQuote is the payload of a QUOTE event
type MQuote struct {
	BidPrice decimal.Decimal `json:"bidPrice"`
	BidSize  int64           `json:"bidSize"`
	AskPrice decimal.Decimal `json:"askPrice"`
	AskSize  int64           `json:"askSize"`
}

// -----------------------------------------------------------------------------

// MMarketEvent is one normalized observation about a symbol.
// Exactly one of Trade or Quote is set, matching EventType.
type MMarketEvent struct {
	EventType MEventType `json:"eventType"`
	Symbol    string     `json:"symbol"`
	Timestamp string     `json:"timestamp"`
	Source    string     `json:"source"`
	Trade     *MTrade    `json:"-"`
	Quote     *MQuote    `json:"-"`
}

// -----------------------------------------------------------------------------

// Payload returns whichever variant the event carries
func (e *MMarketEvent) Payload() interface{} {
	if e.Trade != nil {
		return e.Trade
	}
	if e.Quote != nil {
		return e.Quote
	}
	return nil
}

// -----------------------------------------------------------------------------

// DisplayPrice is the trade price, or the quote mid for quotes
func (e *MMarketEvent) DisplayPrice() decimal.Decimal {
	switch {
	case e.Trade != nil:
		return e.Trade.Price
	case e.Quote != nil:
		return e.Quote.BidPrice.Add(e.Quote.AskPrice).Div(decimal.NewFromInt(2))
	}
	return decimal.Zero
}

// -----------------------------------------------------------------------------

type wireMarketEvent struct {
	Kind      string      `json:"kind,omitempty"`
	EventType MEventType  `json:"eventType"`
	Symbol    string      `json:"symbol"`
	Timestamp string      `json:"timestamp"`
	Source    string      `json:"source"`
	Payload   interface{} `json:"payload"`
}

// MarshalJSON writes the canonical wire shape with the variant under "payload"
func (e MMarketEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMarketEvent{
		EventType: e.EventType,
		Symbol:    e.Symbol,
		Timestamp: e.Timestamp,
		Source:    e.Source,
		Payload:   e.Payload(),
	})
}

// -----------------------------------------------------------------------------

// MarshalEnvelope writes the event tagged with kind "event"
func (e MMarketEvent) MarshalEnvelope() ([]byte, error) {
	return json.Marshal(wireMarketEvent{
		Kind:      KindEvent,
		EventType: e.EventType,
		Symbol:    e.Symbol,
		Timestamp: e.Timestamp,
		Source:    e.Source,
		Payload:   e.Payload(),
	})
}
