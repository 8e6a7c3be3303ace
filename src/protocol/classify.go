package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"market-dashboard/src/helpers"
	"market-dashboard/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// Classified is the outcome of classifying one inbound message.
// Exactly one of Event or Ack is set.
type Classified struct {
	Event *models.MMarketEvent
	Ack   *models.MSubscriptionAck
}

// IsAck reports whether the message was a subscription acknowledgement
func (c Classified) IsAck() bool {
	return c.Ack != nil
}

// -----------------------------------------------------------------------------

// rawMessage keeps every field raw so presence can be told apart from zero values
type rawMessage struct {
	Kind      *string         `json:"kind"`
	Status    json.RawMessage `json:"status"`
	Symbols   json.RawMessage `json:"symbols"`
	EventType *string         `json:"eventType"`
	Symbol    *string         `json:"symbol"`
	Timestamp *string         `json:"timestamp"`
	Source    *string         `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// -----------------------------------------------------------------------------

// Classify turns one raw stream message into an event or an ack.
// Anything else is reported as *helpers.ParseError.
func Classify(raw []byte) (Classified, error) {
	var msg rawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Classified{}, wrapParse(raw, "malformed json", err)
	}

	if msg.Kind != nil {
		switch *msg.Kind {
		case models.KindAck:
			ack, err := decodeAck(raw, &msg)
			if err != nil {
				return Classified{}, err
			}
			return Classified{Ack: ack}, nil
		case models.KindEvent:
			event, err := decodeEvent(raw, &msg)
			if err != nil {
				return Classified{}, err
			}
			return Classified{Event: event}, nil
		default:
			return Classified{}, helpers.NewParseError(raw, "unknown message kind %q", *msg.Kind)
		}
	}

	// untagged: an ack carries a status string and a symbols array
	if isString(msg.Status) && isArray(msg.Symbols) {
		ack, err := decodeAck(raw, &msg)
		if err != nil {
			return Classified{}, err
		}
		return Classified{Ack: ack}, nil
	}

	event, err := decodeEvent(raw, &msg)
	if err != nil {
		return Classified{}, err
	}
	return Classified{Event: event}, nil
}

// -----------------------------------------------------------------------------

// DecodeEvent parses a message that must be a market event
func DecodeEvent(raw []byte) (*models.MMarketEvent, error) {
	var msg rawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, wrapParse(raw, "malformed json", err)
	}
	return decodeEvent(raw, &msg)
}

// -----------------------------------------------------------------------------

func decodeAck(raw []byte, msg *rawMessage) (*models.MSubscriptionAck, error) {
	var ack models.MSubscriptionAck
	if err := json.Unmarshal(msg.Status, &ack.Status); err != nil {
		return nil, wrapParse(raw, "ack status", err)
	}
	if err := json.Unmarshal(msg.Symbols, &ack.Symbols); err != nil {
		return nil, wrapParse(raw, "ack symbols", err)
	}
	ack.Kind = models.KindAck
	return &ack, nil
}

// -----------------------------------------------------------------------------

func decodeEvent(raw []byte, msg *rawMessage) (*models.MMarketEvent, error) {
	if msg.EventType == nil {
		return nil, helpers.NewParseError(raw, "missing eventType")
	}
	if msg.Symbol == nil || strings.TrimSpace(*msg.Symbol) == "" {
		return nil, helpers.NewParseError(raw, "missing symbol")
	}
	if len(msg.Payload) == 0 || bytes.Equal(bytes.TrimSpace(msg.Payload), []byte("null")) {
		return nil, helpers.NewParseError(raw, "missing payload")
	}

	event := &models.MMarketEvent{
		EventType: models.MEventType(*msg.EventType),
		Symbol:    strings.TrimSpace(*msg.Symbol),
		Timestamp: deref(msg.Timestamp),
		Source:    deref(msg.Source),
	}

	fields, err := payloadFields(msg.Payload)
	if err != nil {
		return nil, wrapParse(raw, "payload", err)
	}

	switch event.EventType {
	case models.EventTypeTrade:
		if hasAny(fields, "bidPrice", "bidSize", "askPrice", "askSize") {
			return nil, helpers.NewParseError(raw, "TRADE payload carries quote fields")
		}
		trade, err := decodeTrade(raw, fields)
		if err != nil {
			return nil, err
		}
		event.Trade = trade
	case models.EventTypeQuote:
		if hasAny(fields, "price", "size", "side") {
			return nil, helpers.NewParseError(raw, "QUOTE payload carries trade fields")
		}
		quote, err := decodeQuote(raw, fields)
		if err != nil {
			return nil, err
		}
		event.Quote = quote
	default:
		return nil, helpers.NewParseError(raw, "unknown eventType %q", *msg.EventType)
	}

	return event, nil
}

// -----------------------------------------------------------------------------

func decodeTrade(raw []byte, fields map[string]json.RawMessage) (*models.MTrade, error) {
	var t models.MTrade
	var err error
	if t.Price, err = requireDecimal(raw, fields, "price"); err != nil {
		return nil, err
	}
	if t.Size, err = requireSize(raw, fields, "size"); err != nil {
		return nil, err
	}
	var side string
	if err := requireField(raw, fields, "side", &side); err != nil {
		return nil, err
	}
	t.Side = models.MSide(side)
	if t.Side != models.SideBuy && t.Side != models.SideSell {
		return nil, helpers.NewParseError(raw, "invalid trade side %q", side)
	}
	return &t, nil
}

// -----------------------------------------------------------------------------

func decodeQuote(raw []byte, fields map[string]json.RawMessage) (*models.MQuote, error) {
	var q models.MQuote
	var err error
	if q.BidPrice, err = requirePrice(raw, fields, "bidPrice"); err != nil {
		return nil, err
	}
	if q.BidSize, err = requireSize(raw, fields, "bidSize"); err != nil {
		return nil, err
	}
	if q.AskPrice, err = requirePrice(raw, fields, "askPrice"); err != nil {
		return nil, err
	}
	if q.AskSize, err = requireSize(raw, fields, "askSize"); err != nil {
		return nil, err
	}
	return &q, nil
}

// -----------------------------------------------------------------------------
// Field helpers
// -----------------------------------------------------------------------------

func payloadFields(payload json.RawMessage) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func requireField(raw []byte, fields map[string]json.RawMessage, name string, out interface{}) error {
	v, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return helpers.NewParseError(raw, "payload missing %s", name)
	}
	if err := json.Unmarshal(v, out); err != nil {
		return wrapParse(raw, "payload field "+name, err)
	}
	return nil
}

func requireDecimal(raw []byte, fields map[string]json.RawMessage, name string) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := requireField(raw, fields, name, &d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// requirePrice rejects negative quote prices
func requirePrice(raw []byte, fields map[string]json.RawMessage, name string) (decimal.Decimal, error) {
	d, err := requireDecimal(raw, fields, name)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, helpers.NewParseError(raw, "payload %s is negative", name)
	}
	return d, nil
}

func requireSize(raw []byte, fields map[string]json.RawMessage, name string) (int64, error) {
	var n int64
	if err := requireField(raw, fields, name, &n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, helpers.NewParseError(raw, "payload %s is negative", name)
	}
	return n, nil
}

func hasAny(fields map[string]json.RawMessage, names ...string) bool {
	for _, n := range names {
		if _, ok := fields[n]; ok {
			return true
		}
	}
	return false
}

func isString(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '"'
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func wrapParse(raw []byte, what string, cause error) *helpers.ParseError {
	pe := helpers.NewParseError(raw, "%s", what)
	pe.Cause = cause
	return pe
}
