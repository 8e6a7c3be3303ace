package models

import "github.com/shopspring/decimal"

func init() {
	// prices travel as JSON numbers on the stream
	decimal.MarshalJSONWithoutQuotes = true
}

// -----------------------------------------------------------------------------
// Envelope kinds
// -----------------------------------------------------------------------------

const (
	KindEvent = "event"
	KindAck   = "ack"
)

// -----------------------------------------------------------------------------
// Control messages
// -----------------------------------------------------------------------------

// MAction is the verb of an outbound control message
type MAction string

const (
	ActionSubscribe   MAction = "subscribe"
	ActionUnsubscribe MAction = "unsubscribe"
)

// MSubscriptionCommand is sent by the client to change its symbol set
type MSubscriptionCommand struct {
	Action  MAction  `json:"action"`
	Symbols []string `json:"symbols"`
}

// -----------------------------------------------------------------------------

const (
	AckSubscribed   = "subscribed"
	AckUnsubscribed = "unsubscribed"
)

// MSubscriptionAck is the server's informational reply to a command
type MSubscriptionAck struct {
	Kind    string   `json:"kind,omitempty"`
	Status  string   `json:"status"`
	Symbols []string `json:"symbols"`
}
