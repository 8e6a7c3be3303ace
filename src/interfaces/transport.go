package interfaces

import (
	"context"

	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// ITransport is one open full-duplex message connection.
// ReadMessage is called from a single goroutine; WriteMessage and Close may
// be called concurrently with it.
// -----------------------------------------------------------------------------

type ITransport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// -----------------------------------------------------------------------------
// IDialer opens transports to a stream endpoint.
// -----------------------------------------------------------------------------

type IDialer interface {
	Dial(ctx context.Context, url string) (ITransport, error)
}

// -----------------------------------------------------------------------------
// IStreamListener receives connection notifications in occurrence order.
// -----------------------------------------------------------------------------

type IStreamListener interface {
	// OnStateChange is called for every connection state transition
	OnStateChange(state models.MConnectionState)

	// OnMessage is called for every inbound message of the current connection
	OnMessage(raw []byte)
}

// -----------------------------------------------------------------------------
// ISender writes a control message if a transport is open.
// -----------------------------------------------------------------------------

type ISender interface {
	// Send returns false when the message was dropped
	Send(data []byte) bool
}
