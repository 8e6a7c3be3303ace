package models

// MConnectionState is the lifecycle state of the stream transport
type MConnectionState int

const (
	StateDisconnected MConnectionState = iota
	StateConnecting
	StateConnected
	StateErrored
)

// -----------------------------------------------------------------------------

func (s MConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "error"
	default:
		return "disconnected"
	}
}

// -----------------------------------------------------------------------------

func (s MConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
