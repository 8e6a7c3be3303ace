package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/models"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by ReadMessage when the peer or the client closed the
// connection normally.
var ErrClosed = errors.New("stream transport closed")

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	defaultWriteWait     = 2 * time.Second
	defaultPongWait      = 60 * time.Second
	defaultHandshakeWait = 10 * time.Second
	maxMessageSize       = 1024 * 1024
)

// -----------------------------------------------------------------------------

// WebSocketDialer opens gorilla websocket transports with keep-alive pings
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	Header           http.Header
}

// NewWebSocketDialer builds a dialer from the stream config
func NewWebSocketDialer(cfg models.MStreamConfig) *WebSocketDialer {
	return &WebSocketDialer{
		HandshakeTimeout: time.Duration(cfg.HandshakeMs) * time.Millisecond,
		PongWait:         time.Duration(cfg.PongWaitMs) * time.Millisecond,
		WriteWait:        time.Duration(cfg.WriteWaitMs) * time.Millisecond,
	}
}

// -----------------------------------------------------------------------------

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (interfaces.ITransport, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeWait
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}

	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, helpers.NewTransportError("dial "+url, err)
	}
	return newWSTransport(conn, d.PongWait, d.WriteWait), nil
}

// -----------------------------------------------------------------------------

type wsTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn, pongWait, writeWait time.Duration) *wsTransport {
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	t := &wsTransport{
		conn:      conn,
		writeWait: writeWait,
		pongWait:  pongWait,
		done:      make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(t.pongWait))
		return nil
	})

	go t.pingLoop()
	return t
}

// -----------------------------------------------------------------------------

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err == nil {
		// any traffic proves the peer is alive
		t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
		return data, nil
	}

	select {
	case <-t.done:
		return nil, ErrClosed
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil, ErrClosed
	}
	return nil, helpers.NewTransportError("read", err)
}

// -----------------------------------------------------------------------------

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return helpers.NewTransportError("write", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		deadline := time.Now().Add(t.writeWait)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = t.conn.Close()
	})
	return err
}

// -----------------------------------------------------------------------------

// pingLoop keeps the read deadline alive through the peer's pongs
func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker((t.pongWait * 9) / 10)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait)); err != nil {
				return
			}
		}
	}
}
