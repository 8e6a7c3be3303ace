package gateway

import (
	"time"

	"market-dashboard/src/protocol"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------

// Connection is one stream client. symbols is owned by the hub goroutine.
type Connection struct {
	gateway *Gateway
	conn    *websocket.Conn
	remote  string
	send    chan []byte
	symbols map[string]struct{}
}

func (c *Connection) wants(symbol string) bool {
	if _, ok := c.symbols[Wildcard]; ok {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

// -----------------------------------------------------------------------------

func (c *Connection) readPump() {
	g := c.gateway
	defer func() {
		select {
		case g.unregister <- c:
		case <-g.quit:
		}
		c.conn.Close()
		g.Logger.Debug("Stream client %s disconnected", c.remote)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.Logger.Info("WebSocket error from %s: %v", c.remote, err)
			}
			return
		}

		cmd, err := protocol.DecodeCommand(message)
		if err != nil {
			g.Logger.Warning("Ignoring command from %s: %v", c.remote, err)
			continue
		}
		select {
		case g.commands <- command{conn: c, cmd: cmd}:
		case <-g.quit:
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.gateway.Logger.Info("Write error to %s: %v", c.remote, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
