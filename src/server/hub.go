package server

import (
	"net/http"

	"market-dashboard/src/protocol"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *DashboardServer) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.viewerN.Store(0)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.viewerN.Store(int64(len(s.clients)))
			// Send full state on connect
			client.send <- s.buildFrame(FrameInitial)

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.viewerN.Store(int64(len(s.clients)))
			}

		case <-s.changed:
			if len(s.clients) == 0 {
				continue
			}
			frame := s.buildFrame(FrameUpdate)
			for client := range s.clients {
				select {
				case client.send <- frame:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.viewerN.Store(int64(len(s.clients)))
		}
	}
}

// -----------------------------------------------------------------------------

// Notify schedules a fresh frame for every viewer. It never blocks, so it is
// safe to call from the stream dispatcher.
func (s *DashboardServer) Notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) viewerCount() int {
	return int(s.viewerN.Load())
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *Frame, 64),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a viewer's subscribe or unsubscribe command to
// the session; anything else is ignored
func (s *DashboardServer) HandleClientMessage(client *Client, message []byte) {
	cmd, err := protocol.DecodeCommand(message)
	if err != nil {
		s.Logger.Info("Ignoring viewer message: %v", err)
		return
	}
	if len(cmd.Symbols) == 0 {
		return
	}
	s.applySubscription(cmd.Action, cmd.Symbols)
}
