package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Wildcard subscribes a connection to every symbol
const Wildcard = "*"

// -----------------------------------------------------------------------------

type command struct {
	conn *Connection
	cmd  models.MSubscriptionCommand
}

// Gateway is the data-plane websocket endpoint. Each connection owns its
// symbol set; every set mutation and every routing decision runs on the hub
// goroutine.
type Gateway struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Metrics *metrics.Collector

	engine *gin.Engine
	http   *http.Server

	conns      map[*Connection]struct{}
	events     chan *models.MMarketEvent
	commands   chan command
	register   chan *Connection
	unregister chan *Connection
	quit       chan struct{}
	stopped    atomic.Bool
	connN      atomic.Int64
}

// -----------------------------------------------------------------------------

func NewGateway(cfg *models.MConfig, m *metrics.Collector, log *logger.Logger) *Gateway {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	g := &Gateway{
		Config:     cfg,
		Logger:     log,
		Metrics:    m,
		engine:     gin.New(),
		conns:      make(map[*Connection]struct{}),
		events:     make(chan *models.MMarketEvent, 1024),
		commands:   make(chan command, 64),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		quit:       make(chan struct{}),
	}
	g.engine.Use(gin.Recovery())

	path := cfg.Gateway.Path
	if path == "" {
		path = "/ws/market-data"
	}
	g.engine.GET(path, g.handleWebSocket)
	g.engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": g.Connections()})
	})
	if m != nil {
		g.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	go g.run()
	return g
}

// -----------------------------------------------------------------------------

func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// -----------------------------------------------------------------------------

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.Config.Gateway.Host, g.Config.Gateway.Port)
	g.Logger.Info("Starting market data gateway on %s%s", addr, g.Config.Gateway.Path)

	g.http = &http.Server{Addr: addr, Handler: g.engine, ReadHeaderTimeout: 5 * time.Second}
	if err := g.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (g *Gateway) Stop() error {
	if !g.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(g.quit)
	if g.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------

// Broadcast queues an event for routing. When the queue is full the event
// is dropped; a newer one for the same symbol follows soon.
func (g *Gateway) Broadcast(event *models.MMarketEvent) {
	if event == nil {
		return
	}
	select {
	case g.events <- event:
	case <-g.quit:
	default:
		g.Logger.Debug("Routing queue full, dropping %s %s", event.EventType, event.Symbol)
	}
}

// -----------------------------------------------------------------------------

func (g *Gateway) Connections() int {
	return int(g.connN.Load())
}

// -----------------------------------------------------------------------------
// Hub loop
// -----------------------------------------------------------------------------

func (g *Gateway) run() {
	for {
		select {
		case <-g.quit:
			for c := range g.conns {
				g.drop(c)
			}
			return

		case c := <-g.register:
			g.conns[c] = struct{}{}
			g.countConnections()

		case c := <-g.unregister:
			if _, ok := g.conns[c]; ok {
				g.drop(c)
			}

		case in := <-g.commands:
			if _, ok := g.conns[in.conn]; ok {
				g.apply(in.conn, in.cmd)
			}

		case event := <-g.events:
			g.route(event)
		}
	}
}

// -----------------------------------------------------------------------------

func (g *Gateway) apply(c *Connection, cmd models.MSubscriptionCommand) {
	status := models.AckSubscribed
	for _, s := range cmd.Symbols {
		if cmd.Action == models.ActionUnsubscribe {
			delete(c.symbols, s)
		} else {
			c.symbols[s] = struct{}{}
		}
	}
	if cmd.Action == models.ActionUnsubscribe {
		status = models.AckUnsubscribed
	}

	ack, err := protocol.EncodeAck(status, cmd.Symbols)
	if err != nil {
		g.Logger.Error("Encode ack: %v", err)
		return
	}
	g.deliver(c, ack)
}

// -----------------------------------------------------------------------------

func (g *Gateway) route(event *models.MMarketEvent) {
	if len(g.conns) == 0 {
		return
	}
	data, err := event.MarshalEnvelope()
	if err != nil {
		g.Logger.Error("Encode %s %s: %v", event.EventType, event.Symbol, err)
		return
	}

	routed := 0
	for c := range g.conns {
		if c.wants(event.Symbol) && g.deliver(c, data) {
			routed++
		}
	}
	g.Metrics.ObserveRouted(routed)
}

// -----------------------------------------------------------------------------

// deliver queues data on c, dropping the connection when it cannot keep up
func (g *Gateway) deliver(c *Connection, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		g.Logger.Warning("Dropping slow consumer %s", c.remote)
		g.Metrics.ObserveSlowConsumer()
		g.drop(c)
		return false
	}
}

// -----------------------------------------------------------------------------

func (g *Gateway) drop(c *Connection) {
	delete(g.conns, c)
	close(c.send)
	g.countConnections()
}

func (g *Gateway) countConnections() {
	g.connN.Store(int64(len(g.conns)))
	g.Metrics.SetGatewayConnections(len(g.conns))
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (g *Gateway) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Connection{
		gateway: g,
		conn:    conn,
		remote:  c.ClientIP(),
		send:    make(chan []byte, 256),
		symbols: make(map[string]struct{}),
	}

	select {
	case g.register <- client:
	case <-g.quit:
		conn.Close()
		return
	}
	g.Logger.Debug("Stream client connected from %s", client.remote)

	go client.writePump()
	go client.readPump()
}
