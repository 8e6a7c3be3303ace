package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"market-dashboard/src/controlplane"
	"market-dashboard/src/helpers"
	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"
	"market-dashboard/src/protocol"
	"market-dashboard/src/session"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// DashboardServer
// -----------------------------------------------------------------------------

type DashboardServer struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Session   *session.Session
	Reference interfaces.IReferenceClient
	Metrics   *metrics.Collector

	engine *gin.Engine
	http   *http.Server

	// Viewer hub
	clients    map[*Client]struct{}
	changed    chan struct{}
	register   chan *Client
	unregister chan *Client
	viewerN    atomic.Int64
	quit       chan struct{}
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDashboardServer(cfg *models.MConfig, sess *session.Session, ref interfaces.IReferenceClient, m *metrics.Collector, log *logger.Logger) *DashboardServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &DashboardServer{
		Config:    cfg,
		Logger:    log,
		Session:   sess,
		Reference: ref,
		Metrics:   m,
		engine:    gin.New(),
		clients:   make(map[*Client]struct{}),
		// one pending signal is enough; frames carry the full state
		changed:    make(chan struct{}, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	sess.OnChange(func(session.Change) { s.Notify() })

	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DashboardServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/market/snapshot", s.getSnapshot)
	api.GET("/market/subscriptions", s.getSubscriptions)
	api.POST("/market/subscribe", s.postSubscription(models.ActionSubscribe))
	api.POST("/market/unsubscribe", s.postSubscription(models.ActionUnsubscribe))

	if s.Reference != nil {
		controlplane.RegisterRoutes(api, s.Reference, upstreamStatus, s.Logger)
	}
	if s.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------

// upstreamStatus keeps a reference API's client errors and reports anything
// else as a bad gateway
func upstreamStatus(err error) int {
	var fe *helpers.FetchError
	if errors.As(err, &fe) && fe.Status >= 400 && fe.Status < 500 {
		return fe.Status
	}
	return http.StatusBadGateway
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *DashboardServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP listener down and closes every viewer
func (s *DashboardServer) Stop(ctx context.Context) error {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *DashboardServer) getHealth(c *gin.Context) {
	status := s.Session.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"session":    status.SessionID,
		"connection": status.State,
		"viewers":    s.viewerCount(),
		"symbols":    status.Stats.Symbols,
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.buildFrame(FrameInitial))
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.Session.Tracker.Desired()})
}

// -----------------------------------------------------------------------------

type symbolsRequest struct {
	Symbols []string `json:"symbols" binding:"required"`
}

func (s *DashboardServer) postSubscription(action models.MAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req symbolsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		symbols := protocol.NormalizeSymbols(req.Symbols)
		if len(symbols) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no symbols given"})
			return
		}

		s.applySubscription(action, symbols)
		c.JSON(http.StatusAccepted, gin.H{"symbols": s.Session.Tracker.Desired()})
	}
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) applySubscription(action models.MAction, symbols []string) {
	if action == models.ActionUnsubscribe {
		s.Session.Unsubscribe(symbols)
	} else {
		s.Session.Subscribe(symbols)
	}
	s.Logger.Info("%s %v", action, symbols)
	s.Notify()
}
