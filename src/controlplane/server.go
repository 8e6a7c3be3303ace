package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"market-dashboard/src/interfaces"
	"market-dashboard/src/logger"
	"market-dashboard/src/metrics"
	"market-dashboard/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server exposes the reference store over REST under /api
type Server struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Store   interfaces.IReferenceStore
	Metrics *metrics.Collector

	engine *gin.Engine
	http   *http.Server
}

// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, store interfaces.IReferenceStore, m *metrics.Collector, log *logger.Logger) *Server {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:  cfg,
		Logger:  log,
		Store:   store,
		Metrics: m,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": cfg.Storage.DBType})
	})
	if m != nil {
		s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}
	RegisterRoutes(s.engine.Group("/api"), store, StoreStatus, log)
	return s
}

// -----------------------------------------------------------------------------

func (s *Server) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

// Start serves until Shutdown; it returns nil after a clean shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting control plane on %s", addr)

	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
