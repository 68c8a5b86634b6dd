// Package api serves the telemetry surface: a websocket event stream, the
// runtime status, live settings and prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"deriv-core/internal/engine"
	"deriv-core/internal/events"
	"deriv-core/internal/monitor"
)

// Server wires HTTP endpoints around the event bus.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	Service engine.Service
	Metrics *monitor.Metrics
	Meta    SystemMeta

	log  zerolog.Logger
	http *http.Server
}

// SystemMeta describes the process to the dashboard.
type SystemMeta struct {
	DryRun  bool     `json:"dry_run"`
	Symbols []string `json:"symbols"`
	Version string   `json:"version"`
}

func NewServer(svc engine.Service, bus *events.Bus, metrics *monitor.Metrics, meta SystemMeta, log zerolog.Logger) *Server {
	log = log.With().Str("component", "api").Logger()
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(RateLimitMiddleware(newIPLimiter(20, 50)))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Bus:     bus,
		Service: svc,
		Metrics: metrics,
		Meta:    meta,
		log:     log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/healthz", s.health)
	s.Router.GET("/ws", s.websocket)
	s.Router.GET("/status", s.getStatus)
	s.Router.GET("/positions", s.getPositions)
	s.Router.GET("/settings", s.getSettings)
	s.Router.PATCH("/settings", s.patchSettings)
	if s.Metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("telemetry server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
