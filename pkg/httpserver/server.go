package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mselser95/kalshi-mm/internal/circuitbreaker"
	"github.com/mselser95/kalshi-mm/internal/engine"
	"github.com/mselser95/kalshi-mm/internal/fairvalue"
	"github.com/mselser95/kalshi-mm/internal/ledger"
	"github.com/mselser95/kalshi-mm/internal/orderbook"
	"github.com/mselser95/kalshi-mm/internal/risk"
	"github.com/mselser95/kalshi-mm/pkg/healthprobe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints for metrics, health checks and the operator API.
type Server struct {
	server        *http.Server
	handler       http.Handler
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration. API routes are mounted only for the
// components that are set.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker

	Books      *orderbook.Manager
	Engine     *engine.Engine
	Risk       *risk.Engine
	Ledger     *ledger.Ledger
	KillSwitch *circuitbreaker.KillSwitch
	FairValues *fairvalue.Store
	Model      *fairvalue.Model
	Clock      func() time.Time
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.Books != nil {
		ob := NewOrderbookHandler(cfg.Books, cfg.Engine, cfg.Logger)
		r.Get("/api/orderbook", ob.HandleOrderbook)
		if cfg.Engine != nil {
			r.Get("/api/decision", ob.HandleDecision)
		}
	}

	ctl := &ControlHandler{
		books:      cfg.Books,
		risk:       cfg.Risk,
		ledger:     cfg.Ledger,
		killSwitch: cfg.KillSwitch,
		fairValues: cfg.FairValues,
		model:      cfg.Model,
		logger:     cfg.Logger,
		now:        clock,
	}
	if cfg.Risk != nil && cfg.Ledger != nil {
		r.Get("/api/risk", ctl.HandleRisk)
	}
	if cfg.KillSwitch != nil {
		r.Route("/api/killswitch", func(r chi.Router) {
			r.Get("/", ctl.HandleKillSwitchStatus)
			r.Post("/activate", ctl.HandleKillSwitchActivate)
			r.Post("/reset", ctl.HandleKillSwitchReset)
		})
	}
	if cfg.FairValues != nil {
		r.Get("/api/fairvalue", ctl.HandleGetFairValue)
		r.Post("/api/fairvalue", ctl.HandleSetFairValue)
	}
	if cfg.Model != nil {
		r.Post("/api/spot", ctl.HandleSpot)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		handler:       r,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Handler returns the router, for serving without a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
