package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridwatch/outages/config"
	"github.com/gridwatch/outages/internal/api/middleware"
	"github.com/gridwatch/outages/internal/logging"
	"github.com/gridwatch/outages/internal/query"
	"github.com/gridwatch/outages/internal/refresh"
	"github.com/gridwatch/outages/internal/store"
)

// ServerConfig holds pure HTTP server settings.
type ServerConfig struct {
	Listen          string
	APIToken        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the outages HTTP API.
type Server struct {
	httpServer *http.Server
	cfg        ServerConfig

	query   *query.Service
	orch    *refresh.Orchestrator
	modeled *store.ModeledStore
}

// NewServer wires routes and middleware around the query service and the
// refresh orchestrator.
func NewServer(cfg ServerConfig, qs *query.Service, orch *refresh.Orchestrator, modeled *store.ModeledStore) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = config.DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultWriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = config.DefaultShutdownTimeout
	}

	s := &Server{
		cfg:     cfg,
		query:   qs,
		orch:    orch,
		modeled: modeled,
	}

	logger := logging.Component("api")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /data", s.handleGetData)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)

	// Middleware executes top-to-bottom; auth runs after logging so rejected
	// requests still show up in the request log.
	handler := middleware.Apply(mux,
		middleware.WithRecovery(logger),
		middleware.WithRequestLogger(logger),
		middleware.WithBearerAuth(cfg.APIToken, logger, "/healthz", "/status"),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	log := logging.Component("api")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("listening", "address", s.cfg.Listen, "auth", s.cfg.APIToken != "")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("serve: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
