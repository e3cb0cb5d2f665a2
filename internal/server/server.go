// Package server wires together the healing agent subsystems and exposes the
// HTTP API. main() builds a Server, calls Run, done.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/helix-ops/healing-agent/internal/classify"
	"github.com/helix-ops/healing-agent/internal/config"
	"github.com/helix-ops/healing-agent/internal/history"
	"github.com/helix-ops/healing-agent/internal/notify"
	"github.com/helix-ops/healing-agent/internal/orchestrator"
	"github.com/helix-ops/healing-agent/internal/remedy"
)

// Version info injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// deliveryReporter is implemented by notifiers that track delivery counters.
type deliveryReporter interface {
	DeliveryStats() notify.Stats
}

// Server is the assembled healing agent.
type Server struct {
	cfg    config.Config
	logger *zap.Logger

	gateway  *classify.Gateway
	executor *remedy.Executor
	store    *history.Store
	notifier notify.Notifier
	orch     *orchestrator.Orchestrator

	httpServer *http.Server
}

// New builds a fully-wired Server from already-constructed subsystems.
func New(cfg config.Config, logger *zap.Logger, gateway *classify.Gateway, executor *remedy.Executor, store *history.Store, notifier notify.Notifier, orch *orchestrator.Orchestrator) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		gateway:  gateway,
		executor: executor,
		store:    store,
		notifier: notifier,
		orch:     orch,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting healing agent",
		zap.String("addr", s.cfg.ListenAddr),
		zap.String("version", Version),
		zap.Bool("dry_run", s.cfg.DryRun),
		zap.Bool("ai_enabled", s.gateway.ReasonerAvailable()),
		zap.Bool("slack_enabled", s.notifier != nil && s.notifier.Enabled()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// deliveryStats returns notification counters when the notifier tracks them.
func (s *Server) deliveryStats() notify.Stats {
	if r, ok := s.notifier.(deliveryReporter); ok {
		return r.DeliveryStats()
	}
	return notify.Stats{}
}
