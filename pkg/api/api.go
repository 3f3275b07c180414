// Package api serves the persisted tables and their aggregates over a
// read-only HTTP interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/metrics"
	"github.com/ethpandaops/backupoor/pkg/report"
	"github.com/ethpandaops/backupoor/pkg/store"
)

const (
	shutdownTimeout          = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	// Addr returns the bound listen address once started.
	Addr() string
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	store      store.Store
	agg        *report.Aggregator
	metrics    *metrics.Metrics
	httpServer *http.Server
	listener   net.Listener
	group      *errgroup.Group
	done       chan struct{}
	stopOnce   sync.Once
	stopErr    error
}

// NewServer creates a new API server over a started store. m may be nil,
// in which case /metrics is not served.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	st store.Store,
	agg *report.Aggregator,
	m *metrics.Metrics,
) Server {
	return &server{
		log:     log.WithField("component", "api"),
		cfg:     cfg,
		store:   st,
		agg:     agg,
		metrics: m,
		done:    make(chan struct{}),
	}
}

// Start binds the listener and serves HTTP in the background.
func (s *server) Start(_ context.Context) error {
	timeout := s.cfg.ReadHeaderTimeout
	if timeout <= 0 {
		timeout = defaultReadHeaderTimeout
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: timeout,
	}
	s.listener = ln
	s.group = &errgroup.Group{}

	s.group.Go(func() error {
		s.log.WithField("listen", ln.Addr().String()).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}

		return nil
	})

	return nil
}

// Addr returns the bound listen address.
func (s *server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server. Calls after the first return
// the first call's result.
func (s *server) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
	})

	return s.stopErr
}

func (s *server) stop() error {
	close(s.done)

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("HTTP server shutdown error")
	}

	if err := s.group.Wait(); err != nil {
		return err
	}

	s.log.Info("API server stopped")

	return nil
}
