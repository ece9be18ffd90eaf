// Package api exposes indexed billing reports over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/genolytics/labmetrics/pkg/api/indexer"
	"github.com/genolytics/labmetrics/pkg/api/reportstore"
	"github.com/genolytics/labmetrics/pkg/config"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	reportsDir string
	store      reportstore.Store
	indexer    indexer.Indexer
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server serving reports from reportsDir.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	reportsDir string,
) Server {
	return &server{
		log:        log.WithField("component", "api"),
		cfg:        cfg,
		reportsDir: reportsDir,
		done:       make(chan struct{}),
	}
}

// Start opens the snapshot store, binds the listener, and starts the
// HTTP server and the background indexer.
func (s *server) Start(ctx context.Context) error {
	s.store = reportstore.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting report store: %w", err)
	}

	// Prepare the indexer before building the router, but do NOT start
	// it yet. The HTTP server must be listening first.
	if s.cfg.Indexing.Enabled {
		interval, err := s.cfg.Indexing.IndexInterval()
		if err != nil {
			return fmt.Errorf("parsing indexing interval: %w", err)
		}

		s.indexer = indexer.NewIndexer(
			s.log, s.store, s.reportsDir, interval, s.cfg.Indexing.Concurrency,
		)

		s.log.Info("Indexing service enabled")
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// Start the background indexer AFTER the API is listening so the
	// server is reachable while the first (potentially slow) pass runs.
	if s.indexer != nil {
		if err := s.indexer.Start(ctx); err != nil {
			return fmt.Errorf("starting indexer: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.indexer != nil {
		if err := s.indexer.Stop(); err != nil {
			s.log.WithError(err).Warn("Indexer stop error")
		}
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping report store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
