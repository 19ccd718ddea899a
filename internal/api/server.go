// Package api exposes the pipeline over HTTP: run triggers, run status,
// health and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/config"
	"github.com/user/ingest-pipeline/internal/pipeline"
	"github.com/user/ingest-pipeline/internal/storage"
)

// Pinger is anything with connectivity worth checking at /api/health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config       *config.Config
	router       http.Handler
	httpServer   *http.Server
	orchestrator *pipeline.Orchestrator
	store        storage.Store
	cachePinger  Pinger
	logger       *zap.Logger

	runCtx context.Context
}

// NewServer creates the HTTP server. cachePinger may be nil when the cache has
// no external backend. runCtx is the lifetime context handed to triggered runs
// so shutdown cancels them.
func NewServer(
	cfg *config.Config,
	o *pipeline.Orchestrator,
	store storage.Store,
	cachePinger Pinger,
	logger *zap.Logger,
	runCtx context.Context,
) *Server {
	s := &Server{
		config:       cfg,
		orchestrator: o,
		store:        store,
		cachePinger:  cachePinger,
		logger:       logger,
		runCtx:       runCtx,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
