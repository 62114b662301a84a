// Package webui serves a read-only JSON API over persisted analysis runs.
package webui

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/perf-analysis/fieldaccess/internal/repository"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
	"github.com/perf-analysis/fieldaccess/pkg/utils"
)

// Server exposes analysis runs over HTTP.
type Server struct {
	runs   repository.RunRepository
	addr   string
	logger utils.Logger
	server *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(runs repository.RunRepository, addr string, logger utils.Logger) *Server {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	return &Server{runs: runs, addr: addr, logger: logger}
}

// Handler returns the router of the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/api/health", s.handleHealth)
	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Get("/entries", s.handleListEntries)
			r.Get("/entries/{entryID}", s.handleGetEntry)
			r.Get("/types", s.handleTypes)
			r.Get("/flamegraph", s.handleFlameGraph)
		})
	})
	return r
}

// Start serves until the server is shut down or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Shutdown failed: %v", err)
		}
	}()

	s.logger.Info("Serving analysis runs at http://%s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(errors.CodeInternal, "serve", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"status":     ww.Status(),
		}).Debug("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}
