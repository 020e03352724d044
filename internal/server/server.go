// Package server exposes the live metadata surface of a running Ferro watch
// process: the api-metadata endpoint consumed by frontend clients at
// start-up, the catalog change report, the OpenAPI document, and the
// authenticated sync trigger.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ferrostack/ferro/internal/descriptor"
	"github.com/ferrostack/ferro/internal/openapi"
	"github.com/ferrostack/ferro/internal/orchestrator"
	"github.com/ferrostack/ferro/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int
	// TriggerSecret guards POST /_ferro/sync; empty disables auth.
	TriggerSecret string
	// BaseURL appears in the exported OpenAPI document's server list.
	BaseURL string
}

// DefaultConfig returns a Config with development defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            4680,
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"*"},
		RateLimit:       600,
	}
}

// Server is the metadata HTTP server. It reads published catalog snapshots
// from the orchestrator and never mutates them.
type Server struct {
	cfg        Config
	router     chi.Router
	orch       *orchestrator.Orchestrator
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready to
// listen.
func New(cfg Config, orch *orchestrator.Orchestrator, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(chimw.Compress(5))
	if s.cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Route("/_ferro", func(r chi.Router) {
		r.Get("/api-metadata", s.handleMetadata)
		r.Get("/changes", s.handleChanges)
		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(s.cfg.TriggerSecret))
			r.Post("/sync", s.handleSync)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. The server is always ready to serve
// metadata (an empty catalog is a valid response), so readiness reports
// whether a first successful sync has published a catalog yet.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	synced := s.orch.Snapshot() != nil
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"synced": synced,
	})
}

// handleMetadata serves the current catalog in the runtime wire shape. It
// must answer before the first successful run completes: a nil snapshot
// yields the empty fallback, never an error.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, descriptor.Metadata(s.orch.Snapshot()))
}

// handleChanges serves the diff between the two most recent successful
// catalogs.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Changes())
}

// handleStatus serves the orchestrator state and the latest run record.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":    s.orch.State(),
		"last_run": s.orch.LastRun(),
	})
}

// handleSync triggers a run and reports its outcome. The orchestrator
// serializes runs, so a concurrent trigger coalesces rather than stacking.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	run, err := s.orch.Sync(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"run":   run,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

// handleOpenAPI serves the OpenAPI 3.1 document for the current catalog.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	catalog := s.orch.Snapshot()
	if catalog == nil {
		catalog = descriptor.NewCatalog()
	}
	doc := openapi.Generate(catalog, s.cfg.BaseURL)
	data, err := doc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render OpenAPI document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or
// SIGTERM is received, then drains in-flight requests.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metadata server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("metadata server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, descriptor.ErrorResponse{
		Error: descriptor.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
