// Package server assembles the portal's HTTP surface: the upload
// endpoint, static serving of the disk store, health and readiness
// probes and the metrics endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/canaldelcongreso/portal/internal/config"
	"github.com/canaldelcongreso/portal/pkg/auth"
	"github.com/canaldelcongreso/portal/pkg/middleware"
	"github.com/canaldelcongreso/portal/pkg/upload"
)

// readyTimeout bounds each readiness check.
const readyTimeout = 2 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Deps are the collaborators a Server is built from. Config, Logger and
// Store are required.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger
	Store  upload.Store

	// Verifier gates the upload endpoint. Nil leaves it open.
	Verifier *auth.Verifier

	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]Check

	// Registry receives the portal metrics and backs /metrics.
	// Nil creates a fresh registry.
	Registry *prometheus.Registry

	// Tracer overrides the globally registered tracer.
	Tracer trace.Tracer
}

// Server is the portal HTTP server.
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	handler    http.Handler
	pipeline   *upload.Pipeline
	metrics    *middleware.Metrics
	checks     map[string]Check
	httpServer *http.Server
}

// New builds the router and the upload pipeline.
func New(deps Deps) *Server {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := middleware.NewMetrics(middleware.WithRegistry(reg))

	pipelineOpts := []upload.Option{
		upload.WithObserver(metrics),
		upload.WithLogger(logger),
	}
	otelOpts := []middleware.OTelOption{
		middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	}
	if deps.Tracer != nil {
		pipelineOpts = append(pipelineOpts, upload.WithTracer(deps.Tracer))
		otelOpts = append(otelOpts, middleware.WithTracer(deps.Tracer))
	}

	s := &Server{
		config:   deps.Config,
		logger:   logger,
		pipeline: upload.NewPipeline(deps.Store, pipelineOpts...),
		metrics:  metrics,
		checks:   deps.Checks,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientIP(deps.Config.Server.TrustedProxies, logger))
	r.Use(middleware.AccessLog(logger))
	r.Use(metrics.Handler)
	r.Use(middleware.OpenTelemetry(otelOpts...))

	uploads := upload.HandlerWithConfig(s.pipeline, &upload.Config{
		MaxRequestSize: deps.Config.Upload.MaxRequestBytes,
	})
	r.Group(func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(auth.RequireAuth(deps.Verifier,
				auth.WithCookieName(deps.Config.Auth.CookieName),
				auth.WithLogger(logger),
			))
		}
		r.Handle("/api/upload", uploads)
	})

	if disk, ok := deps.Store.(*upload.DiskStore); ok {
		if prefix := strings.TrimSuffix(deps.Config.Storage.URLPrefix, "/"); prefix != "" {
			r.Handle(prefix+"/*", newStaticHandler(os.DirFS(disk.Root()), prefix))
		}
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	s.handler = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Pipeline returns the upload pipeline the server routes to.
func (s *Server) Pipeline() *upload.Pipeline {
	return s.pipeline
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Server.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and waits for in-flight uploads,
// bounded by server.shutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout())
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
