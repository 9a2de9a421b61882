// Package server assembles the HTTP edge and runs it until the context ends.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/catalog-cache/internal/cache/sessionstore"
	"github.com/mohammed-shakir/catalog-cache/internal/core/config"
	"github.com/mohammed-shakir/catalog-cache/internal/core/health"
	middleware "github.com/mohammed-shakir/catalog-cache/internal/core/middleware"
	"github.com/mohammed-shakir/catalog-cache/internal/core/router"
	"github.com/mohammed-shakir/catalog-cache/internal/dedupe"
)

// Deps are the pieces the edge is built from. Nil members switch their feature off.
type Deps struct {
	API      *router.Handler
	Sessions *scs.SessionManager
	Dedup    *dedupe.Deduper
	Metrics  http.Handler
	// MetricsPath defaults to /metrics.
	MetricsPath string
	Ready       map[string]health.Pinger
}

// NewRouter wires the probes, the metrics endpoint and the catalog API. Sessions and request
// dedup apply to the API only.
func NewRouter(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if d.Sessions != nil {
			api.Use(sessionstore.Middleware(d.Sessions))
		}
		if d.Dedup != nil {
			var opts []dedupe.MiddlewareOption
			if d.Sessions != nil {
				opts = append(opts, dedupe.WithScope(sessionstore.Scope(d.Sessions)))
			}
			api.Use(dedupe.Middleware(d.Dedup, opts...))
		}
		if d.API != nil {
			d.API.Routes(api)
		}
	})
	return r
}

// Run serves handler on cfg.Addr until ctx is done, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// a search may wait on several upstream pages with retries
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
