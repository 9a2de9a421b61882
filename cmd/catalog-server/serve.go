package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/catalog-cache/internal/core/router"
	"github.com/mohammed-shakir/catalog-cache/internal/core/server"
	"github.com/mohammed-shakir/catalog-cache/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default command)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  Revision,
			Branch:    Branch,
			BuildDate: BuildDate,
		},
	})

	a, err := buildApp(ctx, true)
	if err != nil {
		appLog.Error("startup failed", "err", err)
		return err
	}
	defer a.Close()

	appLog.Info("starting catalog server",
		"addr", cfg.Addr,
		"version", Version,
		"upstream", cfg.Upstream.BaseURL,
		"upstream_page_size", cfg.Upstream.PageSize,
		"client_page_size", cfg.Upstream.ClientSize)

	deps := server.Deps{
		API:      router.New(a.catalog, appLog),
		Sessions: a.sessions,
		Dedup:    a.dedup,
		Ready:    a.ready,
	}
	// a dedicated metrics listener replaces the route on the main router
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		deps.Metrics = p.Handler()
		deps.MetricsPath = cfg.Metrics.Path
	}
	handler := server.NewRouter(appLog, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Serve(gctx, appLog) })
	g.Go(func() error { return server.Run(gctx, cfg, appLog, handler) })
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		appLog.Error("server exited with error", "err", err)
		return err
	}
	appLog.Info("server stopped")
	return nil
}
