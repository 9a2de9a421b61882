package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alexedwards/scs/v2"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/catalog-cache/internal/cache"
	"github.com/mohammed-shakir/catalog-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/catalog-cache/internal/cache/sessionstore"
	"github.com/mohammed-shakir/catalog-cache/internal/catalog"
	"github.com/mohammed-shakir/catalog-cache/internal/core/config"
	"github.com/mohammed-shakir/catalog-cache/internal/core/health"
	"github.com/mohammed-shakir/catalog-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/catalog-cache/internal/dedupe"
	"github.com/mohammed-shakir/catalog-cache/internal/fetch"
	"github.com/mohammed-shakir/catalog-cache/internal/hitevents"
	"github.com/mohammed-shakir/catalog-cache/internal/logger"
	"github.com/mohammed-shakir/catalog-cache/internal/upstream"
)

var (
	cfgFile string
	cfg     config.Config
	appLog  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "catalog-server",
	Short: "Caching data-access layer in front of the movie catalog API",
	Long: `catalog-server serves movie listings, details and taxonomies from an upstream
catalog API. Listings are re-paginated to a fixed client page size, cached in memory
(and per browsing session in redis when enabled) and upstream calls are retried with
backoff.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, keys named like the environment variables)")
	rootCmd.PersistentFlags().String("log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

func initializeApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	appLog = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "catalog-server",
	}, os.Stdout)
	return nil
}

// app holds the wired components shared by the serve and list commands.
type app struct {
	cache    *cache.TieredCache
	dedup    *dedupe.Deduper
	fetch    *fetch.Client
	catalog  *catalog.Service
	sessions *scs.SessionManager
	ready    map[string]health.Pinger
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires cache, fetch client and catalog from cfg. withEdge adds the pieces only
// the HTTP server needs: session tier and browse events.
func buildApp(ctx context.Context, withEdge bool) (*app, error) {
	a := &app{ready: map[string]health.Pinger{}}

	cacheOpts := []cache.Option{cache.WithLogger(appLog)}
	if withEdge && cfg.Session.Enabled {
		rc, err := redisstore.New(ctx, cfg.Session.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("session redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.sessions = sessionstore.NewManager(rc.Redis(), cfg.Session.IdleTimeout)
		cacheOpts = append(cacheOpts, cache.WithPersistent(sessionstore.New(a.sessions)))
		a.ready["redis"] = rc
		appLog.Info("session cache tier enabled", "redis", cfg.Session.RedisAddr)
	}
	a.cache = cache.New(cacheOpts...)
	a.closers = append(a.closers, a.cache.Dispose)

	a.dedup = dedupe.New(cfg.Dedup.Window, cfg.Dedup.MaxEntries)
	a.fetch = fetch.New(httpclient.NewOutbound(httpclient.DefaultUserAgent), fetch.Config{
		ListTimeout:   cfg.Fetch.ListTimeout,
		SearchTimeout: cfg.Fetch.SearchTimeout,
		MaxRetries:    cfg.Fetch.MaxRetries,
		BaseDelay:     cfg.Fetch.BaseDelay,
		TaxonomyTTL:   cfg.Cache.TaxonomyTTL,
	}, fetch.WithCache(a.cache), fetch.WithDeduper(a.dedup), fetch.WithLogger(appLog))

	var sink hitevents.Sink = hitevents.Nop{}
	if withEdge && cfg.HitEvents.Enabled {
		pub, err := hitevents.NewPublisher(cfg.HitEvents.Brokers, cfg.HitEvents.Topic, cfg.HitEvents.Queue, appLog)
		if err != nil {
			appLog.Warn("browse events disabled", "err", err)
		} else {
			a.closers = append(a.closers, func() { _ = pub.Close() })
			sink = pub
		}
	}

	a.catalog = catalog.New(a.fetch, upstream.NewEndpoints(cfg.Upstream.BaseURL), catalog.Config{
		UpstreamPageSize: cfg.Upstream.PageSize,
		ClientPageSize:   cfg.Upstream.ClientSize,
		PageTTL:          cfg.Cache.PageTTL,
		TTLOverrides:     cfg.Cache.TTLOvr,
		HomeSections:     cfg.HomeSections,
	}, catalog.WithCache(a.cache), catalog.WithLogger(appLog), catalog.WithEvents(sink))
	return a, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	// no config needed
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "catalog-server %s (revision %s, branch %s, built %s)\n", Version, Revision, Branch, BuildDate)
	},
}
