// Package fetch is the resilient upstream client: bounded timeouts, retry with exponential
// backoff, a cache policy per resource and collapsing of identical concurrent calls.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mohammed-shakir/catalog-cache/internal/cache"
	"github.com/mohammed-shakir/catalog-cache/internal/cache/keys"
	"github.com/mohammed-shakir/catalog-cache/internal/core/observability"
	"github.com/mohammed-shakir/catalog-cache/internal/dedupe"
	"github.com/mohammed-shakir/catalog-cache/internal/logger"
	"github.com/mohammed-shakir/catalog-cache/internal/retry"
	"github.com/mohammed-shakir/catalog-cache/internal/upstream"
)

type Config struct {
	ListTimeout   time.Duration
	SearchTimeout time.Duration
	MaxRetries    int
	BaseDelay     time.Duration
	TaxonomyTTL   time.Duration
	// MaxBody caps a response body in bytes.
	MaxBody int64
}

func DefaultConfig() Config {
	return Config{
		ListTimeout:   8 * time.Second,
		SearchTimeout: 15 * time.Second,
		MaxRetries:    3,
		BaseDelay:     500 * time.Millisecond,
		TaxonomyTTL:   time.Hour,
		MaxBody:       8 << 20,
	}
}

// Request is one GET. TTL > 0 asks for the response to be cached; taxonomy resources are
// cached for the configured taxonomy TTL whatever the caller asks.
type Request struct {
	URL      string
	Resource upstream.Resource
	TTL      time.Duration
}

type Option func(*Client)

func WithCache(c *cache.TieredCache) Option {
	return func(cl *Client) { cl.cache = c }
}

func WithDeduper(d *dedupe.Deduper) Option {
	return func(cl *Client) { cl.dedup = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.log = logger.For(l, "fetch") }
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(cl *Client) { cl.sleep = fn }
}

type Client struct {
	http  *http.Client
	cfg   Config
	cache *cache.TieredCache
	dedup *dedupe.Deduper
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error

	calls atomic.Int64
}

func New(hc *http.Client, cfg Config, opts ...Option) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	def := DefaultConfig()
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = def.ListTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.TaxonomyTTL <= 0 {
		cfg.TaxonomyTTL = def.TaxonomyTTL
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = def.MaxBody
	}
	c := &Client{http: hc, cfg: cfg, log: logger.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Calls counts HTTP requests actually sent upstream, retries included.
func (c *Client) Calls() int64 { return c.calls.Load() }

// Timeout is the per-attempt ceiling for r.
func (c *Client) Timeout(r upstream.Resource) time.Duration {
	if r == upstream.ResourceSearch {
		return c.cfg.SearchTimeout
	}
	return c.cfg.ListTimeout
}

// CacheTTL applies the cache policy; zero means always fresh.
func (c *Client) CacheTTL(req Request) time.Duration {
	if req.Resource.IsTaxonomy() {
		return c.cfg.TaxonomyTTL
	}
	return max(req.TTL, 0)
}

func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	ttl := c.CacheTTL(req)
	key := keys.URL(req.URL)
	if ttl > 0 && c.cache != nil {
		if b, ok := c.cache.Get(ctx, key); ok {
			return b, nil
		}
	}

	var (
		b   []byte
		err error
	)
	if c.dedup != nil {
		var shared bool
		b, shared, err = c.dedup.Do(ctx, http.MethodGet, req.URL, func(ctx context.Context) ([]byte, error) {
			return c.withRetry(ctx, req)
		})
		if shared {
			c.log.DebugContext(ctx, "upstream call shared", "url", req.URL)
		}
	} else {
		b, err = c.withRetry(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if ttl > 0 && c.cache != nil {
		c.cache.Set(ctx, key, b, ttl)
	}
	return b, nil
}

func (c *Client) withRetry(ctx context.Context, req Request) ([]byte, error) {
	endpoint := string(req.Resource)
	policy := retry.Policy{
		MaxRetries: c.cfg.MaxRetries,
		BaseDelay:  c.cfg.BaseDelay,
		Sleep:      c.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			observability.IncUpstreamRetry(endpoint)
			c.log.WarnContext(ctx, "upstream retry",
				"url", req.URL, "attempt", attempt, "delay", delay, "err", err)
		},
	}

	var body []byte
	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		b, err := c.once(ctx, req)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, ErrNotFound):
		return nil, err
	default:
		observability.IncUpstreamFailure(endpoint)
		c.log.ErrorContext(ctx, "upstream failed", "url", req.URL, "attempts", attempts, "err", err)
		return nil, &NetworkError{URL: req.URL, Attempts: attempts, Err: err}
	}
}

func (c *Client) once(ctx context.Context, req Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout(req.Resource))
	defer cancel()

	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	hr.Header.Set("Accept", "application/json")

	c.calls.Add(1)
	start := time.Now()
	resp, err := c.http.Do(hr)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency(string(req.Resource), time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNotFound {
		return nil, retry.Permanent(fmt.Errorf("%s: %w", req.URL, ErrNotFound))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > c.cfg.MaxBody {
		return nil, retry.Permanent(fmt.Errorf("%s: %w: over %d bytes", req.URL, ErrTooLarge, c.cfg.MaxBody))
	}
	return b, nil
}
