// Package cache implements the two-tier TTL cache: an in-process map in front of an optional
// session-scoped persistent tier.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/catalog-cache/internal/core/observability"
	"github.com/mohammed-shakir/catalog-cache/internal/logger"
)

const (
	TierMemory  = "memory"
	TierSession = "session"
)

type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// Persistent is the slower second tier. Available reports whether the tier can serve ctx;
// calls made while it is unavailable are not attempted.
type Persistent interface {
	Available(ctx context.Context) bool
	Load(ctx context.Context, key string) (Entry, bool, error)
	Store(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}

type Option func(*TieredCache)

func WithPersistent(p Persistent) Option {
	return func(c *TieredCache) { c.persist = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *TieredCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *TieredCache) { c.log = logger.For(l, "cache") }
}

type TieredCache struct {
	mu       sync.Mutex
	mem      map[string]Entry
	disposed bool

	persist Persistent
	now     func() time.Time
	log     *slog.Logger
}

func New(opts ...Option) *TieredCache {
	c := &TieredCache{
		mem: make(map[string]Entry),
		now: time.Now,
		log: logger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Tiers lists the tiers that serve calls made with ctx, fastest first.
func (c *TieredCache) Tiers(ctx context.Context) []string {
	if c.persist != nil && c.persist.Available(ctx) {
		return []string{TierMemory, TierSession}
	}
	return []string{TierMemory}
}

// Get returns a copy of the live value for key. Expired entries are evicted by this read.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	now := c.now()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, false
	}
	e, ok := c.mem[key]
	if ok && now.After(e.ExpiresAt) {
		delete(c.mem, key)
		c.mu.Unlock()
		observability.ObserveCache(TierMemory, "expired")
	} else {
		c.mu.Unlock()
		if ok {
			observability.ObserveCache(TierMemory, "hit")
			return clone(e.Value), true
		}
		observability.ObserveCache(TierMemory, "miss")
	}

	if c.persist == nil || !c.persist.Available(ctx) {
		return nil, false
	}

	pe, ok, err := c.persist.Load(ctx, key)
	if err != nil {
		observability.IncCacheTierError("load")
		c.log.WarnContext(logger.WithCacheTier(ctx, TierSession), "persistent tier load failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		observability.ObserveCache(TierSession, "miss")
		return nil, false
	}
	if now.After(pe.ExpiresAt) {
		observability.ObserveCache(TierSession, "expired")
		if err := c.persist.Delete(ctx, key); err != nil {
			observability.IncCacheTierError("delete")
			c.log.WarnContext(logger.WithCacheTier(ctx, TierSession), "persistent tier delete failed", "key", key, "err", err)
		}
		return nil, false
	}
	observability.ObserveCache(TierSession, "hit")

	// promote with the remaining lifetime, never a fresh one
	c.mu.Lock()
	if !c.disposed {
		c.mem[key] = Entry{Key: key, Value: clone(pe.Value), ExpiresAt: pe.ExpiresAt}
	}
	c.mu.Unlock()
	return clone(pe.Value), true
}

// Set writes value to every available tier. A non-positive ttl stores nothing.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	e := Entry{Key: key, Value: clone(value), ExpiresAt: c.now().Add(ttl)}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		c.log.DebugContext(ctx, "write after dispose dropped", "key", key)
		return
	}
	c.mem[key] = e
	c.mu.Unlock()

	if c.persist == nil || !c.persist.Available(ctx) {
		return
	}
	if err := c.persist.Store(ctx, e); err != nil {
		observability.IncCacheTierError("store")
		c.log.WarnContext(logger.WithCacheTier(ctx, TierSession), "persistent tier store failed", "key", key, "err", err)
	}
}

func (c *TieredCache) Remove(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	if c.persist == nil || !c.persist.Available(ctx) {
		return
	}
	if err := c.persist.Delete(ctx, key); err != nil {
		observability.IncCacheTierError("delete")
		c.log.WarnContext(logger.WithCacheTier(ctx, TierSession), "persistent tier delete failed", "key", key, "err", err)
	}
}

// Clear drops Tier 1 and, when ctx carries a session, that session's Tier 2 entries.
func (c *TieredCache) Clear(ctx context.Context) {
	c.mu.Lock()
	clear(c.mem)
	c.mu.Unlock()

	if c.persist == nil || !c.persist.Available(ctx) {
		return
	}
	if err := c.persist.Purge(ctx); err != nil {
		observability.IncCacheTierError("purge")
		c.log.WarnContext(logger.WithCacheTier(ctx, TierSession), "persistent tier purge failed", "err", err)
	}
}

// Dispose releases Tier 1. Afterwards reads miss and writes are dropped.
func (c *TieredCache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem = nil
	c.disposed = true
}

// Len counts Tier 1 entries, expired ones included until read.
func (c *TieredCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mem)
}

func GetJSON[T any](ctx context.Context, c *TieredCache, key string) (T, bool) {
	var zero T
	b, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		c.log.WarnContext(ctx, "cached value undecodable, dropping", "key", key, "err", err)
		c.Remove(ctx, key)
		return zero, false
	}
	return v, true
}

func SetJSON(ctx context.Context, c *TieredCache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	c.Set(ctx, key, b, ttl)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
