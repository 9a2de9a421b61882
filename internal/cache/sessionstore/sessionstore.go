// Package sessionstore is the session-scoped persistent cache tier. Entries live inside the
// visitor's scs session (stored in Redis) and disappear with it.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/catalog-cache/internal/cache"
	"github.com/mohammed-shakir/catalog-cache/internal/logger"
)

const KeyPrefix = "catalog-cache:"

type markerKey struct{}

// record is the persisted text form of one entry.
type record struct {
	Data   []byte `json:"data"`
	Expiry int64  `json:"expiry"`
}

// NewManager builds a session manager backed by Redis with a non-persistent cookie.
func NewManager(client *redis.Client, idle time.Duration) *scs.SessionManager {
	sm := scs.New()
	if client != nil {
		sm.Store = goredisstore.New(client)
	}
	if idle > 0 {
		sm.IdleTimeout = idle
	}
	sm.Cookie.Name = "catalog_session"
	sm.Cookie.Persist = false
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	return sm
}

// Mark flags ctx as carrying loaded session data for sm.
func Mark(ctx context.Context) context.Context {
	return context.WithValue(ctx, markerKey{}, true)
}

func marked(ctx context.Context) bool {
	v, _ := ctx.Value(markerKey{}).(bool)
	return v
}

// Middleware loads the session and marks the request context so the persistent tier
// becomes available to everything downstream.
func Middleware(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		mark := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := Mark(r.Context())
			if tok := sm.Token(ctx); tok != "" {
				ctx = logger.WithSession(ctx, fmt.Sprintf("%016x", xxhash.Sum64String(tok))[:8])
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		return sm.LoadAndSave(mark)
	}
}

// Scope identifies the visitor of r by session for request dedup. It is empty when the
// request has no loaded session or the session has no token yet.
func Scope(sm *scs.SessionManager) func(*http.Request) string {
	return func(r *http.Request) string {
		ctx := r.Context()
		if !marked(ctx) {
			return ""
		}
		tok := sm.Token(ctx)
		if tok == "" {
			return ""
		}
		return fmt.Sprintf("session:%016x", xxhash.Sum64String(tok))
	}
}

type Store struct {
	sm *scs.SessionManager
}

var _ cache.Persistent = (*Store)(nil)

func New(sm *scs.SessionManager) *Store {
	return &Store{sm: sm}
}

func (s *Store) Available(ctx context.Context) bool {
	return s != nil && s.sm != nil && marked(ctx)
}

func (s *Store) Load(ctx context.Context, key string) (cache.Entry, bool, error) {
	raw := s.sm.GetString(ctx, KeyPrefix+key)
	if raw == "" {
		return cache.Entry{}, false, nil
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.sm.Remove(ctx, KeyPrefix+key)
		return cache.Entry{}, false, fmt.Errorf("decode session entry %q: %w", key, err)
	}
	return cache.Entry{Key: key, Value: rec.Data, ExpiresAt: time.UnixMilli(rec.Expiry)}, true, nil
}

func (s *Store) Store(ctx context.Context, e cache.Entry) error {
	b, err := json.Marshal(record{Data: e.Value, Expiry: e.ExpiresAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode session entry %q: %w", e.Key, err)
	}
	s.sm.Put(ctx, KeyPrefix+e.Key, string(b))
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.sm.Remove(ctx, KeyPrefix+key)
	return nil
}

// Purge removes this store's entries and leaves other session values alone.
func (s *Store) Purge(ctx context.Context) error {
	for _, k := range s.sm.Keys(ctx) {
		if strings.HasPrefix(k, KeyPrefix) {
			s.sm.Remove(ctx, k)
		}
	}
	return nil
}
