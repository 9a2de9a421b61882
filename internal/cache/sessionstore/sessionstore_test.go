package sessionstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/catalog-cache/internal/cache"
)

func loaded(t *testing.T, sm *scs.SessionManager) context.Context {
	t.Helper()
	ctx, err := sm.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return Mark(ctx)
}

func TestStore_PersistedFormat(t *testing.T) {
	sm := scs.New()
	s := New(sm)
	ctx := loaded(t, sm)

	exp := time.UnixMilli(1_800_000_000_123)
	if err := s.Store(ctx, cache.Entry{Key: "k", Value: []byte("hello"), ExpiresAt: exp}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	raw := sm.GetString(ctx, "catalog-cache:k")
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("persisted value not JSON: %q", raw)
	}
	if rec["data"] != "aGVsbG8=" || rec["expiry"] != float64(1_800_000_000_123) {
		t.Fatalf("unexpected record: %v", rec)
	}

	e, ok, err := s.Load(ctx, "k")
	if err != nil || !ok || string(e.Value) != "hello" || !e.ExpiresAt.Equal(exp) {
		t.Fatalf("Load: %+v ok=%v err=%v", e, ok, err)
	}
}

func TestStore_AvailabilityNeedsMarkedContext(t *testing.T) {
	sm := scs.New()
	s := New(sm)
	if s.Available(context.Background()) {
		t.Fatal("plain context must not expose the session tier")
	}
	if !s.Available(loaded(t, sm)) {
		t.Fatal("marked context must expose the session tier")
	}
}

func TestStore_CorruptEntryIsErrorAndRemoved(t *testing.T) {
	sm := scs.New()
	s := New(sm)
	ctx := loaded(t, sm)
	sm.Put(ctx, "catalog-cache:k", "not json")

	if _, _, err := s.Load(ctx, "k"); err == nil {
		t.Fatal("expected decode error")
	}
	if sm.Exists(ctx, "catalog-cache:k") {
		t.Fatal("corrupt entry not removed")
	}
}

func TestStore_PurgeKeepsForeignKeys(t *testing.T) {
	sm := scs.New()
	s := New(sm)
	ctx := loaded(t, sm)
	sm.Put(ctx, "user_id", 7)
	_ = s.Store(ctx, cache.Entry{Key: "a", Value: []byte("1"), ExpiresAt: time.Now().Add(time.Minute)})
	_ = s.Store(ctx, cache.Entry{Key: "b", Value: []byte("2"), ExpiresAt: time.Now().Add(time.Minute)})

	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if got := sm.Keys(ctx); len(got) != 1 || got[0] != "user_id" {
		t.Fatalf("keys after purge=%v", got)
	}
}

func TestScope(t *testing.T) {
	sm := scs.New()
	scope := Scope(sm)

	committed := func() string {
		ctx, err := sm.Load(context.Background(), "")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		sm.Put(ctx, "seen", true)
		tok, _, err := sm.Commit(ctx)
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		return tok
	}
	request := func(tok string) *http.Request {
		ctx, err := sm.Load(context.Background(), tok)
		if err != nil {
			t.Fatalf("load %q: %v", tok, err)
		}
		return httptest.NewRequest(http.MethodGet, "/", nil).WithContext(Mark(ctx))
	}

	a, b := committed(), committed()
	sa, sb := scope(request(a)), scope(request(b))
	if sa == "" || sb == "" || sa == sb {
		t.Fatalf("scopes a=%q b=%q", sa, sb)
	}
	if again := scope(request(a)); again != sa {
		t.Fatalf("scope not stable: %q then %q", sa, again)
	}
	if got := scope(request("")); got != "" {
		t.Fatalf("fresh session scope=%q want empty", got)
	}
	if got := scope(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Fatalf("unloaded request scope=%q want empty", got)
	}
}

// Two requests in one browsing session: the second process-local cache is empty, so the
// value must come from the session persisted in redis.
func TestMiddleware_SessionTierAcrossRequests(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sm := NewManager(rdb, time.Minute)
	store := New(sm)

	handler := func(c *cache.TieredCache) http.Handler {
		return Middleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("write") == "1" {
				c.Set(r.Context(), "movies:1", []byte("cached"), time.Minute)
			}
			v, ok := c.Get(r.Context(), "movies:1")
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(v)
		}))
	}

	rr := httptest.NewRecorder()
	handler(cache.New(cache.WithPersistent(store))).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?write=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first request status=%d", rr.Code)
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "catalog_session" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie issued")
	}
	if !cookie.Expires.IsZero() || cookie.MaxAge != 0 {
		t.Fatalf("session cookie must not persist: %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	handler(cache.New(cache.WithPersistent(store))).ServeHTTP(rr, req)
	body, _ := io.ReadAll(rr.Body)
	if rr.Code != http.StatusOK || string(body) != "cached" {
		t.Fatalf("second request status=%d body=%q", rr.Code, body)
	}

	// a visitor without the cookie has no session tier to fall back on
	rr = httptest.NewRecorder()
	handler(cache.New(cache.WithPersistent(store))).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("new visitor status=%d want 404", rr.Code)
	}
}
