package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammed-shakir/catalog-cache/internal/cache"
	"github.com/mohammed-shakir/catalog-cache/internal/fetch"
	"github.com/mohammed-shakir/catalog-cache/internal/upstream"
)

// fakeUpstream mimics the catalog API. Every listing holds total items "<slug>-<n>", n in
// insertion order; sort_type=desc lists the newest first.
type fakeUpstream struct {
	t     *testing.T
	total int
	fail  map[string]int // path prefix -> status
	mu sync.Mutex
	// failPage makes that page of every v1 listing answer 500.
	failPage int
	requests []*url.URL
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL)
	failPage := f.failPage
	f.mu.Unlock()

	for prefix, status := range f.fail {
		if strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(status)
			return
		}
	}

	q := r.URL.Query()
	switch {
	case r.URL.Path == "/the-loai":
		writeJSON(w, []map[string]string{{"_id": "1", "name": "Hành Động", "slug": "hanh-dong"}, {"_id": "2", "name": "Tình Cảm", "slug": "tinh-cam"}})
	case r.URL.Path == "/quoc-gia":
		writeJSON(w, []map[string]string{{"_id": "9", "name": "Hàn Quốc", "slug": "han-quoc"}})
	case strings.HasPrefix(r.URL.Path, "/phim/"):
		slug := strings.TrimPrefix(r.URL.Path, "/phim/")
		if slug != "ngoi-nha" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{
			"status": true,
			"movie":  map[string]any{"_id": "m1", "slug": "ngoi-nha", "name": "Ngôi Nhà", "year": "2024"},
			"episodes": []map[string]any{{"server_name": "#Vietsub", "server_data": []map[string]string{
				{"name": "Tập 1", "slug": "tap-1"},
			}}},
		})
	case r.URL.Path == "/danh-sach/phim-moi-cap-nhat":
		page, _ := strconv.Atoi(q.Get("page"))
		writeJSON(w, map[string]any{
			"status":     true,
			"items":      f.items("new", page, 10, "desc"),
			"pagination": map[string]int{"totalItems": f.total, "totalItemsPerPage": 10, "currentPage": page},
			"pathImage":  "https://img.test/upload/vod/",
		})
	case strings.HasPrefix(r.URL.Path, "/v1/api/"):
		page, _ := strconv.Atoi(q.Get("page"))
		if failPage > 0 && page == failPage {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 10
		}
		slug := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		writeJSON(w, map[string]any{
			"status": "success",
			"data": map[string]any{
				"items": f.items(slug, page, limit, q.Get("sort_type")),
				"params": map[string]any{"pagination": map[string]int{
					"totalItems": f.total, "totalItemsPerPage": limit, "currentPage": page,
				}},
				"APP_DOMAIN_CDN_IMAGE": "https://img.test",
			},
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeUpstream) items(slug string, page, size int, order string) []map[string]any {
	out := []map[string]any{}
	for i := (page-1)*size + 1; i <= min(page*size, f.total); i++ {
		n := i
		if order == "desc" {
			n = f.total - i + 1
		}
		out = append(out, map[string]any{
			"_id": fmt.Sprintf("%s-%d", slug, n), "slug": fmt.Sprintf("%s-%d", slug, n),
			"name": fmt.Sprintf("Movie %d", n), "poster_url": fmt.Sprintf("p/%d.jpg", n),
		})
	}
	return out
}

func (f *fakeUpstream) seen() []*url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*url.URL(nil), f.requests...)
}

func (f *fakeUpstream) setFailPage(page int) {
	f.mu.Lock()
	f.failPage = page
	f.mu.Unlock()
}

func (f *fakeUpstream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

type fixture struct {
	svc *Service
	up  *fakeUpstream
	fc  *fetch.Client
}

// newFixture wires a service to a fake upstream. setup runs before the server starts.
func newFixture(t *testing.T, total int, setup func(*fakeUpstream), opts ...Option) fixture {
	t.Helper()
	up := &fakeUpstream{t: t, total: total, fail: map[string]int{}}
	if setup != nil {
		setup(up)
	}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	c := cache.New()
	t.Cleanup(c.Dispose)
	fc := fetch.New(srv.Client(), fetch.Config{MaxRetries: 3, BaseDelay: time.Millisecond},
		fetch.WithCache(c), fetch.WithSleep(noSleep))
	cfg := Config{
		UpstreamPageSize: 10,
		ClientPageSize:   20,
		PageTTL:          time.Minute,
		HomeSections:     []string{"hanh-dong", "tinh-cam"},
	}
	svc := New(fc, upstream.NewEndpoints(srv.URL), cfg, append([]Option{WithCache(c)}, opts...)...)
	return fixture{svc: svc, up: up, fc: fc}
}
