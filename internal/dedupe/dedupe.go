// Package dedupe suppresses duplicate near-simultaneous requests: repeated edge requests get a
// marker instead of a second execution, and identical concurrent upstream calls share one.
package dedupe

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/catalog-cache/internal/core/observability"
)

type Marker string

const (
	MarkerInFlight       Marker = "in_flight"
	MarkerRecentlyServed Marker = "recently_served"
)

const (
	DefaultWindow     = 3 * time.Second
	DefaultMaxEntries = 4096
)

type Deduper struct {
	window time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	recent   *expirable.LRU[string, struct{}]

	group singleflight.Group
}

func New(window time.Duration, maxEntries int) *Deduper {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Deduper{
		window:   window,
		inflight: make(map[string]struct{}),
		recent:   expirable.NewLRU[string, struct{}](maxEntries, nil, window),
	}
}

func Signature(method, url string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + url
}

// Admit registers a request. It returns false with the reason when the same signature is
// in flight or was served within the window; the caller must then skip the work.
func (d *Deduper) Admit(method, url string) (Marker, bool) {
	sig := Signature(method, url)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inflight[sig]; ok {
		observability.IncDedupSuppressed(string(MarkerInFlight))
		return MarkerInFlight, false
	}
	if _, ok := d.recent.Get(sig); ok {
		observability.IncDedupSuppressed(string(MarkerRecentlyServed))
		return MarkerRecentlyServed, false
	}
	d.inflight[sig] = struct{}{}
	return "", true
}

// Done moves an admitted signature to recently served.
func (d *Deduper) Done(method, url string) {
	sig := Signature(method, url)
	d.mu.Lock()
	delete(d.inflight, sig)
	d.mu.Unlock()
	d.recent.Add(sig, struct{}{})
}

// Forget releases an admitted signature without remembering it, so a retry is not suppressed.
func (d *Deduper) Forget(method, url string) {
	d.mu.Lock()
	delete(d.inflight, Signature(method, url))
	d.mu.Unlock()
}

// Do runs fn once for all concurrent callers with the same signature. fn runs detached from
// the first caller's cancellation; each caller still stops waiting when its own ctx ends.
// shared reports whether the result was produced for another caller too.
func (d *Deduper) Do(ctx context.Context, method, url string, fn func(ctx context.Context) ([]byte, error)) (b []byte, shared bool, err error) {
	sig := Signature(method, url)
	detached := context.WithoutCancel(ctx)
	ch := d.group.DoChan(sig, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		out, _ := res.Val.([]byte)
		if res.Shared {
			out = bytes.Clone(out)
		}
		return out, res.Shared, nil
	}
}

func (d *Deduper) Window() time.Duration { return d.window }
