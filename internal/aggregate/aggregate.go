// Package aggregate re-buckets fixed-size upstream pages into client-sized pages.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
	"github.com/mohammed-shakir/catalog-cache/internal/logger"
)

var ErrBadLayout = errors.New("aggregate: page sizes must be positive")

type Layout struct {
	UpstreamSize int
	ClientSize   int
}

func (l Layout) Validate() error {
	if l.UpstreamSize <= 0 || l.ClientSize <= 0 {
		return fmt.Errorf("%w: upstream=%d client=%d", ErrBadLayout, l.UpstreamSize, l.ClientSize)
	}
	return nil
}

// Window is the span of upstream pages that covers one client page, plus how many leading
// items of the first upstream page belong to the previous client page.
type Window struct {
	First, Last int
	Skip        int
}

func (w Window) Pages() []int {
	out := make([]int, 0, w.Last-w.First+1)
	for p := w.First; p <= w.Last; p++ {
		out = append(out, p)
	}
	return out
}

// Cover computes the window for clientPage. When ClientSize is k*UpstreamSize this is pages
// (c-1)*k+1 through (c-1)*k+k with nothing skipped.
func (l Layout) Cover(clientPage int) Window {
	clientPage = max(clientPage, 1)
	start := (clientPage - 1) * l.ClientSize
	end := start + l.ClientSize
	first := start/l.UpstreamSize + 1
	return Window{
		First: first,
		Last:  (end-1)/l.UpstreamSize + 1,
		Skip:  start - (first-1)*l.UpstreamSize,
	}
}

// FetchFunc loads one upstream page (1-based).
type FetchFunc[T any] func(ctx context.Context, page int) (model.Page[T], error)

type options struct {
	log *slog.Logger
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = logger.For(l, "aggregate") }
}

type result[T any] struct {
	page model.Page[T]
	err  error
}

// Result is an assembled client page. Truncated reports that a later upstream page failed, so
// Items stops short of what the upstream holds for this window.
type Result[T any] struct {
	Page      model.Page[T]
	Truncated bool
}

// FetchClientPage is Fetch without the truncation flag.
func FetchClientPage[T any](ctx context.Context, fetch FetchFunc[T], clientPage int, layout Layout, opts ...Option) (model.Page[T], error) {
	res, err := Fetch(ctx, fetch, clientPage, layout, opts...)
	return res.Page, err
}

// Fetch fetches every upstream page of the window concurrently and concatenates
// them in upstream order.
//
// A failure of the first upstream page fails the client page. A failure of a later page
// truncates the result at that page: the items before it are returned and the page is
// under-filled (len(Items) < ClientSize). Every page is still requested. TotalPages is
// recomputed from the first page's TotalItems and ClientSize.
func Fetch[T any](ctx context.Context, fetch FetchFunc[T], clientPage int, layout Layout, opts ...Option) (Result[T], error) {
	o := options{log: logger.Nop()}
	for _, f := range opts {
		f(&o)
	}
	if err := layout.Validate(); err != nil {
		return Result[T]{}, err
	}
	clientPage = max(clientPage, 1)
	win := layout.Cover(clientPage)
	pages := win.Pages()

	results := make([]result[T], len(pages))
	var g errgroup.Group
	for i, p := range pages {
		g.Go(func() error {
			pg, err := fetch(ctx, p)
			results[i] = result[T]{page: pg, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := results[0].err; err != nil {
		return Result[T]{}, fmt.Errorf("upstream page %d: %w", pages[0], err)
	}

	items := make([]T, 0, layout.ClientSize+win.Skip)
	truncated := false
	for i, r := range results {
		if r.err != nil {
			truncated = true
			o.log.WarnContext(ctx, "partial client page",
				"client_page", clientPage, "failed_upstream_page", pages[i], "items", max(len(items)-win.Skip, 0), "err", r.err)
			break
		}
		items = append(items, r.page.Items...)
	}
	if win.Skip >= len(items) {
		items = items[:0]
	} else {
		items = items[win.Skip:]
	}
	if len(items) > layout.ClientSize {
		items = items[:layout.ClientSize]
	}

	total := max(results[0].page.TotalItems, 0)
	return Result[T]{
		Page: model.Page[T]{
			Items:        items,
			TotalItems:   total,
			ItemsPerPage: layout.ClientSize,
			CurrentPage:  clientPage,
			TotalPages:   model.TotalPages(total, layout.ClientSize),
		},
		Truncated: truncated,
	}, nil
}
