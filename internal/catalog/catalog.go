// Package catalog is the query surface consumed by the UI layer. Every listing query
// resolves to a plan, is aggregated into client-sized pages, and never fails: upstream errors
// are logged and answered with an empty page.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/mohammed-shakir/catalog-cache/internal/aggregate"
	"github.com/mohammed-shakir/catalog-cache/internal/cache"
	"github.com/mohammed-shakir/catalog-cache/internal/cache/keys"
	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
	"github.com/mohammed-shakir/catalog-cache/internal/core/observability"
	"github.com/mohammed-shakir/catalog-cache/internal/decision"
	"github.com/mohammed-shakir/catalog-cache/internal/fetch"
	"github.com/mohammed-shakir/catalog-cache/internal/hitevents"
	"github.com/mohammed-shakir/catalog-cache/internal/logger"
	"github.com/mohammed-shakir/catalog-cache/internal/normalize"
	"github.com/mohammed-shakir/catalog-cache/internal/upstream"
)

// Fetcher performs one upstream GET.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) ([]byte, error)
}

type Config struct {
	UpstreamPageSize int
	ClientPageSize   int
	// PageTTL applies to aggregated pages and details unless TTLOverrides names the endpoint.
	PageTTL      time.Duration
	TTLOverrides map[string]time.Duration
	HomeSections []string
}

func DefaultConfig() Config {
	return Config{
		UpstreamPageSize: 10,
		ClientPageSize:   20,
		PageTTL:          5 * time.Minute,
		HomeSections:     []string{"hanh-dong", "tinh-cam", "hoat-hinh"},
	}
}

type Option func(*Service)

func WithCache(c *cache.TieredCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.base = l
		s.log = logger.For(l, "catalog")
	}
}

func WithEvents(sink hitevents.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.events = sink
		}
	}
}

type Service struct {
	fetch     Fetcher
	endpoints upstream.Endpoints
	cfg       Config
	defaults  decision.Defaults
	cache     *cache.TieredCache
	base      *slog.Logger
	log       *slog.Logger
	events    hitevents.Sink
}

func New(f Fetcher, endpoints upstream.Endpoints, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.UpstreamPageSize <= 0 {
		cfg.UpstreamPageSize = def.UpstreamPageSize
	}
	if cfg.ClientPageSize <= 0 {
		cfg.ClientPageSize = def.ClientPageSize
	}
	if cfg.PageTTL < 0 {
		cfg.PageTTL = 0
	}
	s := &Service{
		fetch:     f,
		endpoints: endpoints,
		cfg:       cfg,
		defaults:  decision.DefaultsFor(cfg.UpstreamPageSize),
		log:       logger.Nop(),
		events:    hitevents.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) ClientPageSize() int { return s.cfg.ClientPageSize }

func (s *Service) ByCategory(ctx context.Context, slug string, f model.FilterSet, page int) model.Page[model.Movie] {
	return s.Resolve(ctx, decision.RouteCategory, slug, f, page)
}

func (s *Service) ByCountry(ctx context.Context, slug string, f model.FilterSet, page int) model.Page[model.Movie] {
	return s.Resolve(ctx, decision.RouteCountry, slug, f, page)
}

func (s *Service) ByYear(ctx context.Context, year int, f model.FilterSet, page int) model.Page[model.Movie] {
	return s.Resolve(ctx, decision.RouteYear, strconv.Itoa(year), f, page)
}

// ByType lists one upstream collection (phim-le, phim-bo, hoat-hinh, tv-shows).
func (s *Service) ByType(ctx context.Context, typ string, f model.FilterSet, page int) model.Page[model.Movie] {
	return s.Resolve(ctx, decision.RouteList, typ, f, page)
}

func (s *Service) Search(ctx context.Context, keyword string, f model.FilterSet, page int) model.Page[model.Movie] {
	return s.Resolve(ctx, decision.RouteSearch, keyword, f, page)
}

func (s *Service) Newest(ctx context.Context, page int) model.Page[model.Movie] {
	return s.Resolve(ctx, decision.RouteNewest, "", model.FilterSet{}, page)
}

// Resolve answers any listing query. It never returns an error; failures yield an empty page.
func (s *Service) Resolve(ctx context.Context, kind decision.RouteKind, slug string, f model.FilterSet, page int) model.Page[model.Movie] {
	page = max(page, 1)
	plan := decision.Resolve(kind, slug, f, s.defaults)
	observability.ObserveRouteDecision(string(plan.Resource), string(plan.Reason))

	log := s.log.With("route", string(kind), "slug", slug, "page", page, "endpoint", string(plan.Resource))
	if needsSlug(plan.Resource) && plan.Slug == "" {
		log.WarnContext(ctx, "listing without slug")
		return model.Empty[model.Movie](page, s.cfg.ClientPageSize)
	}
	if plan.Reason != decision.ReasonRoute {
		log.DebugContext(ctx, "rerouted to search", "reason", string(plan.Reason))
	}

	layout := aggregate.Layout{UpstreamSize: s.upstreamSize(plan), ClientSize: s.cfg.ClientPageSize}
	req := model.NewPageRequest(string(plan.Resource), plan.Identity(), page)
	key := keys.Page(req.Resource(), req.Filters(), req.Page(), layout.ClientSize)
	if s.cache != nil {
		if cached, ok := cache.GetJSON[model.Page[model.Movie]](ctx, s.cache, key); ok {
			s.publish(kind, slug, req, f, cached, false, true)
			return cached
		}
	}

	res, err := aggregate.Fetch(ctx, s.upstreamPage(plan), req.Page(), layout, aggregate.WithLogger(s.base))
	if err != nil {
		log.ErrorContext(ctx, "listing failed, serving empty page", "err", err)
		return model.Empty[model.Movie](page, s.cfg.ClientPageSize)
	}
	result := res.Page
	if plan.ReverseItems {
		slices.Reverse(result.Items)
	}

	// a truncated page is served but never cached, whether or not it is the last one
	partial := res.Truncated || (len(result.Items) < layout.ClientSize && page < result.TotalPages)
	if s.cache != nil && !partial {
		if err := cache.SetJSON(ctx, s.cache, key, result, s.ttlFor(req.Resource())); err != nil {
			log.WarnContext(ctx, "cache page", "err", err)
		}
	}
	s.publish(kind, slug, req, f, result, partial, false)
	return result
}

func (s *Service) upstreamPage(plan decision.Plan) aggregate.FetchFunc[model.Movie] {
	return func(ctx context.Context, page int) (model.Page[model.Movie], error) {
		b, err := s.fetch.Fetch(ctx, fetch.Request{URL: plan.URL(s.endpoints, page), Resource: plan.Resource})
		if err != nil {
			return model.Page[model.Movie]{}, err
		}
		resp, err := upstream.DecodeList(b)
		if err != nil {
			return model.Page[model.Movie]{}, err
		}
		return normalize.ListPage(resp), nil
	}
}

// the limit parameter is the upstream page size whenever one is sent
func (s *Service) upstreamSize(plan decision.Plan) int {
	if n, err := strconv.Atoi(plan.Params.Get("limit")); err == nil && n > 0 {
		return n
	}
	return s.cfg.UpstreamPageSize
}

func needsSlug(r upstream.Resource) bool {
	switch r {
	case upstream.ResourceCategory, upstream.ResourceCountry, upstream.ResourceYear, upstream.ResourceList:
		return true
	}
	return false
}

func (s *Service) ttlFor(endpoint string) time.Duration {
	if d, ok := s.cfg.TTLOverrides[endpoint]; ok && d > 0 {
		return d
	}
	return s.cfg.PageTTL
}

func (s *Service) publish(kind decision.RouteKind, slug string, req model.PageRequest, f model.FilterSet, p model.Page[model.Movie], partial, cached bool) {
	s.events.Publish(hitevents.BrowseEvent{
		Route:    string(kind),
		Slug:     slug,
		Page:     req.Page(),
		Endpoint: req.Resource(),
		Filters:  f.Map(),
		Items:    len(p.Items),
		Partial:  partial,
		Cached:   cached,
		TS:       time.Now().UTC(),
	})
}

// Detail returns the movie, or false when upstream has no such slug or cannot be reached.
func (s *Service) Detail(ctx context.Context, slug string) (model.MovieDetail, bool) {
	if slug == "" {
		return model.MovieDetail{}, false
	}
	log := s.log.With("slug", slug)
	b, err := s.fetch.Fetch(ctx, fetch.Request{
		URL:      s.endpoints.Detail(slug),
		Resource: upstream.ResourceDetail,
		TTL:      s.ttlFor(string(upstream.ResourceDetail)),
	})
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			log.InfoContext(ctx, "movie not found")
		} else {
			log.ErrorContext(ctx, "detail failed", "err", err)
		}
		return model.MovieDetail{}, false
	}
	resp, err := upstream.DecodeDetail(b)
	if err != nil {
		log.InfoContext(ctx, "detail payload without movie", "err", err)
		return model.MovieDetail{}, false
	}
	d := normalize.MovieDetail(resp, "")
	s.events.Publish(hitevents.BrowseEvent{Route: "detail", Slug: slug, Endpoint: string(upstream.ResourceDetail), Items: 1, TS: time.Now().UTC()})
	return d, true
}

func (s *Service) Categories(ctx context.Context) []model.Category {
	ts, err := s.taxonomy(ctx, s.endpoints.Categories(), upstream.ResourceCategories)
	if err != nil {
		s.log.ErrorContext(ctx, "categories failed", "err", err)
		return []model.Category{}
	}
	return normalize.Categories(ts)
}

func (s *Service) Countries(ctx context.Context) []model.Country {
	ts, err := s.taxonomy(ctx, s.endpoints.Countries(), upstream.ResourceCountries)
	if err != nil {
		s.log.ErrorContext(ctx, "countries failed", "err", err)
		return []model.Country{}
	}
	return normalize.Countries(ts)
}

func (s *Service) taxonomy(ctx context.Context, u string, r upstream.Resource) ([]upstream.Taxon, error) {
	b, err := s.fetch.Fetch(ctx, fetch.Request{URL: u, Resource: r})
	if err != nil {
		return nil, err
	}
	return upstream.DecodeTaxonomy(b)
}
