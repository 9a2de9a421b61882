package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
	"github.com/mohammed-shakir/catalog-cache/internal/hitevents"
)

type recorder struct {
	mu     sync.Mutex
	events []hitevents.BrowseEvent
}

func (r *recorder) Publish(ev hitevents.BrowseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []hitevents.BrowseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hitevents.BrowseEvent(nil), r.events...)
}

func ids(ms []model.Movie) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func idRange(prefix string, from, to int) []string {
	var out []string
	step := 1
	if from > to {
		step = -1
	}
	for i := from; ; i += step {
		out = append(out, fmt.Sprintf("%s-%d", prefix, i))
		if i == to {
			return out
		}
	}
}

func TestByCategory_AggregatesClientPages(t *testing.T) {
	fx := newFixture(t, 45, nil)
	ctx := context.Background()

	first := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 1)
	require.Len(t, first.Items, 20)
	assert.Equal(t, 45, first.TotalItems)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, 20, first.ItemsPerPage)
	assert.Equal(t, 1, first.CurrentPage)
	assert.Equal(t, idRange("hanh-dong", 45, 26), ids(first.Items))
	assert.Equal(t, "https://img.test/p/45.jpg", first.Items[0].Poster)

	last := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 3)
	assert.Equal(t, idRange("hanh-dong", 5, 1), ids(last.Items))
	assert.Equal(t, 3, last.CurrentPage)

	for _, u := range fx.up.seen() {
		assert.Equal(t, "/v1/api/the-loai/hanh-dong", u.Path)
		assert.Equal(t, "10", u.Query().Get("limit"))
		assert.Equal(t, "modified.time", u.Query().Get("sort_field"))
	}
}

func TestByCategory_InsertionAscendingIsReversedLocally(t *testing.T) {
	fx := newFixture(t, 45, nil)

	p := fx.svc.ByCategory(context.Background(), "hanh-dong", model.FilterSet{SortField: "_id", SortOrder: "asc"}, 1)

	assert.Equal(t, idRange("hanh-dong", 26, 45), ids(p.Items))
	seen := fx.up.seen()
	require.NotEmpty(t, seen)
	for _, u := range seen {
		assert.Equal(t, "desc", u.Query().Get("sort_type"), "upstream must never be asked for asc")
	}
}

func TestByCategory_ConflictingFiltersGoToSearch(t *testing.T) {
	fx := newFixture(t, 12, nil)

	p := fx.svc.ByCategory(context.Background(), "hanh-dong", model.FilterSet{Category: "tinh-cam", Country: "han-quoc"}, 1)
	assert.Len(t, p.Items, 12)

	seen := fx.up.seen()
	require.NotEmpty(t, seen)
	for _, u := range seen {
		assert.Equal(t, "/v1/api/tim-kiem", u.Path)
		assert.Equal(t, "tinh-cam", u.Query().Get("category"))
		assert.Equal(t, "han-quoc", u.Query().Get("country"))
	}
}

func TestByYear_UsesYearListing(t *testing.T) {
	fx := newFixture(t, 3, nil)

	p := fx.svc.ByYear(context.Background(), 2024, model.FilterSet{}, 1)
	assert.Len(t, p.Items, 3)
	assert.Equal(t, "/v1/api/nam/2024", fx.up.seen()[0].Path)
}

func TestResolve_MissingSlugIsEmpty(t *testing.T) {
	fx := newFixture(t, 45, nil)

	p := fx.svc.ByCountry(context.Background(), "  ", model.FilterSet{}, 2)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)
	assert.Equal(t, 2, p.CurrentPage)
	assert.Zero(t, fx.up.count())
}

func TestResolve_UpstreamDownServesEmptyPage(t *testing.T) {
	fx := newFixture(t, 45, func(up *fakeUpstream) { up.fail["/v1/api/"] = 500 })

	p := fx.svc.ByCategory(context.Background(), "hanh-dong", model.FilterSet{}, 1)

	assert.Empty(t, p.Items)
	assert.Zero(t, p.TotalItems)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 20, p.ItemsPerPage)
	// both upstream pages, four attempts each
	assert.EqualValues(t, 8, fx.fc.Calls())
}

func TestResolve_PartialPageIsNotCached(t *testing.T) {
	fx := newFixture(t, 45, func(up *fakeUpstream) { up.failPage = 2 })
	ctx := context.Background()

	p := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 1)
	assert.Equal(t, idRange("hanh-dong", 45, 36), ids(p.Items))
	assert.Equal(t, 45, p.TotalItems)

	before := fx.up.count()
	_ = fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 1)
	assert.Greater(t, fx.up.count(), before)
}

func TestResolve_TruncatedLastPageIsNotCached(t *testing.T) {
	rec := &recorder{}
	fx := newFixture(t, 55, func(up *fakeUpstream) { up.failPage = 6 }, WithEvents(rec))
	ctx := context.Background()

	p := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 3)
	require.Equal(t, idRange("hanh-dong", 15, 6), ids(p.Items))
	assert.Equal(t, 3, p.TotalPages)

	fx.up.setFailPage(0)
	before := fx.up.count()
	recovered := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 3)

	assert.Greater(t, fx.up.count(), before)
	assert.Equal(t, idRange("hanh-dong", 15, 1), ids(recovered.Items))

	evs := rec.all()
	require.Len(t, evs, 2)
	assert.True(t, evs[0].Partial)
	assert.False(t, evs[1].Partial)
	assert.False(t, evs[1].Cached)
}

func TestResolve_CachesAggregatedPages(t *testing.T) {
	rec := &recorder{}
	fx := newFixture(t, 45, nil, WithEvents(rec))
	ctx := context.Background()

	first := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 2)
	calls := fx.up.count()
	second := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{}, 2)

	assert.Equal(t, calls, fx.up.count())
	assert.Equal(t, first, second)

	other := fx.svc.ByCategory(ctx, "hanh-dong", model.FilterSet{Language: "vietsub"}, 2)
	assert.Greater(t, fx.up.count(), calls, "different filters must not share a cache entry")
	assert.Len(t, other.Items, 20)

	evs := rec.all()
	require.Len(t, evs, 3)
	assert.False(t, evs[0].Cached)
	assert.True(t, evs[1].Cached)
	assert.Equal(t, "category", evs[1].Route)
	assert.Equal(t, "hanh-dong", evs[1].Slug)
	assert.Equal(t, 2, evs[1].Page)
	assert.Equal(t, 20, evs[1].Items)
	assert.Empty(t, evs[1].Filters)
	assert.Equal(t, map[string]string{"sort_lang": "vietsub"}, evs[2].Filters)
}

func TestNewest_LegacyDialect(t *testing.T) {
	fx := newFixture(t, 45, nil)

	p := fx.svc.Newest(context.Background(), 1)
	require.Len(t, p.Items, 20)
	assert.Equal(t, "new-45", p.Items[0].ID)
	assert.Equal(t, "https://img.test/upload/vod/p/45.jpg", p.Items[0].Poster)
	assert.Equal(t, 3, p.TotalPages)
}

func TestDetail(t *testing.T) {
	fx := newFixture(t, 0, nil)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		before := fx.fc.Calls()
		_, ok := fx.svc.Detail(ctx, "khong-co")
		assert.False(t, ok)
		assert.EqualValues(t, 1, fx.fc.Calls()-before, "404 is not retried")
	})

	t.Run("found and cached", func(t *testing.T) {
		d, ok := fx.svc.Detail(ctx, "ngoi-nha")
		require.True(t, ok)
		assert.Equal(t, "Ngôi Nhà", d.Name)
		assert.Equal(t, 2024, d.Year)
		require.Len(t, d.Servers, 1)
		assert.Equal(t, "#Vietsub", d.Servers[0].Name)
		assert.Equal(t, "ngoi-nha-tap-1", d.Servers[0].Episodes[0].Filename)

		before := fx.fc.Calls()
		_, ok = fx.svc.Detail(ctx, "ngoi-nha")
		assert.True(t, ok)
		assert.Equal(t, before, fx.fc.Calls())
	})

	t.Run("empty slug", func(t *testing.T) {
		_, ok := fx.svc.Detail(ctx, "")
		assert.False(t, ok)
	})
}

func TestTaxonomy_CachedAfterFirstCall(t *testing.T) {
	fx := newFixture(t, 0, nil)
	ctx := context.Background()

	cats := fx.svc.Categories(ctx)
	require.Len(t, cats, 2)
	assert.Equal(t, model.Category{ID: "1", Name: "Hành Động", Slug: "hanh-dong"}, cats[0])

	calls := fx.fc.Calls()
	again := fx.svc.Categories(ctx)
	assert.Equal(t, cats, again)
	assert.Equal(t, calls, fx.fc.Calls())

	countries := fx.svc.Countries(ctx)
	assert.Equal(t, []model.Country{{ID: "9", Name: "Hàn Quốc", Slug: "han-quoc"}}, countries)
}

func TestHome_DegradesPerPart(t *testing.T) {
	fx := newFixture(t, 45, func(up *fakeUpstream) { up.fail["/quoc-gia"] = 500 })

	h := fx.svc.Home(context.Background())

	assert.Empty(t, h.Countries)
	assert.NotNil(t, h.Countries)
	assert.Len(t, h.Categories, 2)
	assert.Len(t, h.Newest.Items, 20)
	require.Len(t, h.Sections, 2)
	assert.Equal(t, "hanh-dong", h.Sections[0].Slug)
	assert.Equal(t, "tinh-cam", h.Sections[1].Slug)
	assert.Equal(t, "tinh-cam-45", h.Sections[1].Movies.Items[0].ID)
}
