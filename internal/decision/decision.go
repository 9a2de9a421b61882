// Package decision turns a navigation context and a filter set into an upstream call plan.
package decision

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
	"github.com/mohammed-shakir/catalog-cache/internal/upstream"
)

type RouteKind string

const (
	RouteCategory RouteKind = "category"
	RouteCountry  RouteKind = "country"
	RouteYear     RouteKind = "year"
	RouteSearch   RouteKind = "search"
	RouteList     RouteKind = "list"
	RouteNewest   RouteKind = "newest"
)

func ParseRouteKind(s string) (RouteKind, bool) {
	switch k := RouteKind(strings.ToLower(strings.TrimSpace(s))); k {
	case RouteCategory, RouteCountry, RouteYear, RouteSearch, RouteList, RouteNewest:
		return k, true
	default:
		return "", false
	}
}

// Reason records why a plan targets its endpoint.
type Reason string

const (
	ReasonRoute          Reason = "route"
	ReasonConflict       Reason = "conflict"
	ReasonMultiDimension Reason = "multi_dimension"
	ReasonKeyword        Reason = "keyword"
)

const (
	SortInsertion = "_id"
	SortModified  = "modified.time"
	OrderAsc      = "asc"
	OrderDesc     = "desc"
)

type Defaults struct {
	SortField string
	SortOrder string
	Limit     int
}

// DefaultsFor returns the listing defaults for an upstream page size.
func DefaultsFor(upstreamPageSize int) Defaults {
	return Defaults{SortField: SortModified, SortOrder: OrderDesc, Limit: upstreamPageSize}
}

type Plan struct {
	Resource upstream.Resource
	Slug     string
	// Params excludes the page number.
	Params url.Values
	// ReverseItems asks the caller to reverse each page it returns.
	ReverseItems bool
	Reason       Reason
}

func (p Plan) URL(e upstream.Endpoints, page int) string {
	switch p.Resource {
	case upstream.ResourceSearch:
		return e.Search(p.Params, page)
	case upstream.ResourceNewest:
		return e.Newest(page)
	default:
		return e.List(p.Resource, p.Slug, p.Params, page)
	}
}

// Identity flattens the plan into the fields that distinguish its results.
func (p Plan) Identity() map[string]string {
	out := make(map[string]string, len(p.Params)+2)
	for k := range p.Params {
		out[k] = p.Params.Get(k)
	}
	out["slug"] = p.Slug
	if p.ReverseItems {
		out["reverse"] = "1"
	}
	return out
}

var routeResource = map[RouteKind]upstream.Resource{
	RouteCategory: upstream.ResourceCategory,
	RouteCountry:  upstream.ResourceCountry,
	RouteYear:     upstream.ResourceYear,
	RouteList:     upstream.ResourceList,
}

// Resolve picks the upstream endpoint:
//   - a category, country or year route whose slug conflicts with a filter, or with more than
//     one primary dimension set, or with a keyword, goes to search with every dimension as a
//     query parameter (filter values win over the route slug);
//   - otherwise the route's own endpoint is used with its slug and the secondary parameters.
//
// Sorting by insertion id ascending is sent upstream as descending with ReverseItems set.
func Resolve(kind RouteKind, slug string, f model.FilterSet, d Defaults) Plan {
	slug = strings.TrimSpace(slug)
	f = trimFilters(f)

	switch kind {
	case RouteNewest:
		return Plan{Resource: upstream.ResourceNewest, Params: url.Values{}, Reason: ReasonRoute}
	case RouteSearch:
		keyword := slug
		if keyword == "" {
			keyword = f.Keyword
		}
		params := secondary(f, d)
		params.Set("keyword", keyword)
		addDimensions(params, f.Category, f.Country, f.Year)
		return finish(Plan{Resource: upstream.ResourceSearch, Params: params, Reason: ReasonRoute})
	case RouteList:
		if slug == "" {
			slug = f.Type
		}
		params := secondary(f, d)
		addDimensions(params, f.Category, f.Country, f.Year)
		return finish(Plan{Resource: upstream.ResourceList, Slug: slug, Params: params, Reason: ReasonRoute})
	}

	dims := map[RouteKind]string{
		RouteCategory: f.Category,
		RouteCountry:  f.Country,
		RouteYear:     f.Year,
	}
	reason := ReasonRoute
	if slug != "" {
		if v := dims[kind]; v != "" && !strings.EqualFold(v, slug) {
			reason = ReasonConflict
		} else {
			dims[kind] = slug
		}
	}
	set := 0
	for _, v := range dims {
		if v != "" {
			set++
		}
	}
	if reason == ReasonRoute && set > 1 {
		reason = ReasonMultiDimension
	}
	if reason == ReasonRoute && f.Keyword != "" {
		reason = ReasonKeyword
	}

	params := secondary(f, d)
	if reason != ReasonRoute {
		params.Set("keyword", f.Keyword)
		addDimensions(params, dims[RouteCategory], dims[RouteCountry], dims[RouteYear])
		return finish(Plan{Resource: upstream.ResourceSearch, Params: params, Reason: reason})
	}
	return finish(Plan{Resource: routeResource[kind], Slug: dims[kind], Params: params, Reason: reason})
}

func secondary(f model.FilterSet, d Defaults) url.Values {
	p := url.Values{}
	field := f.SortField
	if field == "" {
		field = d.SortField
	}
	order := strings.ToLower(f.SortOrder)
	if order == "" {
		order = d.SortOrder
	}
	limit := f.Limit
	if limit <= 0 {
		limit = d.Limit
	}
	if field != "" {
		p.Set("sort_field", field)
	}
	if order != "" {
		p.Set("sort_type", order)
	}
	if f.Language != "" {
		p.Set("sort_lang", f.Language)
	}
	if limit > 0 {
		p.Set("limit", strconv.Itoa(limit))
	}
	return p
}

func addDimensions(p url.Values, category, country, year string) {
	if category != "" {
		p.Set("category", category)
	}
	if country != "" {
		p.Set("country", country)
	}
	if year != "" {
		p.Set("year", year)
	}
}

// upstream cannot list oldest-first by insertion, so ask for newest-first and flip
func finish(p Plan) Plan {
	if p.Params.Get("sort_field") == SortInsertion && p.Params.Get("sort_type") == OrderAsc {
		p.Params.Set("sort_type", OrderDesc)
		p.ReverseItems = true
	}
	return p
}

func trimFilters(f model.FilterSet) model.FilterSet {
	f.Type = strings.TrimSpace(f.Type)
	f.Category = strings.TrimSpace(f.Category)
	f.Country = strings.TrimSpace(f.Country)
	f.Year = strings.TrimSpace(f.Year)
	f.Keyword = strings.TrimSpace(f.Keyword)
	f.SortField = strings.TrimSpace(f.SortField)
	f.SortOrder = strings.TrimSpace(f.SortOrder)
	f.Language = strings.TrimSpace(f.Language)
	return f
}
