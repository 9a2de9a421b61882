// Package upstream describes the third-party catalog API: its endpoints, its two list
// dialects and its detail and taxonomy payloads.
package upstream

import (
	"net/url"
	"strconv"
	"strings"
)

// Resource names what a request fetches. It drives timeouts and cache policy.
type Resource string

const (
	ResourceCategory   Resource = "category"
	ResourceCountry    Resource = "country"
	ResourceYear       Resource = "year"
	ResourceList       Resource = "list"
	ResourceSearch     Resource = "search"
	ResourceNewest     Resource = "newest"
	ResourceDetail     Resource = "detail"
	ResourceCategories Resource = "categories"
	ResourceCountries  Resource = "countries"
)

// IsTaxonomy reports whether r is one of the rarely changing lookup lists.
func (r Resource) IsTaxonomy() bool {
	return r == ResourceCategories || r == ResourceCountries
}

var listPaths = map[Resource]string{
	ResourceCategory: "/v1/api/the-loai/",
	ResourceCountry:  "/v1/api/quoc-gia/",
	ResourceYear:     "/v1/api/nam/",
	ResourceList:     "/v1/api/danh-sach/",
}

type Endpoints struct {
	Base string
}

func NewEndpoints(base string) Endpoints {
	return Endpoints{Base: strings.TrimRight(strings.TrimSpace(base), "/")}
}

// List builds a single-dimension listing URL. Resources without a listing path fall back
// to search.
func (e Endpoints) List(r Resource, slug string, params url.Values, page int) string {
	p, ok := listPaths[r]
	if !ok {
		return e.Search(params, page)
	}
	return e.Base + p + url.PathEscape(slug) + "?" + withPage(params, page).Encode()
}

func (e Endpoints) Search(params url.Values, page int) string {
	return e.Base + "/v1/api/tim-kiem?" + withPage(params, page).Encode()
}

// Newest is the legacy-dialect feed of recently updated titles.
func (e Endpoints) Newest(page int) string {
	return e.Base + "/danh-sach/phim-moi-cap-nhat?" + withPage(nil, page).Encode()
}

func (e Endpoints) Detail(slug string) string {
	return e.Base + "/phim/" + url.PathEscape(slug)
}

func (e Endpoints) Categories() string { return e.Base + "/the-loai" }

func (e Endpoints) Countries() string { return e.Base + "/quoc-gia" }

func withPage(params url.Values, page int) url.Values {
	out := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				out.Add(k, v)
			}
		}
	}
	if page < 1 {
		page = 1
	}
	out.Set("page", strconv.Itoa(page))
	return out
}
