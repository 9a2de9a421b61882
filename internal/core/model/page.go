package model

import "maps"

// Page is one page of a paginated listing. TotalPages is derived from TotalItems and
// ItemsPerPage; CurrentPage may exceed TotalPages while a caller handles an out-of-range page.
type Page[T any] struct {
	Items        []T `json:"items"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
}

// TotalPages returns ceil(total/perPage), or 0 when perPage is not positive.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Empty is the zero-item page returned when nothing was found or the upstream failed.
func Empty[T any](page, perPage int) Page[T] {
	if page < 1 {
		page = 1
	}
	return Page[T]{
		Items:        []T{},
		ItemsPerPage: perPage,
		CurrentPage:  page,
	}
}

// PageRequest describes what to fetch. It is immutable once built.
type PageRequest struct {
	resource string
	filters  map[string]string
	page     int
}

func NewPageRequest(resource string, filters map[string]string, page int) PageRequest {
	if page < 1 {
		page = 1
	}
	return PageRequest{resource: resource, filters: maps.Clone(filters), page: page}
}

func (r PageRequest) Resource() string { return r.resource }
func (r PageRequest) Page() int        { return r.page }

// Filters returns a copy of the request filters.
func (r PageRequest) Filters() map[string]string {
	return maps.Clone(r.filters)
}

// FilterSet holds the optional narrowing criteria of a listing query. An empty field means
// "no constraint"; defaults are applied by the decision package, never stored here.
type FilterSet struct {
	Type      string `json:"type,omitempty"`
	Category  string `json:"category,omitempty"`
	Country   string `json:"country,omitempty"`
	Year      string `json:"year,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	SortField string `json:"sort_field,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
	Language  string `json:"language,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Map renders the set fields under their upstream parameter names.
func (f FilterSet) Map() map[string]string {
	out := map[string]string{}
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("type", f.Type)
	put("category", f.Category)
	put("country", f.Country)
	put("year", f.Year)
	put("keyword", f.Keyword)
	put("sort_field", f.SortField)
	put("sort_type", f.SortOrder)
	put("sort_lang", f.Language)
	return out
}
