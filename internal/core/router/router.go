// Package router exposes the catalog queries as a JSON API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/catalog-cache/internal/catalog"
	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
	"github.com/mohammed-shakir/catalog-cache/internal/decision"
	"github.com/mohammed-shakir/catalog-cache/internal/logger"
)

// Catalog is the query surface the handlers serve.
type Catalog interface {
	Resolve(ctx context.Context, kind decision.RouteKind, slug string, f model.FilterSet, page int) model.Page[model.Movie]
	Newest(ctx context.Context, page int) model.Page[model.Movie]
	Detail(ctx context.Context, slug string) (model.MovieDetail, bool)
	Categories(ctx context.Context) []model.Category
	Countries(ctx context.Context) []model.Country
	Home(ctx context.Context) catalog.Home
}

// ListQuery is the query string accepted by every listing route.
type ListQuery struct {
	Page      int    `query:"page" validate:"gte=1,lte=10000"`
	Type      string `query:"type" validate:"omitempty,max=64,slug"`
	Category  string `query:"category" validate:"omitempty,max=64,slug"`
	Country   string `query:"country" validate:"omitempty,max=64,slug"`
	Year      string `query:"year" validate:"omitempty,numeric,len=4"`
	Keyword   string `query:"keyword" validate:"omitempty,max=200"`
	SortField string `query:"sort_field" validate:"omitempty,oneof=_id modified.time year"`
	SortOrder string `query:"sort_type" validate:"omitempty,oneof=asc desc"`
	Language  string `query:"sort_lang" validate:"omitempty,oneof=vietsub thuyet-minh long-tieng"`
	Limit     int    `query:"limit" validate:"gte=0,lte=64"`
}

func (q ListQuery) Filters() model.FilterSet {
	return model.FilterSet{
		Type:      q.Type,
		Category:  q.Category,
		Country:   q.Country,
		Year:      q.Year,
		Keyword:   q.Keyword,
		SortField: q.SortField,
		SortOrder: q.SortOrder,
		Language:  q.Language,
		Limit:     q.Limit,
	}
}

// ValidationError carries one message per offending parameter.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+" "+v)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

type Handler struct {
	cat Catalog
	v   *validator.Validate
	log *slog.Logger
}

func New(cat Catalog, l *slog.Logger) *Handler {
	return &Handler{cat: cat, v: NewValidator(), log: logger.For(l, "router")}
}

// Routes registers the API on r, typically mounted under /api/v1.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/movies/{kind}/{slug}", h.listing)
	r.Get("/search", h.search)
	r.Get("/newest", h.newest)
	r.Get("/movie/{slug}", h.detail)
	r.Get("/categories", h.categories)
	r.Get("/countries", h.countries)
	r.Get("/home", h.home)
}

// ParseListQuery reads and validates the listing parameters. Page defaults to 1.
func (h *Handler) ParseListQuery(values url.Values) (ListQuery, error) {
	fields := map[string]string{}
	intParam := func(name string, def int) int {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields[name] = "must be a number"
			return def
		}
		return n
	}
	q := ListQuery{
		Page:      intParam("page", 1),
		Type:      strings.TrimSpace(values.Get("type")),
		Category:  strings.TrimSpace(values.Get("category")),
		Country:   strings.TrimSpace(values.Get("country")),
		Year:      strings.TrimSpace(values.Get("year")),
		Keyword:   strings.TrimSpace(values.Get("keyword")),
		SortField: strings.TrimSpace(values.Get("sort_field")),
		SortOrder: strings.ToLower(strings.TrimSpace(values.Get("sort_type"))),
		Language:  strings.TrimSpace(values.Get("sort_lang")),
		Limit:     intParam("limit", 0),
	}
	if err := h.v.Struct(q); err != nil {
		for k, msg := range fieldErrors(err) {
			if _, seen := fields[k]; !seen {
				fields[k] = msg
			}
		}
	}
	if len(fields) > 0 {
		return ListQuery{}, &ValidationError{Fields: fields}
	}
	return q, nil
}

// checkVar validates a single value and records the failure under name.
func (h *Handler) checkVar(fields map[string]string, name string, v any, tag string) {
	err := h.v.Var(v, tag)
	if err == nil {
		return
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fields[name] = ValidationMessage(ves[0])
		return
	}
	fields[name] = "is invalid"
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request) {
	kindRaw := chi.URLParam(r, "kind")
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))

	fields := map[string]string{}
	kind, ok := decision.ParseRouteKind(kindRaw)
	if !ok || kind == decision.RouteSearch || kind == decision.RouteNewest {
		fields["kind"] = "must be one of: category country year list"
	}
	if kind == decision.RouteYear {
		h.checkVar(fields, "slug", slug, "required,numeric,len=4")
	} else {
		h.checkVar(fields, "slug", slug, "required,max=100,slug")
	}
	q, err := h.ParseListQuery(r.URL.Query())
	if err != nil {
		h.badRequest(w, r, mergeFields(fields, err))
		return
	}
	if len(fields) > 0 {
		h.badRequest(w, r, fields)
		return
	}
	writeJSON(w, http.StatusOK, h.cat.Resolve(r.Context(), kind, slug, q.Filters(), q.Page))
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	q, err := h.ParseListQuery(r.URL.Query())
	if err != nil {
		fields = mergeFields(fields, err)
	}
	h.checkVar(fields, "keyword", strings.TrimSpace(r.URL.Query().Get("keyword")), "required,max=200")
	if len(fields) > 0 {
		h.badRequest(w, r, fields)
		return
	}
	writeJSON(w, http.StatusOK, h.cat.Resolve(r.Context(), decision.RouteSearch, q.Keyword, q.Filters(), q.Page))
}

func (h *Handler) newest(w http.ResponseWriter, r *http.Request) {
	q, err := h.ParseListQuery(r.URL.Query())
	if err != nil {
		h.badRequest(w, r, mergeFields(nil, err))
		return
	}
	writeJSON(w, http.StatusOK, h.cat.Newest(r.Context(), q.Page))
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	fields := map[string]string{}
	h.checkVar(fields, "slug", slug, "required,max=200,slug")
	if len(fields) > 0 {
		h.badRequest(w, r, fields)
		return
	}
	d, ok := h.cat.Detail(r.Context(), slug)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "movie not found"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cat.Categories(r.Context()))
}

func (h *Handler) countries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cat.Countries(r.Context()))
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cat.Home(r.Context()))
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	h.log.DebugContext(r.Context(), "rejected request", "path", r.URL.Path, "fields", fields)
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request", Fields: fields})
}

func mergeFields(into map[string]string, err error) map[string]string {
	if into == nil {
		into = map[string]string{}
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		for k, v := range ve.Fields {
			into[k] = v
		}
		return into
	}
	into["request"] = err.Error()
	return into
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
