package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownDialect means a list payload matched neither the v1 nor the legacy shape.
	ErrUnknownDialect = errors.New("upstream: unknown list response dialect")
	// ErrNoMovie means a detail payload carried no movie.
	ErrNoMovie = errors.New("upstream: detail response has no movie")
)

const (
	DialectLegacy = "legacy"
	DialectV1     = "v1"
)

// ListResponse is one page of movies in either dialect.
type ListResponse interface {
	Dialect() string
	Items() []RawMovie
	Pagination() Pagination
	// ImageDomain is the per-response prefix for relative image paths.
	ImageDomain() string
}

type LegacyListResponse struct {
	RawItems  []RawMovie `json:"items"`
	Page      Pagination `json:"pagination"`
	PathImage Text       `json:"pathImage"`
}

func (r *LegacyListResponse) Dialect() string        { return DialectLegacy }
func (r *LegacyListResponse) Items() []RawMovie      { return r.RawItems }
func (r *LegacyListResponse) Pagination() Pagination { return r.Page }
func (r *LegacyListResponse) ImageDomain() string    { return string(r.PathImage) }

type V1ListResponse struct {
	Data struct {
		Items  []RawMovie `json:"items"`
		Params struct {
			Pagination Pagination `json:"pagination"`
		} `json:"params"`
		CDNImage Text `json:"APP_DOMAIN_CDN_IMAGE"`
	} `json:"data"`
}

func (r *V1ListResponse) Dialect() string        { return DialectV1 }
func (r *V1ListResponse) Items() []RawMovie      { return r.Data.Items }
func (r *V1ListResponse) Pagination() Pagination { return r.Data.Params.Pagination }
func (r *V1ListResponse) ImageDomain() string    { return string(r.Data.CDNImage) }

// the discriminant: a "data" object means v1, a top-level "items" array means legacy
type dialectProbe struct {
	Data  json.RawMessage `json:"data"`
	Items json.RawMessage `json:"items"`
}

func DecodeList(b []byte) (ListResponse, error) {
	var probe dialectProbe
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownDialect, err)
	}
	switch {
	case isKind(probe.Data, '{'):
		var r V1ListResponse
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("decode v1 list: %w", err)
		}
		return &r, nil
	case isKind(probe.Items, '['):
		var r LegacyListResponse
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("decode legacy list: %w", err)
		}
		return &r, nil
	default:
		return nil, ErrUnknownDialect
	}
}

func DecodeDetail(b []byte) (DetailResponse, error) {
	var r DetailResponse
	if err := json.Unmarshal(b, &r); err != nil {
		return DetailResponse{}, fmt.Errorf("decode detail: %w", err)
	}
	if r.Movie.Slug == "" && r.Movie.ID == "" {
		return DetailResponse{}, ErrNoMovie
	}
	return r, nil
}

// DecodeTaxonomy reads a category or country list: a bare array, or a v1 envelope.
func DecodeTaxonomy(b []byte) ([]Taxon, error) {
	trimmed := bytes.TrimSpace(b)
	if isKind(trimmed, '[') {
		var out []Taxon
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode taxonomy: %w", err)
		}
		return out, nil
	}
	var env struct {
		Data struct {
			Items []Taxon `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	return env.Data.Items, nil
}

func isKind(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}
