// Package normalize maps upstream payloads onto the canonical model. Every function is pure;
// missing fields become empty values rather than errors.
package normalize

import (
	"strings"

	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
	"github.com/mohammed-shakir/catalog-cache/internal/upstream"
)

// Image makes raw absolute using the response's CDN domain. Absolute and protocol-relative
// URLs pass through, as does everything when no domain was supplied.
func Image(raw, domain string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || isAbsolute(raw) {
		return raw
	}
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return raw
	}
	return strings.TrimRight(domain, "/") + "/" + strings.TrimLeft(raw, "/")
}

func isAbsolute(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "//")
}

func Movie(raw upstream.RawMovie, cdn string) model.Movie {
	return model.Movie{
		ID:             str(raw.ID),
		Name:           str(raw.Name),
		OriginName:     str(raw.OriginName),
		Slug:           str(raw.Slug),
		Poster:         Image(str(raw.PosterURL), cdn),
		Thumb:          Image(str(raw.ThumbURL), cdn),
		Year:           int(raw.Year),
		Type:           str(raw.Type),
		Quality:        str(raw.Quality),
		Lang:           str(raw.Lang),
		EpisodeCurrent: str(raw.EpisodeCurrent),
		Time:           str(raw.Time),
		Modified:       str(raw.Modified.Time),
		Categories:     Categories(raw.Category),
		Countries:      Countries(raw.Country),
	}
}

func Movies(raws []upstream.RawMovie, cdn string) []model.Movie {
	out := make([]model.Movie, 0, len(raws))
	for _, r := range raws {
		out = append(out, Movie(r, cdn))
	}
	return out
}

// MovieDetail keeps server grouping and episode order. Episodes without a filename get
// "<movieSlug>-<episodeSlug>".
func MovieDetail(resp upstream.DetailResponse, cdn string) model.MovieDetail {
	m := Movie(resp.Movie, cdn)
	servers := make([]model.Server, 0, len(resp.Episodes))
	for _, s := range resp.Episodes {
		eps := make([]model.Episode, 0, len(s.ServerData))
		for _, e := range s.ServerData {
			ep := model.Episode{
				Name:      str(e.Name),
				Slug:      str(e.Slug),
				Filename:  str(e.Filename),
				LinkEmbed: str(e.LinkEmbed),
				LinkM3U8:  str(e.LinkM3U8),
			}
			if ep.Filename == "" {
				ep.Filename = m.Slug + "-" + ep.Slug
			}
			eps = append(eps, ep)
		}
		servers = append(servers, model.Server{Name: str(s.ServerName), Episodes: eps})
	}
	return model.MovieDetail{
		Movie:        m,
		Content:      str(resp.Movie.Content),
		Status:       str(resp.Movie.Status),
		Cast:         texts(resp.Movie.Actor),
		Directors:    texts(resp.Movie.Director),
		EpisodeTotal: str(resp.Movie.EpisodeTotal),
		Trailer:      str(resp.Movie.TrailerURL),
		Servers:      servers,
	}
}

func Category(t upstream.Taxon) model.Category {
	return model.Category{ID: str(t.ID), Name: str(t.Name), Slug: str(t.Slug)}
}

func Country(t upstream.Taxon) model.Country {
	return model.Country{ID: str(t.ID), Name: str(t.Name), Slug: str(t.Slug)}
}

func Categories(ts []upstream.Taxon) []model.Category {
	out := make([]model.Category, 0, len(ts))
	for _, t := range ts {
		out = append(out, Category(t))
	}
	return out
}

func Countries(ts []upstream.Taxon) []model.Country {
	out := make([]model.Country, 0, len(ts))
	for _, t := range ts {
		out = append(out, Country(t))
	}
	return out
}

// ListPage turns one upstream page of either dialect into a model page.
func ListPage(resp upstream.ListResponse) model.Page[model.Movie] {
	items := Movies(resp.Items(), resp.ImageDomain())
	p := resp.Pagination()

	perPage := int(p.TotalItemsPerPage)
	if perPage <= 0 {
		perPage = len(items)
	}
	current := max(int(p.CurrentPage), 1)
	total := max(int(p.TotalItems), 0)

	return model.Page[model.Movie]{
		Items:        items,
		TotalItems:   total,
		ItemsPerPage: perPage,
		CurrentPage:  current,
		TotalPages:   model.TotalPages(total, perPage),
	}
}

func str(t upstream.Text) string { return strings.TrimSpace(string(t)) }

func texts(ts []upstream.Text) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		if s := str(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
