package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
)

type Section struct {
	Slug   string                  `json:"slug"`
	Movies model.Page[model.Movie] `json:"movies"`
}

type Home struct {
	Categories []model.Category        `json:"categories"`
	Countries  []model.Country         `json:"countries"`
	Newest     model.Page[model.Movie] `json:"newest"`
	Sections   []Section               `json:"sections"`
}

// Home loads the landing batch concurrently. A failing part is empty; the rest is served.
func (s *Service) Home(ctx context.Context) Home {
	var h Home
	h.Sections = make([]Section, len(s.cfg.HomeSections))

	var g errgroup.Group
	g.SetLimit(4)
	g.Go(func() error {
		h.Categories = s.Categories(ctx)
		return nil
	})
	g.Go(func() error {
		h.Countries = s.Countries(ctx)
		return nil
	})
	g.Go(func() error {
		h.Newest = s.Newest(ctx, 1)
		return nil
	})
	for i, slug := range s.cfg.HomeSections {
		g.Go(func() error {
			h.Sections[i] = Section{Slug: slug, Movies: s.ByCategory(ctx, slug, model.FilterSet{}, 1)}
			return nil
		})
	}
	_ = g.Wait()
	return h
}
