package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/catalog-cache/internal/core/model"
	"github.com/mohammed-shakir/catalog-cache/internal/decision"
)

var (
	listPage    int
	listFilters model.FilterSet
)

var listCmd = &cobra.Command{
	Use:   "list <category|country|year|list|search|newest> [slug-or-keyword]",
	Short: "Resolve one client page against the upstream and print it as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, ok := decision.ParseRouteKind(args[0])
		if !ok {
			return fmt.Errorf("unknown listing kind %q", args[0])
		}
		slug := ""
		if len(args) == 2 {
			slug = args[1]
		}
		if slug == "" && kind != decision.RouteNewest && kind != decision.RouteSearch {
			return errors.New("a slug is required for this listing")
		}

		a, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		page := a.catalog.Resolve(cmd.Context(), kind, slug, listFilters, listPage)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail <slug>",
	Short: "Print one movie with its episodes as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		d, ok := a.catalog.Detail(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("movie %q not found", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

func init() {
	f := listCmd.Flags()
	f.IntVarP(&listPage, "page", "p", 1, "client page number")
	f.StringVar(&listFilters.Type, "type", "", "collection filter (phim-le, phim-bo, ...)")
	f.StringVar(&listFilters.Category, "category", "", "category slug")
	f.StringVar(&listFilters.Country, "country", "", "country slug")
	f.StringVar(&listFilters.Year, "year", "", "release year")
	f.StringVar(&listFilters.Keyword, "keyword", "", "search keyword")
	f.StringVar(&listFilters.SortField, "sort-field", "", "_id, modified.time or year")
	f.StringVar(&listFilters.SortOrder, "sort-type", "", "asc or desc")
	f.StringVar(&listFilters.Language, "lang", "", "vietsub, thuyet-minh or long-tieng")
	f.IntVar(&listFilters.Limit, "limit", 0, "upstream page size override")

	rootCmd.AddCommand(detailCmd)
}
