package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mealsync/internal/catalog"
	"github.com/steveyegge/mealsync/internal/syncer"
	"github.com/steveyegge/mealsync/internal/types"
)

var foodsCmd = &cobra.Command{
	Use:     "foods",
	Short:   "Browse the food catalog",
	GroupID: "views",
}

var foodsSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search foods by name",
	Long: `Search the built-in catalog, catalog.extra and, with --user, the user's
synced custom foods. Matching tolerates one typo per word and word prefixes.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		s := mustStores("foods", modeReadOnly)

		cat := s.catalog
		if userFlag != "" || cfg.User != "" {
			custom, err := customFoods(s, currentUser())
			if err != nil {
				FatalError("%v", err)
			}
			cat = cat.WithCustom(custom)
		}

		hits, err := searchCatalog(cat, strings.Join(args, " "), limit)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			if hits == nil {
				hits = []catalog.Hit{}
			}
			outputJSON(hits)
			return
		}
		fmt.Print(renderFoods(hits))
	},
}

func customFoods(s *stores, user string) ([]types.FoodItem, error) {
	es, _, err := syncer.LoadCollection(rootCtx, s.local, types.CollectionCustomFoods, user)
	if err != nil {
		return nil, err
	}
	out := make([]types.FoodItem, 0, len(es))
	for _, e := range es {
		if f, ok := e.(types.FoodItem); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func searchCatalog(cat *catalog.Catalog, query string, limit int) ([]catalog.Hit, error) {
	idx, err := catalog.NewIndex(cat)
	if err != nil {
		return nil, err
	}
	defer func() { _ = idx.Close() }()
	return idx.Search(query, limit)
}

func init() {
	foodsSearchCmd.Flags().IntP("limit", "n", 10, "Maximum results")
	foodsCmd.AddCommand(foodsSearchCmd)
	rootCmd.AddCommand(foodsCmd)
}
