package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mealsync/internal/debug"
	"github.com/steveyegge/mealsync/internal/syncer"
	"github.com/steveyegge/mealsync/internal/timeparsing"
	"github.com/steveyegge/mealsync/internal/types"
	"github.com/steveyegge/mealsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show last sync time, cached balance and collection sizes",
	GroupID: "views",
	Run: func(cmd *cobra.Command, args []string) {
		user := currentUser()
		orch := mustOrchestrator("status", modeReadOnly)

		st, err := orch.Status(rootCtx, user)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(st)
			return
		}
		fmt.Print(renderStatus(st))
	},
}

var mealsCmd = &cobra.Command{
	Use:     "meals",
	Short:   "List the reconciled meal log, newest first",
	GroupID: "views",
	Long: `List meals from the local store as of the last sync.

--since accepts a date (2025-01-20), a compact offset (-7d) or a phrase
(last monday).`,
	Run: func(cmd *cobra.Command, args []string) {
		user := currentUser()
		s := mustStores("meals", modeReadOnly)

		meals, err := syncer.LoadMeals(rootCtx, s.local, user)
		if err != nil {
			FatalError("%v", err)
		}
		if expr, _ := cmd.Flags().GetString("since"); expr != "" {
			since, err := timeparsing.ParseRelativeTime(expr, nowFunc())
			if err != nil {
				FatalError("invalid --since: %v", err)
			}
			meals = mealsSince(meals, since)
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(meals) > limit {
			meals = meals[:limit]
		}
		if asc, _ := cmd.Flags().GetBool("reverse"); asc {
			types.SortMeals(meals, types.SortAsc)
		}

		if jsonOutput {
			if meals == nil {
				meals = []types.MealEntry{}
			}
			outputJSON(meals)
			return
		}
		noPager, _ := cmd.Flags().GetBool("no-pager")
		if err := ui.ToPager(renderMeals(meals), ui.PagerOptions{NoPager: noPager}); err != nil {
			debug.Logf("pager exited: %v\n", err)
		}
	},
}

// mealsSince keeps meals created at or after since.
func mealsSince(meals []types.MealEntry, since time.Time) []types.MealEntry {
	var out []types.MealEntry
	for _, m := range meals {
		if !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out
}

func init() {
	mealsCmd.Flags().String("since", "", "Only meals at or after this time")
	mealsCmd.Flags().IntP("limit", "n", 0, "Show at most this many meals")
	mealsCmd.Flags().BoolP("reverse", "r", false, "Oldest first")
	mealsCmd.Flags().Bool("no-pager", false, "Print directly instead of through a pager")
	rootCmd.AddCommand(statusCmd, mealsCmd)
}
