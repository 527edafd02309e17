package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mealsync/internal/debug"
	"github.com/steveyegge/mealsync/internal/repair"
	"github.com/steveyegge/mealsync/internal/syncer"
	"github.com/steveyegge/mealsync/internal/timeparsing"
	"github.com/steveyegge/mealsync/internal/types"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Reconcile every collection with the remote store",
	GroupID: "sync",
	Long: `Pull each collection from the local and remote stores, merge them with the
remote copy winning conflicts, drop meal items that reference unknown foods,
and write the result locally. Local-only records are pushed unless sync.push
is off. The point balance is rebuilt afterwards.

A failing collection does not stop the others. The command exits 1 when any
collection or the repair step failed.`,
	Run: func(cmd *cobra.Command, args []string) {
		user := currentUser()
		if noPush, _ := cmd.Flags().GetBool("no-push"); noPush {
			cfg.Sync.PushEnabled = false
		}
		orch := mustOrchestrator("sync", modeRemote)

		rep, err := orch.SyncAll(rootCtx, user)
		if err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(rep)
		} else if !quietFlag || !rep.OK() {
			fmt.Print(renderReport(rep))
		}
		if !rep.OK() {
			FatalError("sync incomplete: %s", describeFailures(rep))
		}
	},
}

// describeFailures names what failed in a report.
func describeFailures(rep *syncer.Report) string {
	var parts []string
	for _, c := range rep.FailedCollections() {
		parts = append(parts, string(c))
	}
	if len(rep.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("%d other errors", len(rep.Errors)))
	}
	if len(parts) == 0 {
		return "unknown failure"
	}
	return strings.Join(parts, ", ")
}

var repairCmd = &cobra.Command{
	Use:     "repair",
	Short:   "Rebuild the point balance from the local meal log",
	GroupID: "sync",
	Long: `Replay the cached meal log day by day and overwrite the cached point balance.
The remote store is not contacted.

--as-of accepts a date (2025-01-20), a compact offset (-1d) or a phrase
(yesterday). The default is today.`,
	Run: func(cmd *cobra.Command, args []string) {
		user := currentUser()
		asOf := nowFunc()
		if expr, _ := cmd.Flags().GetString("as-of"); expr != "" {
			day, err := timeparsing.ParseDay(expr, asOf)
			if err != nil {
				FatalError("invalid --as-of: %v", err)
			}
			asOf = day
		}
		orch := mustOrchestrator("repair", modeLocal)

		bal, st, err := orch.RepairAsOf(rootCtx, user, asOf)
		if err != nil {
			FatalError("repair failed: %v", err)
		}
		if jsonOutput {
			outputJSON(struct {
				UserID  string             `json:"user_id"`
				Balance types.PointBalance `json:"balance"`
				Stats   repair.Stats       `json:"stats"`
			}{user, bal, st})
			return
		}
		debug.PrintNormal("%s", renderRepair(user, bal, st))
	},
}

func init() {
	syncCmd.Flags().Bool("no-push", false, "Do not send local-only records to the remote store")
	repairCmd.Flags().String("as-of", "", "Last day to replay (date, offset like -1d, or phrase like yesterday)")
	rootCmd.AddCommand(syncCmd, repairCmd)
}
