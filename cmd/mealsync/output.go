package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/mealsync/internal/catalog"
	"github.com/steveyegge/mealsync/internal/migrate"
	"github.com/steveyegge/mealsync/internal/repair"
	"github.com/steveyegge/mealsync/internal/syncer"
	"github.com/steveyegge/mealsync/internal/types"
	"github.com/steveyegge/mealsync/internal/ui"
)

// lowBalance is where the balance turns from green to yellow.
const lowBalance = 3

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		FatalError("encoding JSON: %v", err)
	}
}

func renderState(s syncer.State) string {
	switch s {
	case syncer.StateDone:
		return ui.Mark(ui.TonePass) + " " + string(s)
	case syncer.StateFailed:
		return ui.Mark(ui.ToneFail) + " " + ui.Paint(ui.ToneFail, string(s))
	default:
		return ui.Mark(ui.ToneMuted) + " " + ui.Paint(ui.ToneMuted, string(s))
	}
}

func renderBalance(b *types.PointBalance) string {
	if b == nil {
		return ui.Paint(ui.ToneMuted, "not computed")
	}
	s := ui.RenderPoints(b.Current, lowBalance) + ui.Paint(ui.ToneMuted, " (lifetime "+ui.FormatPoints(b.LifetimeTotal)+")")
	if b.LastClaimDate != "" {
		s += ui.Paint(ui.ToneMuted, ", last accrual " + b.LastClaimDate)
	}
	return s
}

func count(n int) string {
	if n == 0 {
		return ui.Paint(ui.ToneMuted, "0")
	}
	return strconv.Itoa(n)
}

// renderReport formats a sync report for the terminal.
func renderReport(r *syncer.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s in %s\n",
		ui.Heading("sync"), r.UserID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	tbl := &ui.Table{Headers: []string{"collection", "state", "merged", "local-only", "remote-only", "pushed", "skipped", "removed"}}
	for _, c := range types.SyncedCollections {
		cr, ok := r.Collections[c]
		if !ok {
			continue
		}
		state := renderState(cr.State)
		if cr.Failed() {
			state += ui.Paint(ui.ToneMuted, " at " + string(cr.FailedAt))
		}
		tbl.AddRow(string(c), state, count(cr.Merged), count(cr.LocalOnly), count(cr.RemoteOnly),
			count(cr.Pushed), count(cr.Skipped), count(cr.Removed))
	}
	b.WriteString(tbl.Render())

	for _, c := range types.SyncedCollections {
		cr, ok := r.Collections[c]
		if !ok {
			continue
		}
		for _, n := range cr.Notes {
			fmt.Fprintf(&b, "%s %s: %s\n", ui.Mark(ui.ToneAccent), c, n)
		}
		if len(cr.Narrowed) > 0 {
			fmt.Fprintf(&b, "%s %s: dropped unknown foods from %s\n", ui.Mark(ui.ToneWarn), c, strings.Join(cr.Narrowed, ", "))
		}
		for _, e := range cr.Errors {
			fmt.Fprintf(&b, "%s %s: %s\n", ui.Mark(ui.ToneFail), c, e)
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "%s %s\n", ui.Mark(ui.ToneFail), e)
	}
	fmt.Fprintf(&b, "Points: %s\n", renderBalance(r.Balance))
	return b.String()
}

func renderRepair(user string, bal types.PointBalance, st repair.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ui.Heading("repair"), user)
	fmt.Fprintf(&b, "Points: %s\n", renderBalance(&bal))
	fmt.Fprintf(&b, "Replayed %d days: %d entries costed, %d on cheat days, spent %s\n",
		st.Days, st.EntriesCosted, st.EntriesExempt, ui.FormatPoints(st.Spent))
	if st.EntriesFuture > 0 {
		fmt.Fprintf(&b, "%s %d entries after the as-of day were not replayed\n", ui.Mark(ui.ToneWarn), st.EntriesFuture)
	}
	if st.ItemsIgnored > 0 {
		fmt.Fprintf(&b, "%s %d item references cost nothing (unknown food or negative amount)\n", ui.Mark(ui.ToneWarn), st.ItemsIgnored)
	}
	return b.String()
}

func renderStatus(st *syncer.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ui.Heading("status"), st.UserID)
	last := ui.Paint(ui.ToneWarn, "never")
	if !st.LastSync.IsZero() {
		last = st.LastSync.Local().Format(time.DateTime)
	}
	fmt.Fprintf(&b, "Last sync: %s\n", last)
	if st.Syncing {
		fmt.Fprintf(&b, "%s sync in progress\n", ui.Mark(ui.ToneAccent))
	}
	fmt.Fprintf(&b, "Points: %s\n", renderBalance(st.Balance))

	tbl := &ui.Table{Headers: []string{"collection", "records", "unreadable"}}
	for _, c := range types.SyncedCollections {
		tbl.AddRow(string(c), strconv.Itoa(st.Counts[c]), count(st.Skipped[c]))
	}
	b.WriteString(tbl.Render())
	return b.String()
}

func renderMeals(meals []types.MealEntry) string {
	if len(meals) == 0 {
		return ui.Paint(ui.ToneMuted, "No meals logged.") + "\n"
	}
	tbl := &ui.Table{Headers: []string{"time", "label", "category", "items", "score"}, MaxWidth: 40}
	for _, m := range meals {
		tbl.AddRow(m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Label, m.Category,
			strconv.Itoa(len(m.Items)), ui.FormatPoints(m.Score))
	}
	return tbl.Render()
}

func renderMigration(res migrate.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ui.Heading("migrate"), res.UserID)
	if res.AlreadyCompleted {
		fmt.Fprintf(&b, "%s already migrated, nothing to do\n", ui.Mark(ui.TonePass))
		return b.String()
	}
	collections := make([]string, 0, len(res.Collections))
	for c := range res.Collections {
		collections = append(collections, string(c))
	}
	sort.Strings(collections)

	tbl := &ui.Table{Headers: []string{"collection", "found", "migrated", "skipped", "new ids", "pushed", "kept remote", "merged"}}
	for _, c := range collections {
		cr := res.Collections[types.Collection(c)]
		tbl.AddRow(c, strconv.Itoa(cr.Found), strconv.Itoa(cr.Migrated), count(cr.Skipped),
			count(cr.AssignedIDs), count(cr.Pushed), count(cr.Superseded), strconv.Itoa(cr.Merged))
	}
	b.WriteString(tbl.Render())
	fmt.Fprintf(&b, "%s migrated %d records\n", ui.Mark(ui.TonePass), res.Total())
	return b.String()
}

func renderFoods(hits []catalog.Hit) string {
	if len(hits) == 0 {
		return ui.Paint(ui.ToneMuted, "No matching foods.") + "\n"
	}
	tbl := &ui.Table{Headers: []string{"id", "name", "points", "kcal"}}
	for _, h := range hits {
		name := ui.TruncateSimple(h.Food.Name, 40)
		if h.Food.Custom {
			name += ui.Paint(ui.ToneMuted, " (custom)")
		}
		tbl.AddRow(h.Food.ID, name, ui.FormatPoints(h.Food.PointCost), ui.FormatPoints(h.Food.Nutrients.Calories))
	}
	return tbl.Render()
}
