package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/steveyegge/mealsync/internal/debug"
	"github.com/steveyegge/mealsync/internal/migrate"
	"github.com/steveyegge/mealsync/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "Move records from the pre-account local format to the user's store",
	GroupID: "sync",
	Long: `Copy records saved before accounts existed into the given user's local and
remote collections. Legacy records never replace a document the remote
store already holds. The migration runs once per installation; later runs
do nothing unless --force is given.

--force clears the completion flag and migrates again. Records already in
the user's collections are kept, so re-running does not duplicate them.`,
	Run: func(cmd *cobra.Command, args []string) {
		user := currentUser()
		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")

		if force && !yes {
			if jsonOutput || !ui.IsTerminal() {
				FatalErrorWithHint("--force needs confirmation", "Pass --yes to run without a prompt")
			}
			ok, err := confirmForce(user)
			if err != nil {
				FatalError("%v", err)
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "Migration cancelled.")
				return
			}
		}

		runner := mustMigrator("migrate")
		var (
			res migrate.Result
			err error
		)
		if force {
			res, err = runner.ForceMigration(rootCtx, user)
		} else {
			res, err = runner.Migrate(rootCtx, user)
		}
		if err != nil {
			FatalError("migration failed: %v", err)
		}
		if jsonOutput {
			outputJSON(res)
			return
		}
		debug.PrintNormal("%s", renderMigration(res))
	},
}

func confirmForce(user string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Re-run the legacy migration for %s?", user)).
				Description("Legacy records are merged again. Records already in the account win.").
				Affirmative("Migrate").
				Negative("Cancel").
				Value(&ok),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func init() {
	migrateCmd.Flags().Bool("force", false, "Migrate again even if the installation already migrated")
	migrateCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt for --force")
	rootCmd.AddCommand(migrateCmd)
}
