package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of mealsync (overridden by ldflags at build time)
	Version = "0.1.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	GroupID:     "setup",
	Annotations: map[string]string{"no-config": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		commit := ""
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
		if jsonOutput {
			outputJSON(map[string]string{
				"version": Version,
				"build":   Build,
				"commit":  commit,
				"go":      runtime.Version(),
			})
			return
		}
		fmt.Printf("mealsync version %s (%s)\n", Version, Build)
		if commit != "" {
			fmt.Printf("commit %s\n", commit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
