package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mealsync/internal/config"
	"github.com/steveyegge/mealsync/internal/debug"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage configuration",
	GroupID: "setup",
}

var configInitCmd = &cobra.Command{
	Use:         "init [PATH]",
	Short:       "Write a default config file",
	Long:        `Write a commented mealsync.yaml with every default. PATH defaults to ~/.config/mealsync/mealsync.yaml.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"no-config": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		path, err := defaultConfigPath(args)
		if err != nil {
			FatalError("%v", err)
		}
		if err := config.WriteDefault(path, force); err != nil {
			FatalError("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"path": path})
			return
		}
		debug.PrintNormal("Wrote %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			shown := *cfg
			if shown.Remote.DSN != "" {
				shown.Remote.DSN = "********"
			}
			outputJSON(map[string]any{"file": config.ConfigFileUsed(), "config": shown})
			return
		}
		file := config.ConfigFileUsed()
		if file == "" {
			file = "(none, defaults and environment only)"
		}
		fmt.Printf("Config file: %s\n", file)
		fmt.Printf("User:        %s\n", cfg.User)
		fmt.Printf("Local:       %s\n", cfg.Local.Path)
		fmt.Printf("Remote:      %s\n", cfg.Remote.Driver)
		fmt.Printf("Push:        %t\n", cfg.Sync.PushEnabled)
		fmt.Printf("Points:      %v/day, cap %v, range [%v, %v]\n", cfg.Points.Daily, cfg.Points.Cap, cfg.Points.Floor, cfg.Points.Ceiling)
	},
}

func defaultConfigPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mealsync", config.FileName), nil
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
