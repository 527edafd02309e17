package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mealsync/internal/config"
	"github.com/steveyegge/mealsync/internal/debug"
	"github.com/steveyegge/mealsync/internal/telemetry"
	"github.com/steveyegge/mealsync/internal/ui"
)

var (
	configPath  string
	userFlag    string
	jsonOutput  bool
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	cfg     *config.Config
	logger  = debug.Discard()
	logFile *os.File

	// backend is opened on first use by commands that need the stores.
	backend *stores

	nowFunc = time.Now
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $MEALSYNC_CONFIG, .mealsync/, ~/.config/mealsync/)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Account to operate on (default: user from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "sync", Title: "Sync & Data:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Views & Reports:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:   "mealsync",
	Short: "mealsync - meal log and point balance sync",
	Long: `Keeps the on-device meal log, custom foods, weights and targets in step with the
account's remote store, and rebuilds the point balance from the reconciled log.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("mealsync version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)

		if err := config.InitializeWithFile(configPath); err != nil {
			FatalError("%v", err)
		}
		if !cmd.Flags().Changed("json") && config.GetBool("json") {
			jsonOutput = true
		}
		ui.InitColor(jsonOutput)

		// config init must work even when the current settings are invalid.
		if cmd.Annotations["no-config"] == "true" {
			return
		}

		var err error
		if cfg, err = config.Load(); err != nil {
			FatalErrorWithHint(err.Error(), "Run 'mealsync config init' to write a default config")
		}
		logger = newLogger(cfg.Log)

		if err := telemetry.Init(rootCtx, "mealsync", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

// newLogger writes to log.file when set, stderr otherwise.
func newLogger(lc config.Log) *slog.Logger {
	var w io.Writer = os.Stderr
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path comes from the user's config
		if err != nil {
			WarnError("cannot open log file %s: %v", lc.File, err)
		} else {
			logFile = f
			w = f
		}
	}
	return debug.NewLogger(string(lc.Level), w)
}

// shutdown releases everything PersistentPreRun and the commands opened.
// FatalError calls it too, so it must tolerate partial setup.
func shutdown() {
	if backend != nil {
		if err := backend.Close(); err != nil {
			WarnError("closing stores: %v", err)
		}
		backend = nil
	}
	if rootCtx != nil {
		telemetry.Shutdown(context.Background())
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if rootCancel != nil {
		rootCancel()
	}
}

// currentUser resolves --user, falling back to the config.
func currentUser() string {
	if userFlag != "" {
		return userFlag
	}
	if cfg != nil && cfg.User != "" {
		return cfg.User
	}
	FatalErrorWithHint("no user selected", "Pass --user or set 'user' in mealsync.yaml")
	return ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
