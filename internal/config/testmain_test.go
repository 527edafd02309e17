package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestMain(m *testing.M) {
	os.Exit(runIsolated(m))
}

// runIsolated points HOME, XDG_CONFIG_HOME and the working directory at a
// scratch dir so a developer's own mealsync.yaml never leaks into tests.
func runIsolated(m *testing.M) int {
	home, err := os.MkdirTemp("", "mealsync-config-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config tests:", err)
		return 1
	}
	defer func() { _ = os.RemoveAll(home) }()

	if wd, err := os.Getwd(); err == nil {
		defer func() { _ = os.Chdir(wd) }()
	}
	if err := os.Chdir(home); err != nil {
		fmt.Fprintln(os.Stderr, "config tests:", err)
		return 1
	}
	for k, v := range map[string]string{
		"HOME":            home,
		"USERPROFILE":     home,
		"XDG_CONFIG_HOME": filepath.Join(home, ".config"),
	} {
		_ = os.Setenv(k, v)
	}
	for _, k := range []string{"MEALSYNC_CONFIG", "MEALSYNC_USER", "MEALSYNC_REMOTE_DSN"} {
		_ = os.Unsetenv(k)
	}
	return m.Run()
}
