package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions. NO_COLOR
// takes precedence over CLICOLOR_FORCE. Without either, color is used on a
// terminal only.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons should be drawn.
// MEALSYNC_NO_EMOJI turns them off.
func ShouldUseEmoji() bool {
	if os.Getenv("MEALSYNC_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// emojiEnabled selects between the unicode and ASCII status marks.
var emojiEnabled = true

// InitColor pins the lipgloss color profile and the status marks. jsonMode
// or a colorless environment forces plain ASCII output.
func InitColor(jsonMode bool) {
	emojiEnabled = !jsonMode && ShouldUseEmoji()
	if jsonMode || !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
	lipgloss.SetHasDarkBackground(termenv.HasDarkBackground())
}
