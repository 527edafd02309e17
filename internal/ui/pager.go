package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls paging for one command.
type PagerOptions struct {
	// NoPager is set by --no-pager.
	NoPager bool
}

// Pager sends long output through $MEALSYNC_PAGER or $PAGER. Output that
// fits on screen, or goes anywhere but a terminal, is written directly.
type Pager struct {
	Out    io.Writer
	Getenv func(string) string
	// Height returns the terminal height in lines, or 0 when Out is not a
	// terminal.
	Height func() int
}

// NewPager returns a Pager on stdout.
func NewPager() *Pager {
	return &Pager{Out: os.Stdout, Getenv: os.Getenv, Height: stdoutHeight}
}

func stdoutHeight() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	_, h, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return h
}

// Command returns the pager argv. MEALSYNC_PAGER wins over PAGER and the
// fallback is less.
func (p *Pager) Command() []string {
	for _, key := range []string{"MEALSYNC_PAGER", "PAGER"} {
		if v := strings.Fields(p.Getenv(key)); len(v) > 0 {
			return v
		}
	}
	return []string{"less"}
}

// wants reports whether content of n lines goes through the pager.
func (p *Pager) wants(n int, opts PagerOptions) bool {
	if opts.NoPager || p.Getenv("MEALSYNC_NO_PAGER") != "" {
		return false
	}
	h := p.Height()
	return h > 0 && n >= h
}

// Page writes content, through the pager when it would scroll off screen.
func (p *Pager) Page(content string, opts PagerOptions) error {
	if !p.wants(lineCount(content), opts) {
		_, err := io.WriteString(p.Out, content)
		return err
	}

	argv := p.Command()
	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- pager comes from the user's environment
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = p.Out
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if p.Getenv("LESS") == "" {
		// Keep colors, quit when one screen suffices, leave output on exit.
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %s: %w", argv[0], err)
	}
	return nil
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

// ToPager pages content on stdout.
func ToPager(content string, opts PagerOptions) error {
	return NewPager().Page(content, opts)
}
