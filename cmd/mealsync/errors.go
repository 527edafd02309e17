package main

import (
	"fmt"
	"io"
	"os"
)

// Replaced in tests.
var (
	exitFunc           = os.Exit
	stderr   io.Writer = os.Stderr
)

// FatalError prints "Error: ..." to stderr, releases the stores and exits 1.
//
//	if err := runner.ForceMigration(ctx, user); err != nil {
//	    FatalError("%v", err)
//	}
func FatalError(format string, args ...any) {
	fail(fmt.Sprintf(format, args...), "")
}

// FatalErrorWithHint is FatalError followed by a "Hint:" line naming the fix.
func FatalErrorWithHint(message, hint string) {
	fail(message, hint)
}

func fail(message, hint string) {
	_, _ = fmt.Fprintln(stderr, "Error:", message)
	if hint != "" {
		_, _ = fmt.Fprintln(stderr, "Hint:", hint)
	}
	shutdown()
	exitFunc(1)
}

// WarnError prints "Warning: ..." to stderr for a step the command can
// continue without.
func WarnError(format string, args ...any) {
	_, _ = fmt.Fprintf(stderr, "Warning: "+format+"\n", args...)
}
