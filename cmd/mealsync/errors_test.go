package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureExit(t *testing.T) (*bytes.Buffer, *int) {
	t.Helper()
	var buf bytes.Buffer
	code := -1
	oldExit, oldErr := exitFunc, stderr
	exitFunc = func(c int) { code = c }
	stderr = &buf
	t.Cleanup(func() { exitFunc, stderr = oldExit, oldErr })
	return &buf, &code
}

func TestFatalErrorWithHint(t *testing.T) {
	buf, code := captureExit(t)

	FatalErrorWithHint("no user selected", "pass --user")
	assert.Equal(t, 1, *code)
	assert.Equal(t, "Error: no user selected\nHint: pass --user\n", buf.String())
}

func TestFatalErrorAndWarn(t *testing.T) {
	buf, code := captureExit(t)

	WarnError("log file %s unavailable", "/tmp/x.log")
	assert.Equal(t, -1, *code)
	FatalError("sync incomplete: %s", "weights")
	assert.Equal(t, 1, *code)
	assert.Equal(t, "Warning: log file /tmp/x.log unavailable\nError: sync incomplete: weights\n", buf.String())
}
