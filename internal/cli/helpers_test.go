package cli

import (
	"bytes"
	"testing"
)

// captureOutput redirects command output into a buffer for the duration
// of the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := outWriter
	outWriter = &buf
	t.Cleanup(func() { outWriter = orig })
	return &buf
}

// setFlags sets the global output flags and restores them afterwards.
func setFlags(t *testing.T, json, quietMode bool) {
	t.Helper()
	origJSON, origQuiet := jsonOutput, quiet
	jsonOutput, quiet = json, quietMode
	t.Cleanup(func() { jsonOutput, quiet = origJSON, origQuiet })
}
