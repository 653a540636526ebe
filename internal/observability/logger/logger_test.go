package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

// TestPurpose: Validates that the fanout handler delivers a record to every enabled handler and honours levels.
// Scope: Unit Test
// Expected: Both buffers receive the info record; the warn-level handler skips debug records.
// Test Case ID: LOG-01
func TestFanoutHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := NewFanoutHandler(
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	log := slog.New(h).With(Component("billing"))

	log.DebugContext(context.Background(), "debug only")
	log.WarnContext(context.Background(), "payment settled", ReferenceCode("TRIAL-20260101-ABCD1234"))

	assert.Contains(t, a.String(), "debug only")
	assert.NotContains(t, b.String(), "debug only")
	assert.Contains(t, b.String(), `"reference_code":"TRIAL-20260101-ABCD1234"`)
	assert.Contains(t, b.String(), `"component":"billing"`)
}
