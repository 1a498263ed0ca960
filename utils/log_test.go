package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, INFO)

	log.Debug("hidden %d", 1)
	log.Info("cycle %d state=%s", 7, "TRACKING")
	log.Critical("boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] cycle 7 state=TRACKING")
	assert.Contains(t, out, "[CRITICAL] boom")
	assert.Equal(t, 2, strings.Count(out, "\n"))

	assert.False(t, log.Enabled(DEBUG))
	log.SetMinLevel(TRACE)
	assert.True(t, log.Enabled(TRACE))
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "follow.log")
	log, err := NewFileLogger(path, WARN, false)
	require.NoError(t, err)

	log.Info("skipped")
	log.Warn("target lost")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[WARN] target lost")
	assert.NotContains(t, string(data), "skipped")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, TRACE, ParseLevel("trace"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, CRITICAL, ParseLevel("critical"))
	assert.Equal(t, INFO, ParseLevel("loud"))
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Advance(33 * time.Millisecond)
	assert.Equal(t, start.Add(33*time.Millisecond), c.Now())
	assert.Equal(t, 33*time.Millisecond, c.Since(start))
}
