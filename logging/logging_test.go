package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccremote/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	l.Debug("hidden")
	l.Info("connected", "component", "midi", "device", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "connected", rec["msg"])
	assert.Equal(t, "midi", rec["component"])
	assert.Equal(t, float64(3), rec["device"])
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := New(config.LoggingConfig{Level: "debug", File: path})
	require.NoError(t, err)

	l.Info("hello", "component", "test")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, string(data), "logging started")
}

func TestRedirect(t *testing.T) {
	var first, second bytes.Buffer
	l := NewWriter(&first, config.LoggingConfig{Level: "info"})

	l.Info("one")
	l.Redirect(&second)
	l.Info("two")

	assert.Contains(t, first.String(), "msg=one")
	assert.NotContains(t, first.String(), "msg=two")
	assert.Contains(t, second.String(), "msg=two")
}
