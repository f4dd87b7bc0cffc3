package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestNewJSONByDefault(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger, cleanup, err := newLogger(&buf, true, Options{Level: "info"})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("ai call", "provider", "openai")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ai call", line["msg"])
	assert.Equal(t, "openai", line["provider"])
}

func TestNewFormats(t *testing.T) {
	tests := []struct {
		format string
		tty    bool
		text   bool
	}{
		{"text", false, true},
		{"auto", true, true},
		{"auto", false, false},
		{"json", true, false},
		{"", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			restoreDefault(t)
			var buf bytes.Buffer
			logger, cleanup, err := newLogger(&buf, tt.tty, Options{Format: tt.format})
			require.NoError(t, err)
			defer cleanup()

			logger.Info("hello")
			assert.Equal(t, tt.text, strings.HasPrefix(buf.String(), "time="), buf.String())
		})
	}
}

func TestNewLevel(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger, cleanup, err := newLogger(&buf, false, Options{Level: "warn"})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewTeesToFile(t *testing.T) {
	restoreDefault(t)
	path := filepath.Join(t.TempDir(), "nutriai.log")
	var buf bytes.Buffer

	logger, cleanup, err := newLogger(&buf, false, Options{File: path})
	require.NoError(t, err)
	logger.Info("persisted")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "persisted")
	assert.Contains(t, buf.String(), "persisted")
}

func TestNewBadFile(t *testing.T) {
	_, _, err := newLogger(&bytes.Buffer{}, false, Options{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestNewSetsDefault(t *testing.T) {
	restoreDefault(t)
	logger, cleanup, err := newLogger(&bytes.Buffer{}, false, Options{})
	require.NoError(t, err)
	defer cleanup()
	assert.Same(t, logger, slog.Default())
}
