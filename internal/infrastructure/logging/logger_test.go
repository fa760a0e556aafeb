package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/bank-reconciliation/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.name))
		})
	}
}

func TestConsoleHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "info"}).With(ComponentKey, "scheduler")

	logger.Info("run complete", "statement_id", "stmt-1", "matched", 3, "note", "two words")

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] [SCHEDULER] ["), line)
	assert.Contains(t, line, " run complete ")
	assert.Contains(t, line, "statement_id=stmt-1")
	assert.Contains(t, line, "matched=3")
	assert.Contains(t, line, `note="two words"`)
	assert.NotContains(t, line, "component=")
	assert.NotContains(t, line, "\033[", "no colors when not writing to a terminal")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestConsoleHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "warn"})

	logger.Info("hidden")
	logger.Warn("shown", "error", errors.New("boom"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestConsoleHandler_GroupsAndDurations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, nil))

	logger.WithGroup("stats").Info("done",
		"high", 2,
		slog.Group("multi", "count", 1),
		"duration", 1500*time.Millisecond,
	)

	line := buf.String()
	assert.Contains(t, line, "stats.high=2")
	assert.Contains(t, line, "stats.multi.count=1")
	assert.Contains(t, line, "stats.duration=1.5s")
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "debug", Format: "json"})

	logger.Debug("engine", "score", 85.0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, 85.0, entry["score"])
}
