package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/bank-reconciliation/internal/domain/matching"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_RECON_DB", "/tmp/recon-test.db")
	path := writeConfig(t, `
storage:
  database_path: ${TEST_RECON_DB}
matching:
  weights:
    exact_amount: 50
  thresholds:
    high: 90
  date_tolerance_days: 0
  amount_tolerance_percent: 0.02
  max_combination_size: 2
server:
  port: 9090
  allowed_origins:
    - http://localhost:5173
scheduler:
  enabled: true
  schedule: "30 1 * * *"
  time_zone: America/Chicago
  include_multi: true
observability:
  logging:
    level: debug
    format: json
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/recon-test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "30 1 * * *", cfg.Scheduler.Schedule)
	assert.Equal(t, "America/Chicago", cfg.Scheduler.TimeZone)
	assert.True(t, cfg.Scheduler.IncludeMulti)
	assert.Equal(t, "scheduler", cfg.Scheduler.Actor)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)

	engine, err := cfg.Matching.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 50.0, engine.Weights.ExactAmount)
	assert.Equal(t, 20.0, engine.Weights.Date)
	assert.Equal(t, 90.0, engine.Thresholds.High)
	assert.Equal(t, 60.0, engine.Thresholds.Medium)
	assert.Equal(t, 0, engine.DateToleranceDays)
	assert.True(t, engine.AmountTolerancePercent.Equal(decimal.NewFromFloat(0.02)))
	assert.Equal(t, 2, engine.MaxCombinationSize)
	assert.Equal(t, 25, engine.MaxCombinationPool)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage: [not, a, map"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECON_DB_PATH", "env.db")
	t.Setenv("RECON_PORT", "9999")
	t.Setenv("RECON_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("RECON_SCHEDULER_ENABLED", "true")
	t.Setenv("RECON_DATE_TOLERANCE_DAYS", "3")
	t.Setenv("RECON_AMOUNT_TOLERANCE", "0.1")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := LoadFromEnv()

	assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.Schedule)
	assert.Equal(t, "warn", cfg.Observability.Logging.Level)

	engine, err := cfg.Matching.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, engine.DateToleranceDays)
	assert.True(t, engine.AmountTolerancePercent.Equal(decimal.NewFromFloat(0.1)))
}

func TestLoadOrEnvWithPath_FallsBackToEnv(t *testing.T) {
	t.Setenv("RECON_DB_PATH", "fallback.db")

	cfg := LoadOrEnvWithPath(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestToEngineConfig_DefaultsAndValidation(t *testing.T) {
	var m MatchingConfig

	engine, err := m.ToEngineConfig()
	require.NoError(t, err)
	assert.Equal(t, matching.DefaultConfig().Thresholds, engine.Thresholds)
	assert.Equal(t, matching.DefaultConfig().Weights, engine.Weights)

	m.Thresholds.Low = 95
	_, err = m.ToEngineConfig()
	assert.Error(t, err, "low above high must be rejected")

	m = MatchingConfig{MaxCombinationSize: 9}
	_, err = m.ToEngineConfig()
	assert.Error(t, err)
}
