package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADPERF_CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2.0, cfg.Analysis.AnomalyThreshold)
	assert.Equal(t, []string{"impressions", "clicks", "revenue", "ctr", "roas"}, cfg.Analysis.AnomalyMetrics)
	assert.Equal(t, 7, cfg.Analysis.MovingAvgWindow)
	assert.Equal(t, 100, cfg.Store.Capacity)
	assert.Equal(t, "stdout", cfg.Log.Output)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ADPERF_CONFIG_FILE", "")
	t.Setenv("ADPERF_PORT", "9090")
	t.Setenv("ADPERF_ANALYSIS_ANOMALY_THRESHOLD", "2.5")
	t.Setenv("ADPERF_LOG_LEVEL", "debug")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2.5, cfg.Analysis.AnomalyThreshold)
	assert.Equal(t, slog.LevelDebug, cfg.Log.LogLevel())
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adperf.yaml")
	yml := "port: \"7000\"\nhttp_timeout: 3s\nanalysis:\n  anomaly_threshold: 3\n  moving_avg_window: 14\nstore:\n  capacity: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("ADPERF_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3.0, cfg.Analysis.AnomalyThreshold)
	assert.Equal(t, 14, cfg.Analysis.MovingAvgWindow)
	assert.Equal(t, 5, cfg.Store.Capacity)
	assert.Equal(t, "stdout", cfg.Log.Output, "keys absent from the file keep their defaults")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ADPERF_CONFIG_FILE", "")
	t.Setenv("ADPERF_ANALYSIS_MOVING_AVG_WINDOW", "0")
	_, err := Load()
	assert.ErrorContains(t, err, "moving average window")

	t.Setenv("ADPERF_ANALYSIS_MOVING_AVG_WINDOW", "7")
	t.Setenv("ADPERF_LOG_OUTPUT", "syslog")
	_, err = Load()
	assert.ErrorContains(t, err, "log output")

	t.Setenv("ADPERF_LOG_OUTPUT", "stdout")
	t.Setenv("ADPERF_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: ""}.LogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "WARNING"}.LogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.LogLevel())
}
