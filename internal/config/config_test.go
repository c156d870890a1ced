package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketadjust/internal/marketindex"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "data/history.json", cfg.Paths.HistoryFile)
	assert.Equal(t, 5, cfg.Engine.MinSalesPerMonth)
	assert.Equal(t, 6, cfg.Engine.SmoothWindow)
	assert.Equal(t, "smoothed", cfg.Engine.IndexColumn)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: 9090
  read_timeout: 30s
logging:
  level: debug
engine:
  smooth_window: 4
  use_regression_outliers: true
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 4, cfg.Engine.SmoothWindow)
		assert.True(t, cfg.Engine.UseRegressionOutliers)
		// Untouched fields keep defaults
		assert.Equal(t, "console", cfg.Logging.Output)
		assert.Equal(t, 5, cfg.Engine.MinSalesPerMonth)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644))

		t.Setenv("MCADJ_SERVER_PORT", "7070")
		t.Setenv("MCADJ_ENGINE_NO_ADJUSTMENT_DAYS", "60")

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, 60, cfg.Engine.NoAdjustmentDays)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})

	t.Run("invalid log level rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0644))

		_, err := LoadFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("out of range port rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0644))

		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})
}

func TestEngineConfigToEngine(t *testing.T) {
	t.Run("valid values pass through", func(t *testing.T) {
		ec := EngineConfig{
			MinSalesPerMonth:      3,
			SmoothWindow:          4,
			IQRMultiplier:         1.5,
			UseIQR:                true,
			UseRegressionOutliers: true,
			NoAdjustmentDays:      30,
			IndexColumn:           "regression",
			TrendLookbackMonths:   6,
		}
		cfg := ec.ToEngine()
		assert.Equal(t, 3, cfg.MinSalesPerMonth)
		assert.Equal(t, 4, cfg.SmoothWindow)
		assert.Equal(t, marketindex.ColumnRegression, cfg.IndexColumn)
	})

	t.Run("defects clamped", func(t *testing.T) {
		ec := EngineConfig{MinSalesPerMonth: -1, SmoothWindow: 0, IQRMultiplier: -2, NoAdjustmentDays: -10, IndexColumn: "bogus"}
		cfg := ec.ToEngine()

		defaults := marketindex.DefaultConfig()
		assert.Equal(t, defaults.MinSalesPerMonth, cfg.MinSalesPerMonth)
		assert.GreaterOrEqual(t, cfg.SmoothWindow, 2)
		assert.Greater(t, cfg.IQRMultiplier, 0.0)
		assert.GreaterOrEqual(t, cfg.NoAdjustmentDays, 0)
		assert.Equal(t, marketindex.ColumnSmoothed, cfg.IndexColumn)
	})
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(paths.DataDir))
	assert.True(t, filepath.IsAbs(paths.HistoryFile))

	t.Run("ensure directories", func(t *testing.T) {
		base := t.TempDir()
		paths := &Paths{
			DataDir:     filepath.Join(base, "data"),
			ReportsDir:  filepath.Join(base, "data", "reports"),
			HistoryFile: filepath.Join(base, "data", "history.json"),
			LogsDir:     filepath.Join(base, "logs"),
		}
		require.NoError(t, paths.EnsureDirectories())

		info, err := os.Stat(paths.ReportsDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		assert.Equal(t, filepath.Join(paths.LogsDir, "web.log"), paths.GetLogPath("web.log"))
		assert.Equal(t, filepath.Join(paths.ReportsDir, "result.json"), paths.GetReportPath("result.json"))
	})
}

func TestGetConfigFilePath(t *testing.T) {
	t.Setenv("MCADJ_CONFIG_FILE", "")
	assert.Equal(t, "config.yaml", getConfigFilePath())

	t.Setenv("MCADJ_CONFIG_FILE", "/etc/marketadjust/config.yaml")
	assert.Equal(t, "/etc/marketadjust/config.yaml", getConfigFilePath())
}
