package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/habitlens-backend/internal/logger"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig(logger.NewNop())
	require.NoError(t, err)

	require.Equal(t, "./data/analyses", cfg.DataDir)
	require.Equal(t, "habitlens:changes", cfg.NotifyChannel)
	require.Equal(t, 0.8, cfg.MinConfidence)
	require.True(t, cfg.ExcludeNormal)
	require.Equal(t, 5*time.Second, cfg.ReconnectDelay())
	require.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	require.Equal(t, 5*time.Minute, cfg.BatchConfig().TimeGap)
	require.Equal(t, 20, cfg.BatchConfig().MaxBatchSize)
}

func TestLoadConfigFileOverlaysDefaults(t *testing.T) {
	path := writeConfigFile(t, `
data_dir: /var/lib/habitlens
notify_channel: custom:changes
min_confidence: 0.5
max_batch_size: 50
`)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig(logger.NewNop())
	require.NoError(t, err)

	require.Equal(t, "/var/lib/habitlens", cfg.DataDir)
	require.Equal(t, "custom:changes", cfg.NotifyChannel)
	require.Equal(t, 0.5, cfg.MinConfidence)
	require.Equal(t, 50, cfg.MaxBatchSize)
	// Untouched keys keep their defaults.
	require.Equal(t, 7, cfg.TrendHistoryDays)
}

func TestLoadConfigEnvWinsOverFile(t *testing.T) {
	path := writeConfigFile(t, `
notify_channel: from-file
time_gap_ms: 60000
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("NOTIFY_CHANNEL", "from-env")
	t.Setenv("TIME_GAP_MS", "120000")
	t.Setenv("EXCLUDE_NORMAL", "false")

	cfg, err := LoadConfig(logger.NewNop())
	require.NoError(t, err)

	require.Equal(t, "from-env", cfg.NotifyChannel)
	require.Equal(t, 2*time.Minute, cfg.BatchConfig().TimeGap)
	require.False(t, cfg.ExcludeNormal)
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig(logger.NewNop())
	require.Error(t, err)

	t.Setenv("CONFIG_FILE", writeConfigFile(t, "notify_channel: [broken"))
	_, err = LoadConfig(logger.NewNop())
	require.Error(t, err)
}
