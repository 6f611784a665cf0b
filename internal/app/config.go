package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/habitlens-backend/internal/batcher"
	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/utils"
)

// Config is the full service configuration. Defaults come first, an
// optional YAML file (CONFIG_FILE) overlays them, and environment variables
// win over both.
type Config struct {
	DataDir string `yaml:"data_dir"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	NotifyChannel         string `yaml:"notify_channel"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
	HeartbeatSeconds      int    `yaml:"heartbeat_seconds"`

	// MinConfidence applies to the ranged fetch path only.
	MinConfidence float64 `yaml:"min_confidence"`

	TimeGapMs         int    `yaml:"time_gap_ms"`
	MaxBatchSize      int    `yaml:"max_batch_size"`
	ExcludeNormal     bool   `yaml:"exclude_normal"`
	ForceStatusOutput string `yaml:"force_status_output"`

	TrendHistoryDays int    `yaml:"trend_history_days"`
	CronSpec         string `yaml:"cron_spec"`
}

func defaults() Config {
	return Config{
		DataDir:               "./data/analyses",
		RedisAddr:             "localhost:6379",
		NotifyChannel:         "habitlens:changes",
		ReconnectDelaySeconds: 5,
		HeartbeatSeconds:      30,
		MinConfidence:         0.8,
		TimeGapMs:             300000,
		MaxBatchSize:          20,
		ExcludeNormal:         true,
		TrendHistoryDays:      7,
		// Five minutes past noon, process-local time; seconds field first.
		CronSpec: "0 5 12 * * *",
	}
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaults()

	if path := utils.GetEnv("CONFIG_FILE", "", log); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
		log.Info("Loaded config file", "path", path)
	}

	cfg.DataDir = utils.GetEnv("DATA_DIR", cfg.DataDir, log)
	cfg.RedisAddr = utils.GetEnv("REDIS_ADDR", cfg.RedisAddr, log)
	cfg.RedisPassword = utils.GetEnv("REDIS_PASSWORD", cfg.RedisPassword, nil)
	cfg.RedisDB = utils.GetEnvAsInt("REDIS_DB", cfg.RedisDB, log)
	cfg.NotifyChannel = utils.GetEnv("NOTIFY_CHANNEL", cfg.NotifyChannel, log)
	cfg.ReconnectDelaySeconds = utils.GetEnvAsInt("RECONNECT_DELAY_SECONDS", cfg.ReconnectDelaySeconds, log)
	cfg.HeartbeatSeconds = utils.GetEnvAsInt("HEARTBEAT_SECONDS", cfg.HeartbeatSeconds, log)
	cfg.MinConfidence = utils.GetEnvAsFloat("MIN_CONFIDENCE", cfg.MinConfidence, log)
	cfg.TimeGapMs = utils.GetEnvAsInt("TIME_GAP_MS", cfg.TimeGapMs, log)
	cfg.MaxBatchSize = utils.GetEnvAsInt("MAX_BATCH_SIZE", cfg.MaxBatchSize, log)
	cfg.ExcludeNormal = utils.GetEnvAsBool("EXCLUDE_NORMAL", cfg.ExcludeNormal, log)
	cfg.ForceStatusOutput = utils.GetEnv("FORCE_STATUS_OUTPUT", cfg.ForceStatusOutput, log)
	cfg.TrendHistoryDays = utils.GetEnvAsInt("TREND_HISTORY_DAYS", cfg.TrendHistoryDays, log)
	cfg.CronSpec = utils.GetEnv("ANALYSIS_CRON", cfg.CronSpec, log)

	return cfg, nil
}

// BatchConfig translates the flat config into the batcher's knobs.
func (c Config) BatchConfig() batcher.Config {
	return batcher.Config{
		ExcludeNormal:     c.ExcludeNormal,
		TimeGap:           time.Duration(c.TimeGapMs) * time.Millisecond,
		MaxBatchSize:      c.MaxBatchSize,
		ForceStatusOutput: c.ForceStatusOutput,
	}
}

func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}
