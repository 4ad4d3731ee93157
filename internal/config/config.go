package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is read from ADPERF_* environment variables. When
// ADPERF_CONFIG_FILE names a YAML file its values are applied on top.
type Config struct {
	Port        string        `yaml:"port" envconfig:"PORT" default:"8080"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" default:"15s"`
	SourceURL   string        `yaml:"source_url" envconfig:"SOURCE_URL"`
	SinkURL     string        `yaml:"sink_url" envconfig:"SINK_URL"`
	SinkSecret  string        `yaml:"sink_secret" envconfig:"SINK_SECRET"`
	MaxBodyMB   int64         `yaml:"max_body_mb" envconfig:"MAX_BODY_MB" default:"32"`

	Log      LogConfig      `yaml:"log" envconfig:"LOG"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Store    StoreConfig    `yaml:"store" envconfig:"STORE"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	File   string `yaml:"file" envconfig:"FILE" default:"logs/adperf.log"`

	// rotation, only used when Output is "file"
	MaxSizeMB  int `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" default:"50"`
	MaxBackups int `yaml:"max_backups" envconfig:"MAX_BACKUPS" default:"5"`
	MaxAgeDays int `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS" default:"14"`
}

type AnalysisConfig struct {
	AnomalyThreshold float64  `yaml:"anomaly_threshold" envconfig:"ANOMALY_THRESHOLD" default:"2.0"`
	AnomalyMetrics   []string `yaml:"anomaly_metrics" envconfig:"ANOMALY_METRICS" default:"impressions,clicks,revenue,ctr,roas"`
	SmoothedMetrics  []string `yaml:"smoothed_metrics" envconfig:"SMOOTHED_METRICS" default:"revenue,ctr,roas"`
	MovingAvgWindow  int      `yaml:"moving_avg_window" envconfig:"MOVING_AVG_WINDOW" default:"7"`
}

type StoreConfig struct {
	Capacity int `yaml:"capacity" envconfig:"CAPACITY" default:"100"`
}

// Load reads the environment, then the optional YAML overlay, and
// validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ADPERF", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if path := os.Getenv("ADPERF_CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Analysis.AnomalyThreshold <= 0 {
		return fmt.Errorf("config: anomaly threshold must be positive, got %v", c.Analysis.AnomalyThreshold)
	}
	if c.Analysis.MovingAvgWindow < 1 {
		return fmt.Errorf("config: moving average window must be at least 1, got %d", c.Analysis.MovingAvgWindow)
	}
	if c.Store.Capacity < 1 {
		return fmt.Errorf("config: store capacity must be at least 1, got %d", c.Store.Capacity)
	}
	switch c.Log.Output {
	case "stdout", "stderr", "file":
	default:
		return fmt.Errorf("config: unknown log output %q", c.Log.Output)
	}
	return nil
}

// LogLevel maps the configured level name onto slog.
func (c LogConfig) LogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
