package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Retention RetentionConfig
	Stream    StreamConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type RetentionConfig struct {
	Hours int
}

type StreamConfig struct {
	FlushSize    int
	MaxStaleness string
}

type SchedulerConfig struct {
	Tick          string
	MaxConcurrent int
}

type NotifyConfig struct {
	SyncURL string
	APIKey  string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retention: RetentionConfig{
			Hours: 6,
		},
		Stream: StreamConfig{
			FlushSize:    100,
			MaxStaleness: "3s",
		},
		Scheduler: SchedulerConfig{
			Tick:          "1m",
			MaxConcurrent: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/poslens/config.json, then applies POSLENS_* environment
// overrides. Secrets (the API token, the sync key) come from the environment
// or the token bootstrap, never from `config set`.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// StreamStaleness parses the configured stream flush window, falling back to
// 3s on a malformed value.
func (c Config) StreamStaleness() time.Duration {
	return parseDurationOr(c.Stream.MaxStaleness, 3*time.Second)
}

// SchedulerTick parses the configured scheduler interval, falling back to 1m.
func (c Config) SchedulerTick() time.Duration {
	return parseDurationOr(c.Scheduler.Tick, time.Minute)
}

// RetentionWindow converts retention.hours into a duration. Zero or negative
// hours fall back to the 6h default.
func (c Config) RetentionWindow() time.Duration {
	if c.Retention.Hours <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.Retention.Hours) * time.Hour
}

// ServerAddr is the listen address for the HTTP API.
func (c Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
