package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "POSLENS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "POSLENS_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "POSLENS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "retention.hours", typ: kInt, env: "POSLENS_RETENTION_HOURS",
		apply:   func(cfg *Config, v any) { cfg.Retention.Hours = v.(int) },
		extract: func(cfg Config) any { return cfg.Retention.Hours },
	},
	{
		key: "stream.flush_size", typ: kInt, env: "POSLENS_STREAM_FLUSH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Stream.FlushSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Stream.FlushSize },
	},
	{
		key: "stream.max_staleness", typ: kString, env: "POSLENS_STREAM_MAX_STALENESS",
		apply:   func(cfg *Config, v any) { cfg.Stream.MaxStaleness = v.(string) },
		extract: func(cfg Config) any { return cfg.Stream.MaxStaleness },
	},
	{
		key: "scheduler.tick", typ: kString, env: "POSLENS_SCHEDULER_TICK",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.Tick = v.(string) },
		extract: func(cfg Config) any { return cfg.Scheduler.Tick },
	},
	{
		key: "scheduler.max_concurrent", typ: kInt, env: "POSLENS_SCHEDULER_MAX_CONCURRENT",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.MaxConcurrent = v.(int) },
		extract: func(cfg Config) any { return cfg.Scheduler.MaxConcurrent },
	},
	{
		key: "notify.sync_url", typ: kString, env: "POSLENS_NOTIFY_SYNC_URL",
		apply:   func(cfg *Config, v any) { cfg.Notify.SyncURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Notify.SyncURL },
	},
	{
		key: "notify.api_key", typ: kString, env: "POSLENS_NOTIFY_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Notify.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Notify.APIKey },
	},
	{
		key: "log.level", typ: kString, env: "POSLENS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
