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
	kFloat
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
		key: "server.port", typ: kInt, env: "SPRINTDECK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "SPRINTDECK_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "tracker.base_url", typ: kString, env: "SPRINTDECK_TRACKER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Tracker.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Tracker.BaseURL },
	},
	{
		key: "tracker.token", typ: kString, env: "SPRINTDECK_TRACKER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Tracker.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Tracker.Token },
	},
	{
		key: "tracker.board_id", typ: kInt, env: "SPRINTDECK_TRACKER_BOARD_ID",
		apply:   func(cfg *Config, v any) { cfg.Tracker.BoardID = v.(int) },
		extract: func(cfg Config) any { return cfg.Tracker.BoardID },
	},
	{
		key: "export.max_attempts", typ: kInt, env: "SPRINTDECK_EXPORT_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Export.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Export.MaxAttempts },
	},
	{
		key: "export.base_delay_ms", typ: kInt, env: "SPRINTDECK_EXPORT_BASE_DELAY_MS",
		apply:   func(cfg *Config, v any) { cfg.Export.BaseDelayMS = v.(int) },
		extract: func(cfg Config) any { return cfg.Export.BaseDelayMS },
	},
	{
		key: "export.attempt_timeout_sec", typ: kInt, env: "SPRINTDECK_EXPORT_ATTEMPT_TIMEOUT_SEC",
		apply:   func(cfg *Config, v any) { cfg.Export.AttemptTimeoutSec = v.(int) },
		extract: func(cfg Config) any { return cfg.Export.AttemptTimeoutSec },
	},
	{
		key: "export.cache_ttl_hours", typ: kInt, env: "SPRINTDECK_EXPORT_CACHE_TTL_HOURS",
		apply:   func(cfg *Config, v any) { cfg.Export.CacheTTLHours = v.(int) },
		extract: func(cfg Config) any { return cfg.Export.CacheTTLHours },
	},
	{
		key: "export.cache_max_mb", typ: kInt, env: "SPRINTDECK_EXPORT_CACHE_MAX_MB",
		apply:   func(cfg *Config, v any) { cfg.Export.CacheMaxMB = v.(int) },
		extract: func(cfg Config) any { return cfg.Export.CacheMaxMB },
	},
	{
		key: "export.cache_max_entries", typ: kInt, env: "SPRINTDECK_EXPORT_CACHE_MAX_ENTRIES",
		apply:   func(cfg *Config, v any) { cfg.Export.CacheMaxEntries = v.(int) },
		extract: func(cfg Config) any { return cfg.Export.CacheMaxEntries },
	},
	{
		key: "export.cache_strategy", typ: kString, env: "SPRINTDECK_EXPORT_CACHE_STRATEGY",
		apply:   func(cfg *Config, v any) { cfg.Export.CacheStrategy = v.(string) },
		extract: func(cfg Config) any { return cfg.Export.CacheStrategy },
	},
	{
		key: "quality.pass_threshold", typ: kFloat, env: "SPRINTDECK_QUALITY_PASS_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Quality.PassThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Quality.PassThreshold },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SPRINTDECK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "auth.token", typ: kString, env: "SPRINTDECK_AUTH_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.Token },
	},
	{
		key: "log.level", typ: kString, env: "SPRINTDECK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
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
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
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
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
