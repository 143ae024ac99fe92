package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults and
// environment variable overrides, and validates the result. Environment
// variables follow the naming convention ATLAS_SECTION_FIELD
// (e.g. ATLAS_ENGINE_POOL_SIZE) and always take precedence over the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	if v := os.Getenv("ATLAS_ENGINE_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxDepth = n
		}
	}
	if v := os.Getenv("ATLAS_ENGINE_EXECUTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.ExecutionTimeout = d
		}
	}
	if v := os.Getenv("ATLAS_ENGINE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.PoolSize = n
		}
	}
	if v := os.Getenv("ATLAS_ENGINE_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.QueueCapacity = n
		}
	}

	// Store overrides
	if v := os.Getenv("ATLAS_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = StoreBackend(v)
	}
	if v := os.Getenv("ATLAS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("ATLAS_STORE_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.Watch = b
		}
	}

	// Cache overrides
	if v := os.Getenv("ATLAS_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("ATLAS_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("ATLAS_CACHE_DEFAULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DefaultTTL = d
		}
	}

	// Stats overrides
	if v := os.Getenv("ATLAS_STATS_BACKEND"); v != "" {
		cfg.Stats.Backend = StoreBackend(v)
	}
	if v := os.Getenv("ATLAS_STATS_PATH"); v != "" {
		cfg.Stats.Path = v
	}

	// Logging overrides
	if v := os.Getenv("ATLAS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ATLAS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
