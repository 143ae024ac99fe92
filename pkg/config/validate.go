package config

import "fmt"

// Validate checks the configuration for values the runtime cannot operate
// with. It is called after defaults and overrides are applied.
func Validate(cfg *Config) error {
	if cfg.Engine.MaxDepth < 1 {
		return fmt.Errorf("engine.max_depth must be at least 1, got %d", cfg.Engine.MaxDepth)
	}
	if cfg.Engine.ExecutionTimeout <= 0 {
		return fmt.Errorf("engine.execution_timeout must be positive, got %v", cfg.Engine.ExecutionTimeout)
	}
	if cfg.Engine.PoolSize < 1 {
		return fmt.Errorf("engine.pool_size must be at least 1, got %d", cfg.Engine.PoolSize)
	}
	if cfg.Engine.QueueCapacity < 0 {
		return fmt.Errorf("engine.queue_capacity cannot be negative, got %d", cfg.Engine.QueueCapacity)
	}

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendSQLite, BackendFile:
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %q backend", cfg.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}

	if cfg.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be at least 1, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache.default_ttl must be positive, got %v", cfg.Cache.DefaultTTL)
	}

	switch cfg.Stats.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Stats.Path == "" {
			return fmt.Errorf("stats.path is required for the %q backend", cfg.Stats.Backend)
		}
	default:
		return fmt.Errorf("unknown stats.backend %q", cfg.Stats.Backend)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown logging.format %q", cfg.Logging.Format)
	}

	return nil
}
