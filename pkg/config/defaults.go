package config

import "time"

// Default returns the configuration used when no file is provided.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. Explicitly
// configured values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine.MaxDepth == 0 {
		cfg.Engine.MaxDepth = 10
	}
	if cfg.Engine.ExecutionTimeout == 0 {
		cfg.Engine.ExecutionTimeout = 30 * time.Second
	}
	if cfg.Engine.PoolSize == 0 {
		cfg.Engine.PoolSize = 8
	}
	if cfg.Engine.QueueCapacity == 0 {
		cfg.Engine.QueueCapacity = 1024
	}
	if cfg.Engine.StatsBufferSize == 0 {
		cfg.Engine.StatsBufferSize = 4096
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendMemory
	}
	if cfg.Store.WatchDebounce == 0 {
		cfg.Store.WatchDebounce = 100 * time.Millisecond
	}

	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10000
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 5 * time.Minute
	}

	if cfg.Stats.Backend == "" {
		cfg.Stats.Backend = BackendMemory
	}

	if cfg.Retention.ArchivedAtomDays == 0 {
		cfg.Retention.ArchivedAtomDays = 90
	}
	if cfg.Retention.StaleStatsDays == 0 {
		cfg.Retention.StaleStatsDays = 180
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "atlas"
	}
	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = ":9090"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
