// Package config defines the application configuration, loaded from YAML
// with environment variable overrides.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	// Engine configures dependency resolution and execution.
	Engine EngineConfig `yaml:"engine"`

	// Store configures where atom definitions live.
	Store StoreConfig `yaml:"store"`

	// Cache configures the shared execution result cache.
	Cache CacheConfig `yaml:"cache"`

	// Stats configures the execution statistics backend.
	Stats StatsConfig `yaml:"stats"`

	// Retention configures scheduled pruning.
	Retention RetentionConfig `yaml:"retention"`

	// Metrics configures Prometheus metrics exposure.
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures dependency resolution and execution.
type EngineConfig struct {
	// MaxDepth is the maximum dependency graph depth.
	MaxDepth int `yaml:"max_depth"`

	// ExecutionTimeout bounds a single top-level execution.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`

	// PoolSize is the number of execution workers.
	PoolSize int `yaml:"pool_size"`

	// QueueCapacity is the pending execution queue size; at capacity the
	// submitting caller runs the work itself.
	QueueCapacity int `yaml:"queue_capacity"`

	// StatsBufferSize is the fire-and-forget statistics channel size.
	StatsBufferSize int `yaml:"stats_buffer_size"`
}

// StoreBackend selects the atom definition store implementation.
type StoreBackend string

const (
	BackendMemory StoreBackend = "memory"
	BackendSQLite StoreBackend = "sqlite"
	BackendFile   StoreBackend = "file"
)

// StoreConfig configures the atom definition store.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite" or "file".
	Backend StoreBackend `yaml:"backend"`

	// Path is the database file (sqlite) or the definitions file or
	// directory (file).
	Path string `yaml:"path"`

	// Watch reloads file-backed definitions on change.
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet window before a reload.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// CacheConfig configures the execution result cache.
type CacheConfig struct {
	// Enabled turns result caching on.
	Enabled bool `yaml:"enabled"`

	// MaxEntries bounds the cache; least recently used entries are
	// evicted at capacity.
	MaxEntries int `yaml:"max_entries"`

	// DefaultTTL applies to atoms that enable caching without a TTL.
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// StatsConfig configures the statistics backend.
type StatsConfig struct {
	// Backend is "memory" or "sqlite".
	Backend StoreBackend `yaml:"backend"`

	// Path is the statistics database file for the sqlite backend.
	Path string `yaml:"path"`
}

// RetentionConfig configures scheduled pruning.
type RetentionConfig struct {
	// ArchivedAtomDays is how long archived atom versions are kept.
	ArchivedAtomDays int `yaml:"archived_atom_days"`

	// StaleStatsDays is how long idle statistics aggregates are kept.
	StaleStatsDays int `yaml:"stale_stats_days"`

	// PruneSchedule is a standard cron expression; empty disables pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled turns metrics collection on.
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes all metric names.
	Namespace string `yaml:"namespace"`

	// ListenAddress serves the /metrics endpoint, e.g. ":9090".
	ListenAddress string `yaml:"listen_address"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}
