package engine

import (
	"fmt"
	"time"
)

// Defaults for engine configuration.
const (
	// DefaultMaxDepth is the maximum dependency composition depth.
	DefaultMaxDepth = 10

	// DefaultExecutionTimeout bounds one atom evaluation.
	DefaultExecutionTimeout = 30 * time.Second

	// DefaultPoolSize is the worker pool size.
	DefaultPoolSize = 8

	// DefaultQueueCapacity is the worker pool backlog depth.
	DefaultQueueCapacity = 1024

	// DefaultCacheTTL applies when an atom enables caching without a TTL.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultStatsBufferSize is the statistics channel capacity.
	DefaultStatsBufferSize = 4096
)

// Config contains configuration for the execution engine.
type Config struct {
	// ExecutionTimeout bounds a single atom evaluation, including its
	// dependency executions. An atom's ExpectedExecutionTimeMs, when set,
	// overrides this per atom. Default: 30s.
	ExecutionTimeout time.Duration

	// MaxDepth is the maximum dependency composition depth. Default: 10.
	MaxDepth int

	// PoolSize is the number of evaluation workers. Default: 8.
	PoolSize int

	// QueueCapacity is the worker backlog. When the queue is saturated the
	// submitting goroutine runs the task itself rather than dropping it.
	// Default: 1024.
	QueueCapacity int

	// CacheTTL applies when an atom enables caching without declaring a
	// TTL. Default: 5m.
	CacheTTL time.Duration

	// StatsBufferSize is the capacity of the fire-and-forget statistics
	// channel. When full, updates are dropped. Default: 4096.
	StatsBufferSize int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		ExecutionTimeout: DefaultExecutionTimeout,
		MaxDepth:         DefaultMaxDepth,
		PoolSize:         DefaultPoolSize,
		QueueCapacity:    DefaultQueueCapacity,
		CacheTTL:         DefaultCacheTTL,
		StatsBufferSize:  DefaultStatsBufferSize,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("%w: execution timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w: max depth must be positive", ErrInvalidConfig)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("%w: pool size must be positive", ErrInvalidConfig)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity cannot be negative", ErrInvalidConfig)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache TTL must be positive", ErrInvalidConfig)
	}
	if c.StatsBufferSize <= 0 {
		return fmt.Errorf("%w: stats buffer size must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithExecutionTimeout sets the default evaluation timeout.
func (c *Config) WithExecutionTimeout(timeout time.Duration) *Config {
	c.ExecutionTimeout = timeout
	return c
}

// WithMaxDepth sets the maximum dependency composition depth.
func (c *Config) WithMaxDepth(depth int) *Config {
	c.MaxDepth = depth
	return c
}

// WithPool sets the worker pool size and queue capacity.
func (c *Config) WithPool(size, queueCapacity int) *Config {
	c.PoolSize = size
	c.QueueCapacity = queueCapacity
	return c
}

// WithCacheTTL sets the default cache TTL.
func (c *Config) WithCacheTTL(ttl time.Duration) *Config {
	c.CacheTTL = ttl
	return c
}
