package main

import (
	"context"
	"fmt"
	"log/slog"

	"eligos-hq/atlas/pkg/config"
	"eligos-hq/atlas/pkg/engine"
	"eligos-hq/atlas/pkg/service"
	"eligos-hq/atlas/pkg/store"
	"eligos-hq/atlas/pkg/telemetry/logging"
	"eligos-hq/atlas/pkg/telemetry/metrics"
)

// runtime holds the assembled application components for one command
// invocation.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	atoms   store.AtomStore
	source  *store.FileSource
	cache   *store.ResultCache
	stats   store.StatsBackend
	metrics *metrics.EngineMetrics
	engine  *engine.Engine
	service *service.Service

	closers []func() error
}

// loadConfig resolves the effective configuration from the --config flag,
// falling back to defaults when no file is given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}

// buildRuntime assembles stores, engine and service from configuration.
// atomsPath, when non-empty, overrides the configured store with a
// file-backed one (used by the one-shot commands).
func buildRuntime(ctx context.Context, atomsPath string) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	rt := &runtime{cfg: cfg, logger: logger}

	if atomsPath != "" {
		cfg.Store.Backend = config.BackendFile
		cfg.Store.Path = atomsPath
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		rt.atoms = store.NewMemoryStore()
	case config.BackendFile:
		mem := store.NewMemoryStore()
		rt.source = store.NewFileSource(cfg.Store.Path, mem, logger)
		if _, err := rt.source.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load atom definitions: %w", err)
		}
		rt.atoms = mem
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(&store.SQLiteConfig{
			Path:         cfg.Store.Path,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			WALMode:      true,
		}, logger)
		if err != nil {
			return nil, err
		}
		rt.atoms = s
		rt.closers = append(rt.closers, s.Close)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Cache.Enabled {
		rt.cache = store.NewResultCache(cfg.Cache.MaxEntries)
		rt.closers = append(rt.closers, func() error {
			rt.cache.Close()
			return nil
		})
	}

	switch cfg.Stats.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStats(store.SQLiteStatsConfig{DBPath: cfg.Stats.Path})
		if err != nil {
			return nil, err
		}
		rt.stats = s
		rt.closers = append(rt.closers, s.Close)
	default:
		rt.stats = store.NewMemoryStats()
	}

	if cfg.Metrics.Enabled {
		rt.metrics = metrics.NewEngineMetrics(cfg.Metrics.Namespace, nil)
	}

	engCfg := engine.DefaultConfig().
		WithExecutionTimeout(cfg.Engine.ExecutionTimeout).
		WithMaxDepth(cfg.Engine.MaxDepth).
		WithPool(cfg.Engine.PoolSize, cfg.Engine.QueueCapacity).
		WithCacheTTL(cfg.Cache.DefaultTTL)
	engCfg.StatsBufferSize = cfg.Engine.StatsBufferSize

	var cacheStore store.CacheStore
	if rt.cache != nil {
		cacheStore = rt.cache
	}
	eng, err := engine.New(engCfg, rt.atoms, cacheStore, rt.stats, rt.metrics, logger)
	if err != nil {
		return nil, err
	}
	rt.engine = eng
	rt.closers = append(rt.closers, eng.Close)

	rt.service = service.New(rt.atoms, eng, logger)
	return rt, nil
}

// close shuts components down in reverse construction order.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("shutdown error", "error", err)
		}
	}
}
