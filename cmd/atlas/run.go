package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"eligos-hq/atlas/pkg/store"
	"eligos-hq/atlas/pkg/telemetry/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Atlas runtime",
	Long: `Start the Atlas runtime: load atom definitions, watch file-backed
definitions for changes, run scheduled retention pruning, and serve
Prometheus metrics. Runs until interrupted.`,
	Example: `  atlas run --config config.yaml`,
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, "")
	if err != nil {
		return err
	}
	defer rt.close()

	logger := rt.logger

	if rt.source != nil && rt.cfg.Store.Watch {
		go func() {
			if err := rt.source.Watch(ctx, rt.cfg.Store.WatchDebounce); err != nil && ctx.Err() == nil {
				logger.Error("file watcher stopped", "error", err)
			}
		}()
	}

	var atomDeleter store.ArchivedDeleter
	if d, ok := rt.atoms.(store.ArchivedDeleter); ok {
		atomDeleter = d
	}
	var statsDeleter store.StaleStatsDeleter
	if d, ok := rt.stats.(store.StaleStatsDeleter); ok {
		statsDeleter = d
	}
	if atomDeleter != nil || statsDeleter != nil {
		pruner := store.NewPruner(&store.RetentionConfig{
			ArchivedAtomDays: rt.cfg.Retention.ArchivedAtomDays,
			StaleStatsDays:   rt.cfg.Retention.StaleStatsDays,
			PruneSchedule:    rt.cfg.Retention.PruneSchedule,
		}, atomDeleter, statsDeleter, logger)
		if err := store.NewScheduler(pruner).Start(ctx); err != nil {
			return err
		}
	}

	var metricsServer *http.Server
	if rt.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(nil))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		metricsServer = &http.Server{
			Addr:         rt.cfg.Metrics.ListenAddress,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", "address", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("atlas runtime started",
		"store_backend", rt.cfg.Store.Backend,
		"cache_enabled", rt.cfg.Cache.Enabled,
		"pool_size", rt.cfg.Engine.PoolSize,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}
	return nil
}
