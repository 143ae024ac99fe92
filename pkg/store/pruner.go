package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ArchivedDeleter removes archived atom versions older than a cutoff.
// MemoryStore and SQLiteStore both implement it.
type ArchivedDeleter interface {
	DeleteArchived(ctx context.Context, cutoff time.Time) (int, error)
}

// StaleStatsDeleter removes statistics aggregates not touched since a
// cutoff. SQLiteStats implements it.
type StaleStatsDeleter interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}

// RetentionConfig controls what the pruner removes and when it runs.
type RetentionConfig struct {
	// ArchivedAtomDays is how long archived atom versions are kept.
	// Zero disables atom pruning.
	ArchivedAtomDays int `yaml:"archived_atom_days"`

	// StaleStatsDays is how long idle statistics aggregates are kept.
	// Zero disables stats pruning.
	StaleStatsDays int `yaml:"stale_stats_days"`

	// PruneSchedule is a standard cron expression, e.g. "0 3 * * *" for
	// daily at 3 AM. Empty disables the scheduler.
	PruneSchedule string `yaml:"prune_schedule"`
}

// DefaultRetentionConfig returns the default retention policy.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		ArchivedAtomDays: 90,
		StaleStatsDays:   180,
		PruneSchedule:    "0 3 * * *",
	}
}

// Pruner removes archived atom versions and stale statistics according to
// the retention policy. Either target may be nil.
type Pruner struct {
	config *RetentionConfig
	atoms  ArchivedDeleter
	stats  StaleStatsDeleter
	logger *slog.Logger
}

// NewPruner creates a retention pruner over the given targets.
func NewPruner(config *RetentionConfig, atoms ArchivedDeleter, stats StaleStatsDeleter, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		config: config,
		atoms:  atoms,
		stats:  stats,
		logger: logger.With("component", "store.pruner"),
	}
}

// Prune runs one pruning cycle and returns the total number of records
// removed.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	now := time.Now()
	total := 0

	if p.atoms != nil && p.config.ArchivedAtomDays > 0 {
		cutoff := now.AddDate(0, 0, -p.config.ArchivedAtomDays)
		deleted, err := p.atoms.DeleteArchived(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune archived atoms: %w", err)
		}
		total += deleted
	}

	if p.stats != nil && p.config.StaleStatsDays > 0 {
		cutoff := now.AddDate(0, 0, -p.config.StaleStatsDays)
		deleted, err := p.stats.DeleteStale(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to prune stale stats: %w", err)
		}
		total += deleted
	}

	return total, nil
}

// Scheduler runs the pruner on a cron schedule.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a retention scheduler for the pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: pruner.logger,
	}
}

// Start begins scheduled pruning based on the configured cron expression.
// If PruneSchedule is empty, the scheduler does nothing. The scheduler
// stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.pruner.config.PruneSchedule
	if schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runPruning(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", schedule,
		"archived_atom_days", s.pruner.config.ArchivedAtomDays,
		"stale_stats_days", s.pruner.config.StaleStatsDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runPruning(ctx context.Context) {
	deleted, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	}
}

// Stop halts scheduled pruning. In-flight pruning runs complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info("retention scheduler stopped")
}
