package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"eligos-hq/atlas/pkg/atom"
)

// SQLiteStats is a durable StatsBackend. Aggregates are stored as running
// sums per (tenant, code) and folded into rates on load, so out-of-order or
// dropped samples cannot push a rate outside [0, 1].
type SQLiteStats struct {
	db         *sql.DB
	recordStmt *sql.Stmt
	loadStmt   *sql.Stmt
}

// SQLiteStatsConfig configures the SQLite statistics backend.
type SQLiteStatsConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStats opens (creating if necessary) the statistics database.
func NewSQLiteStats(cfg SQLiteStatsConfig) (*SQLiteStats, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStats{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteStats) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS atom_stats (
		tenant_id TEXT NOT NULL,
		code TEXT NOT NULL,
		execution_count INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		total_time_us INTEGER NOT NULL DEFAULT 0,
		last_executed_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (tenant_id, code)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStats) prepareStatements() error {
	var err error

	s.recordStmt, err = s.db.Prepare(`
		INSERT INTO atom_stats (tenant_id, code, execution_count, success_count, total_time_us, last_executed_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT (tenant_id, code) DO UPDATE SET
			execution_count = execution_count + 1,
			success_count = success_count + excluded.success_count,
			total_time_us = total_time_us + excluded.total_time_us,
			last_executed_at = MAX(last_executed_at, excluded.last_executed_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record statement: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`
		SELECT execution_count, success_count, total_time_us, last_executed_at
		FROM atom_stats WHERE tenant_id = ? AND code = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load statement: %w", err)
	}

	return nil
}

// Record folds one sample into the aggregate for (tenant, code).
func (s *SQLiteStats) Record(ctx context.Context, sample StatsSample) error {
	success := 0
	if sample.Success {
		success = 1
	}
	_, err := s.recordStmt.ExecContext(ctx,
		sample.TenantID, sample.Code, success,
		sample.Duration.Microseconds(), sample.ExecutedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to record sample for %q: %w", sample.Code, err)
	}
	return nil
}

// Load returns the current aggregate for (tenant, code), or (nil, nil) if
// nothing has been recorded.
func (s *SQLiteStats) Load(ctx context.Context, tenantID, code string) (*atom.Stats, error) {
	var (
		count, successes int64
		totalUs, lastUs  int64
	)
	err := s.loadStmt.QueryRowContext(ctx, tenantID, code).Scan(
		&count, &successes, &totalUs, &lastUs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for %q: %w", code, err)
	}
	if count == 0 {
		return nil, nil
	}

	stats := &atom.Stats{
		ExecutionCount:     count,
		AvgExecutionTimeMs: float64(totalUs) / 1000.0 / float64(count),
		SuccessRate:        float64(successes) / float64(count),
		LastExecutedAt:     time.UnixMicro(lastUs),
	}
	stats.ErrorRate = 1.0 - stats.SuccessRate
	return stats, nil
}

// DeleteStale removes aggregates whose last execution predates cutoff.
func (s *SQLiteStats) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM atom_stats WHERE last_executed_at < ?`, cutoff.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale stats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the prepared statements and the database.
func (s *SQLiteStats) Close() error {
	if s.recordStmt != nil {
		s.recordStmt.Close()
	}
	if s.loadStmt != nil {
		s.loadStmt.Close()
	}
	return s.db.Close()
}
