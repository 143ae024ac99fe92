package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"eligos-hq/atlas/pkg/atom"
)

// atomSchema creates the atom definition tables.
const atomSchema = `
CREATE TABLE IF NOT EXISTS atoms (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    code TEXT NOT NULL,
    version INTEGER NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    category TEXT,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 5,
    tags TEXT,
    logic TEXT NOT NULL,
    dependencies TEXT,
    input_parameters TEXT,
    cache_enabled BOOLEAN NOT NULL DEFAULT 0,
    cache_ttl_seconds INTEGER NOT NULL DEFAULT 0,
    expected_execution_time_ms INTEGER NOT NULL DEFAULT 0,
    test_cases TEXT,
    documentation TEXT,
    usage_example TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,

    UNIQUE (tenant_id, code, version)
);

CREATE INDEX IF NOT EXISTS idx_atoms_tenant_code
    ON atoms (tenant_id, code, version DESC);
CREATE INDEX IF NOT EXISTS idx_atoms_status
    ON atoms (tenant_id, status);
`

// SQLiteConfig contains configuration for the SQLite atom store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections. Default: 10.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections. Default: 5.
	MaxIdleConns int

	// WALMode enables write-ahead logging for better concurrency.
	// Default: true.
	WALMode bool

	// BusyTimeout is the lock wait duration. Default: 5s.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/atoms.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore is the durable AtomStore. Typed payloads (logic, parameters,
// test cases) are stored as JSON columns and re-parsed into the tagged
// union on load.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger

	findByIDStmt *sql.Stmt
	findCodeStmt *sql.Stmt
	findLatest   *sql.Stmt
	latestVerRow *sql.Stmt
	insertStmt   *sql.Stmt
}

// NewSQLiteStore opens (creating if necessary) the atom database.
func NewSQLiteStore(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open atom database %q: %w", config.Path, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite atom store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}
	if _, err := s.db.Exec(atomSchema); err != nil {
		return fmt.Errorf("failed to create atom schema: %w", err)
	}
	return s.prepareStatements()
}

const atomColumns = `id, tenant_id, code, version, name, description, category,
	type, status, priority, tags, logic, dependencies, input_parameters,
	cache_enabled, cache_ttl_seconds, expected_execution_time_ms,
	test_cases, documentation, usage_example, created_at, updated_at`

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.findByIDStmt, err = s.db.Prepare(
		`SELECT ` + atomColumns + ` FROM atoms WHERE tenant_id = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare find-by-id: %w", err)
	}

	s.findCodeStmt, err = s.db.Prepare(
		`SELECT ` + atomColumns + ` FROM atoms
		 WHERE tenant_id = ? AND code = ? AND status IN ('active', 'testing')
		 ORDER BY version DESC LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare find-by-code: %w", err)
	}

	s.findLatest, err = s.db.Prepare(
		`SELECT ` + atomColumns + ` FROM atoms
		 WHERE tenant_id = ? AND code = ?
		 ORDER BY version DESC LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare find-latest: %w", err)
	}

	s.latestVerRow, err = s.db.Prepare(
		`SELECT COALESCE(MAX(version), 0) FROM atoms WHERE tenant_id = ? AND code = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare latest-version: %w", err)
	}

	s.insertStmt, err = s.db.Prepare(
		`INSERT INTO atoms (` + atomColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	return nil
}

// Save persists an atom version, enforcing strict version monotonicity per
// (tenant, code).
func (s *SQLiteStore) Save(ctx context.Context, a *atom.Atom) error {
	if a == nil {
		return fmt.Errorf("atom cannot be nil")
	}
	if a.TenantID == "" || a.Code == "" {
		return fmt.Errorf("atom tenant ID and code are required")
	}

	var latest int
	if err := s.latestVerRow.QueryRowContext(ctx, a.TenantID, a.Code).Scan(&latest); err != nil {
		return fmt.Errorf("failed to query latest version of %q: %w", a.Code, err)
	}
	if a.Version <= latest {
		return fmt.Errorf("version %d for atom %q is not greater than latest version %d",
			a.Version, a.Code, latest)
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	logic, err := json.Marshal(a.Logic)
	if err != nil {
		return fmt.Errorf("failed to encode logic: %w", err)
	}
	deps, err := json.Marshal(a.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to encode dependencies: %w", err)
	}
	params, err := json.Marshal(a.InputParameters)
	if err != nil {
		return fmt.Errorf("failed to encode input parameters: %w", err)
	}
	testCases, err := json.Marshal(a.TestCases)
	if err != nil {
		return fmt.Errorf("failed to encode test cases: %w", err)
	}

	_, err = s.insertStmt.ExecContext(ctx,
		a.ID, a.TenantID, a.Code, a.Version, a.Name, a.Description, a.Category,
		string(a.Type), string(a.Status), a.Priority, string(tags), string(logic),
		string(deps), string(params), a.CacheEnabled, a.CacheTTLSeconds,
		a.ExpectedExecutionTimeMs, string(testCases), a.Documentation,
		a.UsageExample, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert atom %q v%d: %w", a.Code, a.Version, err)
	}
	return nil
}

// FindByID returns the atom version with the given storage ID.
func (s *SQLiteStore) FindByID(ctx context.Context, tenantID, id string) (*atom.Atom, error) {
	return s.scanOne(s.findByIDStmt.QueryRowContext(ctx, tenantID, id))
}

// FindByCode returns the latest executable version of the atom.
func (s *SQLiteStore) FindByCode(ctx context.Context, tenantID, code string) (*atom.Atom, error) {
	return s.scanOne(s.findCodeStmt.QueryRowContext(ctx, tenantID, code))
}

// FindLatestVersion returns the highest version regardless of status.
func (s *SQLiteStore) FindLatestVersion(ctx context.Context, tenantID, code string) (*atom.Atom, error) {
	return s.scanOne(s.findLatest.QueryRowContext(ctx, tenantID, code))
}

// DeleteArchived removes archived versions not updated since cutoff.
func (s *SQLiteStore) DeleteArchived(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM atoms WHERE status = 'archived' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived atoms: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) scanOne(row *sql.Row) (*atom.Atom, error) {
	var (
		a                                    atom.Atom
		typ, status                          string
		tags, logic, deps, params, testCases sql.NullString
		description, category, docs, usageEx sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.TenantID, &a.Code, &a.Version, &a.Name, &description,
		&category, &typ, &status, &a.Priority, &tags, &logic, &deps,
		&params, &a.CacheEnabled, &a.CacheTTLSeconds,
		&a.ExpectedExecutionTimeMs, &testCases, &docs, &usageEx,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan atom row: %w", err)
	}

	a.Type = atom.Type(typ)
	a.Status = atom.Status(status)
	a.Description = description.String
	a.Category = category.String
	a.Documentation = docs.String
	a.UsageExample = usageEx.String

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %q: %w", a.Code, err)
		}
	}
	if logic.Valid && logic.String != "" {
		if err := json.Unmarshal([]byte(logic.String), &a.Logic); err != nil {
			return nil, fmt.Errorf("failed to decode logic for %q: %w", a.Code, err)
		}
	}
	if deps.Valid && deps.String != "" {
		if err := json.Unmarshal([]byte(deps.String), &a.Dependencies); err != nil {
			return nil, fmt.Errorf("failed to decode dependencies for %q: %w", a.Code, err)
		}
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &a.InputParameters); err != nil {
			return nil, fmt.Errorf("failed to decode input parameters for %q: %w", a.Code, err)
		}
	}
	if testCases.Valid && testCases.String != "" {
		if err := json.Unmarshal([]byte(testCases.String), &a.TestCases); err != nil {
			return nil, fmt.Errorf("failed to decode test cases for %q: %w", a.Code, err)
		}
	}

	return &a, nil
}

// Close closes the prepared statements and the database.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.findByIDStmt, s.findCodeStmt, s.findLatest, s.latestVerRow, s.insertStmt,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
