// Package store defines the persistence boundaries the atom engine consumes
// (atom definitions, cached execution results, execution statistics) and
// provides in-memory, file-backed, and SQLite implementations.
package store

import (
	"context"
	"time"

	"eligos-hq/atlas/pkg/atom"
)

// AtomStore provides tenant-scoped lookup of atom definitions. Absence is
// reported as (nil, nil), never as an error; errors indicate storage
// failures only.
type AtomStore interface {
	// FindByID returns the atom version with the given storage ID.
	FindByID(ctx context.Context, tenantID, id string) (*atom.Atom, error)

	// FindByCode returns the latest executable (active or testing) version
	// of the atom with the given code.
	FindByCode(ctx context.Context, tenantID, code string) (*atom.Atom, error)

	// FindLatestVersion returns the highest version of the atom with the
	// given code regardless of lifecycle status.
	FindLatestVersion(ctx context.Context, tenantID, code string) (*atom.Atom, error)

	// Save persists an atom version. Versions for a given code must be
	// strictly increasing; saving a version at or below the latest known
	// version fails.
	Save(ctx context.Context, a *atom.Atom) error
}

// CacheStore is a shared, tenant-partitioned key/value store for execution
// results. It is best-effort: implementations log failures and callers
// treat any failure as a cache miss. Lost writes are tolerated; they only
// cause redundant recomputation.
type CacheStore interface {
	// Get returns the cached entry for the fingerprint key, or (nil, false)
	// on miss or expiry.
	Get(ctx context.Context, key string) (*CachedResult, bool)

	// Put stores an entry under the fingerprint key with the given TTL.
	Put(ctx context.Context, key string, value *CachedResult, ttl time.Duration)
}

// CachedResult is the cacheable portion of an execution result. The engine
// owns its Result type; the store keeps a flat copy so the two packages do
// not depend on each other.
type CachedResult struct {
	Eligible        bool        `json:"eligible"`
	Value           interface{} `json:"value"`
	Reason          string      `json:"reason"`
	ExecutionTimeMs int64       `json:"execution_time_ms"`
}

// StatsSample is one execution observation emitted by the engine's
// fire-and-forget statistics updater.
type StatsSample struct {
	TenantID   string
	Code       string
	Success    bool
	Duration   time.Duration
	ExecutedAt time.Time
}

// StatsBackend aggregates execution statistics. Updates arrive out of order
// and may be dropped; backends must never let a lost sample corrupt the
// aggregate invariants (rates stay in [0,1], counts never decrease).
type StatsBackend interface {
	// Record folds one sample into the aggregate for (tenant, code).
	Record(ctx context.Context, sample StatsSample) error

	// Load returns the current aggregate for (tenant, code), or (nil, nil)
	// if nothing has been recorded.
	Load(ctx context.Context, tenantID, code string) (*atom.Stats, error)
}
