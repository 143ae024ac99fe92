package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eligos-hq/atlas/pkg/atom"
)

// MemoryStore is an in-memory AtomStore. It backs tests, the CLI, and the
// file-based atom source; production deployments use the SQLite store.
type MemoryStore struct {
	// tenants maps tenant ID -> code -> versions ordered ascending.
	tenants map[string]map[string][]*atom.Atom
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory atom store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]map[string][]*atom.Atom),
	}
}

// Save persists an atom version. Versions per code must strictly increase.
func (s *MemoryStore) Save(_ context.Context, a *atom.Atom) error {
	if a == nil {
		return fmt.Errorf("atom cannot be nil")
	}
	if a.TenantID == "" || a.Code == "" {
		return fmt.Errorf("atom tenant ID and code are required")
	}
	if a.Version < 1 {
		return fmt.Errorf("atom version must be at least 1, got %d", a.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	codes, ok := s.tenants[a.TenantID]
	if !ok {
		codes = make(map[string][]*atom.Atom)
		s.tenants[a.TenantID] = codes
	}

	versions := codes[a.Code]
	if n := len(versions); n > 0 && a.Version <= versions[n-1].Version {
		return fmt.Errorf("version %d for atom %q is not greater than latest version %d",
			a.Version, a.Code, versions[n-1].Version)
	}

	stored := *a
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	codes[a.Code] = append(versions, &stored)
	a.ID = stored.ID
	return nil
}

// FindByID returns the atom version with the given storage ID.
func (s *MemoryStore) FindByID(_ context.Context, tenantID, id string) (*atom.Atom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, versions := range s.tenants[tenantID] {
		for _, a := range versions {
			if a.ID == id {
				copied := *a
				return &copied, nil
			}
		}
	}
	return nil, nil
}

// FindByCode returns the latest executable version of the atom.
func (s *MemoryStore) FindByCode(_ context.Context, tenantID, code string) (*atom.Atom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.tenants[tenantID][code]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Executable() {
			copied := *versions[i]
			return &copied, nil
		}
	}
	return nil, nil
}

// FindLatestVersion returns the highest version regardless of status.
func (s *MemoryStore) FindLatestVersion(_ context.Context, tenantID, code string) (*atom.Atom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.tenants[tenantID][code]
	if len(versions) == 0 {
		return nil, nil
	}
	copied := *versions[len(versions)-1]
	return &copied, nil
}

// DeleteArchived removes archived atom versions older than cutoff and
// returns how many were removed. Used by the retention pruner.
func (s *MemoryStore) DeleteArchived(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, codes := range s.tenants {
		for code, versions := range codes {
			kept := versions[:0]
			for _, a := range versions {
				if a.Status == atom.StatusArchived && a.UpdatedAt.Before(cutoff) {
					removed++
					continue
				}
				kept = append(kept, a)
			}
			codes[code] = kept
		}
	}
	return removed, nil
}

// All returns the latest version of every atom for the tenant, sorted by
// code.
func (s *MemoryStore) All(tenantID string) []*atom.Atom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.tenants[tenantID]))
	for code := range s.tenants[tenantID] {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	atoms := make([]*atom.Atom, 0, len(codes))
	for _, code := range codes {
		versions := s.tenants[tenantID][code]
		if len(versions) == 0 {
			continue
		}
		copied := *versions[len(versions)-1]
		atoms = append(atoms, &copied)
	}
	return atoms
}

// Replace atomically swaps the whole tenant atom set. Used by the file
// source on reload.
func (s *MemoryStore) Replace(tenantID string, atoms []*atom.Atom) {
	codes := make(map[string][]*atom.Atom)
	for _, a := range atoms {
		stored := *a
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		codes[a.Code] = append(codes[a.Code], &stored)
	}
	// Keep versions ordered ascending per code.
	for _, versions := range codes {
		for i := 1; i < len(versions); i++ {
			for j := i; j > 0 && versions[j].Version < versions[j-1].Version; j-- {
				versions[j], versions[j-1] = versions[j-1], versions[j]
			}
		}
	}

	s.mu.Lock()
	s.tenants[tenantID] = codes
	s.mu.Unlock()
}
