package store

import (
	"context"
	"sync"

	"eligos-hq/atlas/pkg/atom"
)

// MemoryStats is an in-memory StatsBackend keyed by (tenant, code).
type MemoryStats struct {
	mu         sync.RWMutex
	aggregates map[string]*atom.Stats
}

// NewMemoryStats creates an empty in-memory statistics backend.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{aggregates: make(map[string]*atom.Stats)}
}

// Record folds one sample into the aggregate for (tenant, code).
func (m *MemoryStats) Record(_ context.Context, sample StatsSample) error {
	key := sample.TenantID + "/" + sample.Code

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.aggregates[key]
	if !ok {
		s = &atom.Stats{}
		m.aggregates[key] = s
	}
	foldSample(s, sample)
	return nil
}

// Load returns the current aggregate for (tenant, code), or (nil, nil) if
// nothing has been recorded.
func (m *MemoryStats) Load(_ context.Context, tenantID, code string) (*atom.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.aggregates[tenantID+"/"+code]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// foldSample applies one execution observation to a rolling aggregate. The
// average and rates are recomputed incrementally so counts never decrease
// and rates stay within [0, 1] regardless of sample ordering.
func foldSample(s *atom.Stats, sample StatsSample) {
	prev := float64(s.ExecutionCount)
	s.ExecutionCount++
	total := float64(s.ExecutionCount)

	elapsed := float64(sample.Duration.Microseconds()) / 1000.0
	s.AvgExecutionTimeMs = (s.AvgExecutionTimeMs*prev + elapsed) / total

	successes := s.SuccessRate * prev
	if sample.Success {
		successes++
	}
	s.SuccessRate = successes / total
	s.ErrorRate = 1.0 - s.SuccessRate

	if sample.ExecutedAt.After(s.LastExecutedAt) {
		s.LastExecutedAt = sample.ExecutedAt
	}
}
