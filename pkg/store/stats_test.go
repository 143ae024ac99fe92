package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryStats_Aggregation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStats()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	samples := []StatsSample{
		{TenantID: "tenant-a", Code: "AGE_CHECK", Success: true, Duration: 10 * time.Millisecond, ExecutedAt: base},
		{TenantID: "tenant-a", Code: "AGE_CHECK", Success: false, Duration: 30 * time.Millisecond, ExecutedAt: base.Add(time.Minute)},
		{TenantID: "tenant-a", Code: "AGE_CHECK", Success: true, Duration: 20 * time.Millisecond, ExecutedAt: base.Add(2 * time.Minute)},
	}
	for _, sample := range samples {
		if err := m.Record(ctx, sample); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	stats, err := m.Load(ctx, "tenant-a", "AGE_CHECK")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stats.ExecutionCount != 3 {
		t.Errorf("ExecutionCount = %d, want 3", stats.ExecutionCount)
	}
	if math.Abs(stats.AvgExecutionTimeMs-20.0) > 0.001 {
		t.Errorf("AvgExecutionTimeMs = %v, want 20", stats.AvgExecutionTimeMs)
	}
	if math.Abs(stats.SuccessRate-2.0/3.0) > 0.001 {
		t.Errorf("SuccessRate = %v, want 2/3", stats.SuccessRate)
	}
	if math.Abs(stats.SuccessRate+stats.ErrorRate-1.0) > 1e-9 {
		t.Errorf("SuccessRate + ErrorRate = %v, want 1", stats.SuccessRate+stats.ErrorRate)
	}
	if !stats.LastExecutedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("LastExecutedAt = %v, want %v", stats.LastExecutedAt, base.Add(2*time.Minute))
	}
}

func TestMemoryStats_OutOfOrderSamples(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStats()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// The later execution arrives first; LastExecutedAt must not move
	// backwards when the earlier one lands.
	m.Record(ctx, StatsSample{TenantID: "t", Code: "C_ATOM", Success: true, ExecutedAt: base.Add(time.Hour)})
	m.Record(ctx, StatsSample{TenantID: "t", Code: "C_ATOM", Success: true, ExecutedAt: base})

	stats, _ := m.Load(ctx, "t", "C_ATOM")
	if !stats.LastExecutedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("LastExecutedAt = %v, want %v", stats.LastExecutedAt, base.Add(time.Hour))
	}
}

func TestMemoryStats_LoadUnknown(t *testing.T) {
	stats, err := NewMemoryStats().Load(context.Background(), "tenant-a", "GHOST")
	if stats != nil || err != nil {
		t.Errorf("Load() = (%v, %v), want (nil, nil)", stats, err)
	}
}

func TestMemoryStats_IsolatedCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStats()
	m.Record(ctx, StatsSample{TenantID: "t", Code: "C_ATOM", Success: true, ExecutedAt: time.Now()})

	first, _ := m.Load(ctx, "t", "C_ATOM")
	first.ExecutionCount = 99

	second, _ := m.Load(ctx, "t", "C_ATOM")
	if second.ExecutionCount != 1 {
		t.Errorf("aggregate mutated through a returned copy: count = %d", second.ExecutionCount)
	}
}

func TestSQLiteStats_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStats(SQLiteStatsConfig{DBPath: filepath.Join(t.TempDir(), "stats.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStats() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []StatsSample{
		{TenantID: "tenant-a", Code: "AGE_CHECK", Success: true, Duration: 10 * time.Millisecond, ExecutedAt: base},
		{TenantID: "tenant-a", Code: "AGE_CHECK", Success: false, Duration: 20 * time.Millisecond, ExecutedAt: base.Add(time.Minute)},
	}
	for _, sample := range samples {
		if err := s.Record(ctx, sample); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	stats, err := s.Load(ctx, "tenant-a", "AGE_CHECK")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stats.ExecutionCount != 2 {
		t.Errorf("ExecutionCount = %d, want 2", stats.ExecutionCount)
	}
	if math.Abs(stats.AvgExecutionTimeMs-15.0) > 0.001 {
		t.Errorf("AvgExecutionTimeMs = %v, want 15", stats.AvgExecutionTimeMs)
	}
	if math.Abs(stats.SuccessRate-0.5) > 0.001 {
		t.Errorf("SuccessRate = %v, want 0.5", stats.SuccessRate)
	}
	if !stats.LastExecutedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("LastExecutedAt = %v, want %v", stats.LastExecutedAt, base.Add(time.Minute))
	}

	if ghost, err := s.Load(ctx, "tenant-a", "GHOST"); ghost != nil || err != nil {
		t.Errorf("Load(unknown) = (%v, %v), want (nil, nil)", ghost, err)
	}
}

func TestSQLiteStats_DeleteStale(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStats(SQLiteStatsConfig{DBPath: filepath.Join(t.TempDir(), "stats.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStats() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Record(ctx, StatsSample{TenantID: "t", Code: "STALE_ATOM", Success: true, ExecutedAt: base})
	s.Record(ctx, StatsSample{TenantID: "t", Code: "FRESH_ATOM", Success: true, ExecutedAt: base.AddDate(0, 6, 0)})

	deleted, err := s.DeleteStale(ctx, base.AddDate(0, 3, 0))
	if err != nil {
		t.Fatalf("DeleteStale() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteStale() = %d, want 1", deleted)
	}
	if stats, _ := s.Load(ctx, "t", "STALE_ATOM"); stats != nil {
		t.Error("stale aggregate should be gone")
	}
	if stats, _ := s.Load(ctx, "t", "FRESH_ATOM"); stats == nil {
		t.Error("fresh aggregate should survive")
	}
}
