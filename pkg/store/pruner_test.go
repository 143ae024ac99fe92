package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeDeleter records the cutoffs it was asked to prune to.
type fakeDeleter struct {
	deleted int
	err     error
	cutoffs []time.Time
}

func (f *fakeDeleter) DeleteArchived(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func (f *fakeDeleter) DeleteStale(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.deleted, f.err
}

func TestPruner_PrunesBothTargets(t *testing.T) {
	atoms := &fakeDeleter{deleted: 3}
	stats := &fakeDeleter{deleted: 2}
	p := NewPruner(&RetentionConfig{ArchivedAtomDays: 90, StaleStatsDays: 180}, atoms, stats, testLogger())

	total, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if total != 5 {
		t.Errorf("Prune() = %d, want 5", total)
	}

	// Cutoffs track the configured retention windows.
	now := time.Now()
	if len(atoms.cutoffs) != 1 {
		t.Fatalf("atom deleter called %d times, want 1", len(atoms.cutoffs))
	}
	wantAtomCutoff := now.AddDate(0, 0, -90)
	if d := atoms.cutoffs[0].Sub(wantAtomCutoff); d < -time.Minute || d > time.Minute {
		t.Errorf("atom cutoff = %v, want about %v", atoms.cutoffs[0], wantAtomCutoff)
	}
	wantStatsCutoff := now.AddDate(0, 0, -180)
	if d := stats.cutoffs[0].Sub(wantStatsCutoff); d < -time.Minute || d > time.Minute {
		t.Errorf("stats cutoff = %v, want about %v", stats.cutoffs[0], wantStatsCutoff)
	}
}

func TestPruner_ZeroDaysDisables(t *testing.T) {
	atoms := &fakeDeleter{deleted: 3}
	stats := &fakeDeleter{deleted: 2}
	p := NewPruner(&RetentionConfig{ArchivedAtomDays: 0, StaleStatsDays: 0}, atoms, stats, testLogger())

	total, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if total != 0 {
		t.Errorf("Prune() = %d, want 0", total)
	}
	if len(atoms.cutoffs) != 0 || len(stats.cutoffs) != 0 {
		t.Error("disabled targets should not be pruned")
	}
}

func TestPruner_NilTargets(t *testing.T) {
	p := NewPruner(DefaultRetentionConfig(), nil, nil, testLogger())
	if total, err := p.Prune(context.Background()); total != 0 || err != nil {
		t.Errorf("Prune() = (%d, %v), want (0, nil)", total, err)
	}
}

func TestPruner_PropagatesErrors(t *testing.T) {
	boom := errors.New("disk gone")
	p := NewPruner(DefaultRetentionConfig(), &fakeDeleter{err: boom}, nil, testLogger())

	if _, err := p.Prune(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Prune() error = %v, want wrapped %v", err, boom)
	}
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	p := NewPruner(&RetentionConfig{ArchivedAtomDays: 90, PruneSchedule: "not a cron line"},
		&fakeDeleter{}, nil, testLogger())

	if err := NewScheduler(p).Start(context.Background()); err == nil {
		t.Error("Start() with an invalid cron expression should fail")
	}
}

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	p := NewPruner(&RetentionConfig{ArchivedAtomDays: 90}, &fakeDeleter{}, nil, testLogger())
	s := NewScheduler(p)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop() // no-op when never started
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPruner(DefaultRetentionConfig(), &fakeDeleter{}, nil, testLogger())
	s := NewScheduler(p)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	// Stop is idempotent and must not block after cancellation.
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after context cancellation")
	}
}
