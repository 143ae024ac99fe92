package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"eligos-hq/atlas/pkg/store"
)

// statsUpdater applies execution statistics asynchronously. Samples flow
// through a bounded channel into a single background goroutine; when the
// channel is full the sample is dropped and counted. Decision correctness
// never depends on statistics delivery, so dropped or out-of-order samples
// are acceptable.
type statsUpdater struct {
	backend store.StatsBackend
	samples chan store.StatsSample
	dropped atomic.Int64
	onDrop  func()
	logger  *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// newStatsUpdater starts the background updater. backend may be nil, in
// which case samples are discarded silently. onDrop, when non-nil, is
// invoked each time a full buffer forces a sample to be dropped.
func newStatsUpdater(backend store.StatsBackend, bufferSize int, logger *slog.Logger, onDrop func()) *statsUpdater {
	if bufferSize <= 0 {
		bufferSize = DefaultStatsBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	u := &statsUpdater{
		backend: backend,
		samples: make(chan store.StatsSample, bufferSize),
		onDrop:  onDrop,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	u.wg.Add(1)
	go u.run()
	return u
}

// Record submits a sample without blocking. Full buffer drops the sample.
func (u *statsUpdater) Record(sample store.StatsSample) {
	select {
	case u.samples <- sample:
	default:
		u.dropped.Add(1)
		if u.onDrop != nil {
			u.onDrop()
		}
	}
}

// Dropped returns the number of samples dropped due to a full buffer.
func (u *statsUpdater) Dropped() int64 {
	return u.dropped.Load()
}

func (u *statsUpdater) run() {
	defer u.wg.Done()
	for {
		select {
		case sample := <-u.samples:
			u.apply(sample)
		case <-u.stopCh:
			// Drain pending samples before exiting.
			for {
				select {
				case sample := <-u.samples:
					u.apply(sample)
				default:
					return
				}
			}
		}
	}
}

func (u *statsUpdater) apply(sample store.StatsSample) {
	if u.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := u.backend.Record(ctx, sample); err != nil {
		u.logger.Warn("failed to record execution statistics",
			"atom_code", sample.Code,
			"tenant_id", sample.TenantID,
			"error", err,
		)
	}
}

// Close drains and stops the updater.
func (u *statsUpdater) Close() {
	u.stopOnce.Do(func() {
		close(u.stopCh)
		u.wg.Wait()
	})
}
