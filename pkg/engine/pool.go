package engine

import (
	"sync"
	"sync/atomic"
)

// workerPool executes evaluation tasks on a fixed set of workers with a
// bounded backlog. When the backlog is full, Submit runs the task on the
// caller's goroutine — backpressure trades throughput for guaranteed
// admission; work is never dropped and submission never blocks on a full
// queue.
type workerPool struct {
	tasks  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup

	// callerRuns counts tasks executed inline due to saturation.
	callerRuns  atomic.Int64
	onCallerRun func()
	closed      atomic.Bool
}

// newWorkerPool starts size workers consuming a queue of the given capacity.
// onCallerRun, when non-nil, is invoked each time saturation forces a task
// onto the submitting goroutine.
func newWorkerPool(size, queueCapacity int, onCallerRun func()) *workerPool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if queueCapacity < 0 {
		queueCapacity = DefaultQueueCapacity
	}

	p := &workerPool{
		tasks:       make(chan func(), queueCapacity),
		stopCh:      make(chan struct{}),
		onCallerRun: onCallerRun,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.stopCh:
			// Drain what is already queued before exiting so submitted
			// work always completes.
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues a task, running it inline when the queue is saturated or
// the pool is closed.
func (p *workerPool) Submit(task func()) {
	if p.closed.Load() {
		task()
		return
	}
	select {
	case p.tasks <- task:
	default:
		p.callerRuns.Add(1)
		if p.onCallerRun != nil {
			p.onCallerRun()
		}
		task()
	}
}

// CallerRuns returns the number of tasks executed inline due to saturation.
func (p *workerPool) CallerRuns() int64 {
	return p.callerRuns.Load()
}

// Close stops the workers after draining the queue.
func (p *workerPool) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.stopCh)
		p.wg.Wait()
	}
}
