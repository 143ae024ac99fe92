// Package engine implements the eligibility atom execution engine: operator
// evaluation, dependency resolution, caching, timeout enforcement, bounded
// concurrency, and asynchronous statistics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"eligos-hq/atlas/pkg/atom"
	"eligos-hq/atlas/pkg/atom/validator"
	"eligos-hq/atlas/pkg/store"
	"eligos-hq/atlas/pkg/telemetry/metrics"
)

// Engine executes eligibility atoms. One Engine serves all tenants; every
// call carries its tenant explicitly through the execution Context, so no
// ambient tenant state exists to leak across requests.
type Engine struct {
	config    *Config
	atoms     store.AtomStore
	cache     store.CacheStore
	resolver  *Resolver
	validator *validator.Validator
	logger    *slog.Logger
	pool      *workerPool
	stats     *statsUpdater
	metrics   *metrics.EngineMetrics

	evaluators map[atom.Type]evaluator
	scorers    map[atom.ModelType]ModelScorer

	closed atomic.Bool
}

// New creates an execution engine. cache and stats may be nil: a nil cache
// disables result caching, a nil stats backend discards statistics. A nil
// metrics collector disables metric emission.
func New(cfg *Config, atoms store.AtomStore, cache store.CacheStore, stats store.StatsBackend, m *metrics.EngineMetrics, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if atoms == nil {
		return nil, fmt.Errorf("atom store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	e := &Engine{
		config:    cfg,
		atoms:     atoms,
		cache:     cache,
		resolver:  NewResolver(atoms, cfg.MaxDepth, logger),
		validator: validator.New(atoms),
		logger:    logger,
		metrics:   m,
		scorers:   defaultScorers(),
	}
	e.pool = newWorkerPool(cfg.PoolSize, cfg.QueueCapacity, m.RecordCallerRun)
	e.stats = newStatsUpdater(stats, cfg.StatsBufferSize, logger, m.RecordStatsDropped)

	e.evaluators = map[atom.Type]evaluator{
		atom.TypeSimple:          simpleEvaluator{},
		atom.TypeComplex:         complexEvaluator{},
		atom.TypeComposite:       compositeEvaluator{execChild: e.executeChild},
		atom.TypeTemplate:        templateEvaluator{},
		atom.TypeMachineLearning: mlEvaluator{scorers: e.scorers},
	}

	return e, nil
}

// RegisterScorer installs a model scorer for the given model type,
// replacing the deterministic placeholder.
func (e *Engine) RegisterScorer(t atom.ModelType, scorer ModelScorer) {
	e.scorers[t] = scorer
}

// ExecuteByCode resolves the latest executable version of code and
// executes it.
func (e *Engine) ExecuteByCode(ctx context.Context, tenantID, code string, input map[string]interface{}) (*Result, error) {
	a, err := e.resolver.Resolve(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, a, input)
}

// Execute runs one atom against the given input.
//
// The call validates the input against the atom's parameter schema, builds
// and validates the full dependency graph (cycles and excess depth are
// rejected before any evaluation), then evaluates on the worker pool under
// the atom's timeout. Dependencies execute before the atom itself, each
// one cache-eligible; a cache hit skips dependency execution and
// evaluation entirely.
func (e *Engine) Execute(ctx context.Context, a *atom.Atom, input map[string]interface{}) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if !a.Executable() {
		return nil, &ExecutionError{
			Code:  a.Code,
			Cause: fmt.Errorf("atom status %q is not executable", a.Status),
		}
	}

	if missing := validator.MissingParameters(a, input); len(missing) > 0 {
		return nil, &MissingParameterError{Code: a.Code, Parameters: missing}
	}
	if vErrs := e.validator.ValidateForExecution(a, input); !vErrs.Empty() {
		return nil, &ExecutionError{Code: a.Code, Cause: vErrs.ToError()}
	}

	ectx := &Context{
		TenantID:          a.TenantID,
		RequestID:         RequestIDFrom(ctx),
		Attributes:        input,
		DependencyResults: make(map[string]*Result),
	}

	// Serve from cache before touching the dependency graph: a hit means
	// no resolution, no dependency execution, no evaluation.
	if hit, ok := e.cacheGet(ctx, a, input); ok {
		return hit, nil
	}

	// Cycles, missing dependencies, and excess depth are configuration
	// errors surfaced before any evaluation happens.
	if _, err := e.resolver.BuildGraph(ctx, a); err != nil {
		e.observe(a, "config_error", 0)
		return nil, err
	}

	timeout := e.timeoutFor(a)
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	// The cache was consulted above, so the root enters evaluation
	// directly; only dependencies go through executeAtom's lookup.
	done := make(chan outcome, 1)
	e.pool.Submit(func() {
		res, err := e.evaluateAtom(execCtx, a, ectx)
		done <- outcome{res: res, err: err}
	})

	select {
	case out := <-done:
		return out.res, out.err
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			e.observe(a, "timeout", timeout)
			e.stats.Record(store.StatsSample{
				TenantID:   a.TenantID,
				Code:       a.Code,
				Success:    false,
				Duration:   timeout,
				ExecutedAt: time.Now(),
			})
			return nil, &TimeoutError{Code: a.Code, Timeout: timeout}
		}
		return nil, execCtx.Err()
	}
}

// executeAtom is the recursive execution path for dependencies: cache
// lookup, then the full evaluation sequence. Dependency results are
// cache-eligible like top-level ones.
func (e *Engine) executeAtom(ctx context.Context, a *atom.Atom, ectx *Context) (*Result, error) {
	if hit, ok := e.cacheGet(ctx, a, ectx.Attributes); ok {
		return hit, nil
	}
	return e.evaluateAtom(ctx, a, ectx)
}

// evaluateAtom executes dependencies, evaluates the atom, and records the
// result in the cache and statistics. The caller has already checked the
// cache.
func (e *Engine) evaluateAtom(ctx context.Context, a *atom.Atom, ectx *Context) (*Result, error) {
	timer := startTimer()

	declared := make(map[string]bool, len(a.Dependencies))
	for _, code := range a.Dependencies {
		declared[code] = true
	}

	for _, code := range a.DirectDependencies() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := ectx.DependencyResults[code]; ok {
			continue // diamond dependency, already executed this call
		}

		res, err := e.executeDependency(ctx, a, code, ectx)
		if err != nil {
			if declared[code] {
				e.recordFailure(a, timer)
				return nil, err
			}
			// Composite-only children degrade to an ineligible result;
			// the composite evaluator reports them.
			res = &Result{Eligible: false, Value: false, Reason: err.Error(), Err: err}
		}
		// Execution within a call is sequential, and the map is shared down
		// the whole call tree, so a diamond dependency executes once even
		// when its branches meet below the root.
		ectx.DependencyResults[code] = res
	}

	eval, ok := e.evaluators[a.Type]
	if !ok {
		e.recordFailure(a, timer)
		return nil, &ExecutionError{
			Code:    a.Code,
			Elapsed: timer.elapsed(),
			Cause:   fmt.Errorf("no evaluator for atom type %q", a.Type),
		}
	}

	res, err := eval.Evaluate(ctx, a, ectx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller already got a timeout answer and recorded it;
			// counting the abandoned evaluation again would double it.
			return nil, ctxErr
		}
		e.recordFailure(a, timer)
		return nil, &ExecutionError{Code: a.Code, Elapsed: timer.elapsed(), Cause: err}
	}

	// A result that lands after the caller timed out is discarded: the
	// timeout was already answered and recorded, so a late success must
	// not enter the cache or the statistics.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	res.ExecutionTimeMs = timer.elapsedMs()
	e.cachePut(ctx, a, ectx.Attributes, res)

	e.observe(a, outcomeLabel(res.Eligible), timer.elapsed())
	e.stats.Record(store.StatsSample{
		TenantID:   a.TenantID,
		Code:       a.Code,
		Success:    true,
		Duration:   timer.elapsed(),
		ExecutedAt: time.Now(),
	})

	e.logger.Debug("atom executed",
		"tenant_id", a.TenantID,
		"atom_code", a.Code,
		"atom_type", a.Type,
		"eligible", res.Eligible,
		"duration_ms", res.ExecutionTimeMs,
		"request_id", ectx.RequestID,
	)

	return res, nil
}

// executeDependency resolves and executes one direct dependency.
func (e *Engine) executeDependency(ctx context.Context, parent *atom.Atom, code string, ectx *Context) (*Result, error) {
	dep, err := e.resolver.Resolve(ctx, parent.TenantID, code)
	if err != nil {
		var notFound *AtomNotFoundError
		if errors.As(err, &notFound) {
			return nil, &DependencyError{Code: parent.Code, Missing: []string{code}}
		}
		return nil, err
	}
	return e.executeAtom(ctx, dep, ectx)
}

// executeChild serves composite evaluators: an already-executed dependency
// result is reused, anything else goes through the full execution path.
func (e *Engine) executeChild(ctx context.Context, code string, ectx *Context) (*Result, error) {
	if res, ok := ectx.DependencyResults[code]; ok {
		if res.Err != nil {
			return nil, res.Err
		}
		return res, nil
	}
	dep, err := e.resolver.Resolve(ctx, ectx.TenantID, code)
	if err != nil {
		return nil, err
	}
	return e.executeAtom(ctx, dep, ectx)
}

// cacheGet returns a cached result for the atom/input fingerprint, if
// caching is enabled and a fresh entry exists.
func (e *Engine) cacheGet(ctx context.Context, a *atom.Atom, input map[string]interface{}) (*Result, bool) {
	if !a.CacheEnabled || e.cache == nil {
		return nil, false
	}

	key := Fingerprint(a.TenantID, a.Code, a.Version, input)
	entry, ok := e.cache.Get(ctx, key)
	if !ok {
		e.metrics.RecordCacheMiss()
		return nil, false
	}

	e.metrics.RecordCacheHit()
	return &Result{
		Eligible:        entry.Eligible,
		Value:           entry.Value,
		Reason:          entry.Reason,
		ExecutionTimeMs: entry.ExecutionTimeMs,
		CacheHit:        true,
	}, true
}

// cachePut stores a successful result, best-effort. Failed results are
// never written, so a timeout or error cannot poison the fingerprint.
func (e *Engine) cachePut(ctx context.Context, a *atom.Atom, input map[string]interface{}, res *Result) {
	if !a.CacheEnabled || e.cache == nil || res.Err != nil {
		return
	}

	ttl := e.config.CacheTTL
	if a.CacheTTLSeconds > 0 {
		ttl = time.Duration(a.CacheTTLSeconds) * time.Second
	}

	key := Fingerprint(a.TenantID, a.Code, a.Version, input)
	e.cache.Put(ctx, key, &store.CachedResult{
		Eligible:        res.Eligible,
		Value:           res.Value,
		Reason:          res.Reason,
		ExecutionTimeMs: res.ExecutionTimeMs,
	}, ttl)
}

// timeoutFor returns the evaluation bound for an atom: its declared
// expected execution time when set, the engine default otherwise.
func (e *Engine) timeoutFor(a *atom.Atom) time.Duration {
	if a.ExpectedExecutionTimeMs > 0 {
		return time.Duration(a.ExpectedExecutionTimeMs) * time.Millisecond
	}
	return e.config.ExecutionTimeout
}

func (e *Engine) recordFailure(a *atom.Atom, timer resultTimer) {
	e.observe(a, "error", timer.elapsed())
	e.stats.Record(store.StatsSample{
		TenantID:   a.TenantID,
		Code:       a.Code,
		Success:    false,
		Duration:   timer.elapsed(),
		ExecutedAt: time.Now(),
	})
}

func (e *Engine) observe(a *atom.Atom, outcome string, duration time.Duration) {
	e.metrics.RecordExecution(a.TenantID, string(a.Type), outcome, duration)
}

func outcomeLabel(eligible bool) string {
	if eligible {
		return "eligible"
	}
	return "ineligible"
}

// CallerRuns reports how many pool tasks ran on the submitting goroutine.
func (e *Engine) CallerRuns() int64 {
	return e.pool.CallerRuns()
}

// DroppedStats reports how many statistics samples were dropped.
func (e *Engine) DroppedStats() int64 {
	return e.stats.Dropped()
}

// Close shuts down the worker pool and the statistics updater. In-flight
// work is drained first.
func (e *Engine) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.pool.Close()
		e.stats.Close()
	}
	return nil
}

// requestIDKey carries the request ID through a context.Context.
type requestIDKey struct{}

// ContextWithRequestID returns a context carrying the request ID.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom extracts the request ID from a context, or "".
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
