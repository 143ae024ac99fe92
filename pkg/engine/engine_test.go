package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"eligos-hq/atlas/pkg/atom"
	"eligos-hq/atlas/pkg/store"
)

func newTestEngine(t *testing.T, s store.AtomStore, cache store.CacheStore) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(), s, cache, store.NewMemoryStats(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func ageRangeAtom() *atom.Atom {
	return &atom.Atom{
		TenantID: testTenant,
		Code:     "AGE_RANGE_CHECK",
		Version:  1,
		Name:     "Age range check",
		Type:     atom.TypeSimple,
		Status:   atom.StatusActive,
		Priority: 5,
		Logic: &atom.Logic{
			Simple: &atom.SimpleLogic{
				Condition: atom.Condition{
					Field:    "age",
					Operator: atom.OpBetween,
					Value:    []interface{}{18, 65},
				},
			},
		},
		InputParameters: []atom.Parameter{
			{Name: "age", Type: atom.ParamInteger, Required: true},
		},
	}
}

func TestExecute_SimpleAtom(t *testing.T) {
	s := storeWith(t, ageRangeAtom())
	e := newTestEngine(t, s, nil)

	t.Run("within range", func(t *testing.T) {
		res, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK",
			map[string]interface{}{"age": 25})
		if err != nil {
			t.Fatalf("ExecuteByCode failed: %v", err)
		}
		if !res.Eligible {
			t.Errorf("age 25 should be eligible, reason: %s", res.Reason)
		}
	})

	t.Run("above maximum", func(t *testing.T) {
		res, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK",
			map[string]interface{}{"age": 70})
		if err != nil {
			t.Fatalf("ExecuteByCode failed: %v", err)
		}
		if res.Eligible {
			t.Error("age 70 should not be eligible")
		}
		if !strings.Contains(res.Reason, "above maximum 65") {
			t.Errorf("reason %q should name the violated bound", res.Reason)
		}
	})

	t.Run("missing required parameter", func(t *testing.T) {
		_, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK",
			map[string]interface{}{})
		var missing *MissingParameterError
		if !errors.As(err, &missing) {
			t.Fatalf("error = %v, want MissingParameterError", err)
		}
		if len(missing.Parameters) != 1 || missing.Parameters[0] != "age" {
			t.Errorf("missing parameters = %v, want [age]", missing.Parameters)
		}
	})
}

func TestExecute_ComplexAtom(t *testing.T) {
	premium := &atom.Atom{
		TenantID: testTenant,
		Code:     "PREMIUM_CUSTOMER",
		Version:  1,
		Name:     "Premium customer",
		Type:     atom.TypeComplex,
		Status:   atom.StatusActive,
		Priority: 3,
		Logic: &atom.Logic{
			Complex: &atom.ComplexLogic{
				Operator: atom.LogicalAnd,
				Conditions: []atom.Condition{
					{Field: "account_balance", Operator: atom.OpGreaterThanOrEqual, Value: 10000},
					{Field: "tenure_months", Operator: atom.OpGreaterThan, Value: 24},
					{Field: "status", Operator: atom.OpEquals, Value: "active"},
				},
			},
		},
	}
	s := storeWith(t, premium)
	e := newTestEngine(t, s, nil)

	t.Run("all conditions met", func(t *testing.T) {
		res, err := e.ExecuteByCode(context.Background(), testTenant, "PREMIUM_CUSTOMER",
			map[string]interface{}{
				"account_balance": 15000,
				"tenure_months":   36,
				"status":          "active",
			})
		if err != nil {
			t.Fatalf("ExecuteByCode failed: %v", err)
		}
		if !res.Eligible {
			t.Errorf("should be eligible, reason: %s", res.Reason)
		}
		if !strings.Contains(res.Reason, "3 of 3") {
			t.Errorf("reason %q should count matched conditions", res.Reason)
		}
	})

	t.Run("one condition fails under AND", func(t *testing.T) {
		res, err := e.ExecuteByCode(context.Background(), testTenant, "PREMIUM_CUSTOMER",
			map[string]interface{}{
				"account_balance": 500,
				"tenure_months":   36,
				"status":          "active",
			})
		if err != nil {
			t.Fatalf("ExecuteByCode failed: %v", err)
		}
		if res.Eligible {
			t.Error("balance 500 should not be eligible")
		}
		if !strings.Contains(res.Reason, "account_balance") {
			t.Errorf("reason %q should name the failing condition", res.Reason)
		}
	})
}

func TestExecute_CompositeDegradesFailedChildren(t *testing.T) {
	// BROKEN's pattern operand is not a string, so its evaluation errors.
	broken := simpleTestAtom("BROKEN")
	broken.Logic.Simple.Condition = atom.Condition{
		Field:    "age",
		Operator: atom.OpMatches,
		Value:    42,
	}

	s := storeWith(t,
		broken,
		ageRangeAtom(),
		compositeTestAtom("EITHER", atom.LogicalOr, "BROKEN", "AGE_RANGE_CHECK"),
	)
	e := newTestEngine(t, s, nil)

	res, err := e.ExecuteByCode(context.Background(), testTenant, "EITHER",
		map[string]interface{}{"age": 30})
	if err != nil {
		t.Fatalf("composite should absorb the failed child: %v", err)
	}
	if !res.Eligible {
		t.Errorf("OR should admit on the healthy child, reason: %s", res.Reason)
	}
	if !strings.Contains(res.Reason, "BROKEN") {
		t.Errorf("reason %q should report the failed child", res.Reason)
	}
}

func TestExecute_DeclaredDependencyFailureIsFatal(t *testing.T) {
	broken := simpleTestAtom("BROKEN_DEP")
	broken.Logic.Simple.Condition = atom.Condition{
		Field:    "age",
		Operator: atom.OpMatches,
		Value:    42,
	}

	s := storeWith(t, broken, simpleTestAtom("NEEDS_DEP", "BROKEN_DEP"))
	e := newTestEngine(t, s, nil)

	_, err := e.ExecuteByCode(context.Background(), testTenant, "NEEDS_DEP",
		map[string]interface{}{"age": 30})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want ExecutionError from the declared dependency", err)
	}
}

func TestExecute_DiamondDependencyExecutesOnce(t *testing.T) {
	var calls atomic.Int64
	scorer := scorerFunc(func(_ context.Context, _ atom.ModelSpec, _ map[string]interface{}) (float64, error) {
		calls.Add(1)
		return 0.9, nil
	})

	shared := &atom.Atom{
		TenantID: testTenant,
		Code:     "SHARED_MODEL",
		Version:  1,
		Name:     "shared model",
		Type:     atom.TypeMachineLearning,
		Status:   atom.StatusActive,
		Priority: 5,
		Logic: &atom.Logic{
			ML: &atom.MLLogic{
				Model: atom.ModelSpec{Type: atom.ModelClassification, Version: "v1"},
			},
		},
	}

	s := storeWith(t,
		shared,
		simpleTestAtom("LEFT", "SHARED_MODEL"),
		simpleTestAtom("RIGHT", "SHARED_MODEL"),
		simpleTestAtom("TOP", "LEFT", "RIGHT"),
	)
	e := newTestEngine(t, s, nil)
	e.RegisterScorer(atom.ModelClassification, scorer)

	if _, err := e.ExecuteByCode(context.Background(), testTenant, "TOP",
		map[string]interface{}{"age": 30}); err != nil {
		t.Fatalf("ExecuteByCode failed: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("shared dependency scored %d times, want 1", got)
	}
}

func TestExecute_CacheShortCircuits(t *testing.T) {
	a := ageRangeAtom()
	a.CacheEnabled = true
	a.CacheTTLSeconds = 60

	cache := store.NewResultCache(100)
	t.Cleanup(cache.Close)

	s := storeWith(t, a)
	e := newTestEngine(t, s, cache)

	input := map[string]interface{}{"age": 25}
	first, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK", input)
	if err != nil {
		t.Fatalf("first execution failed: %v", err)
	}
	if first.CacheHit {
		t.Error("first execution should not be a cache hit")
	}

	second, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK", input)
	if err != nil {
		t.Fatalf("second execution failed: %v", err)
	}
	if !second.CacheHit {
		t.Error("second execution with identical input should hit the cache")
	}
	if second.Eligible != first.Eligible || second.Reason != first.Reason {
		t.Error("cached result should match the original")
	}

	// Different input means a different fingerprint.
	third, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK",
		map[string]interface{}{"age": 26})
	if err != nil {
		t.Fatalf("third execution failed: %v", err)
	}
	if third.CacheHit {
		t.Error("different input should miss the cache")
	}
}

func TestExecute_FailuresAreNotCached(t *testing.T) {
	broken := simpleTestAtom("BROKEN_CACHED")
	broken.CacheEnabled = true
	broken.Logic.Simple.Condition = atom.Condition{
		Field:    "age",
		Operator: atom.OpMatches,
		Value:    42,
	}

	cache := store.NewResultCache(100)
	t.Cleanup(cache.Close)

	s := storeWith(t, broken)
	e := newTestEngine(t, s, cache)

	input := map[string]interface{}{"age": 30}
	if _, err := e.ExecuteByCode(context.Background(), testTenant, "BROKEN_CACHED", input); err == nil {
		t.Fatal("broken atom should fail")
	}
	if cache.Size() != 0 {
		t.Errorf("cache holds %d entries after a failed execution, want 0", cache.Size())
	}
	if _, err := e.ExecuteByCode(context.Background(), testTenant, "BROKEN_CACHED", input); err == nil {
		t.Fatal("failure must not be masked by a cached entry")
	}
}

func TestExecute_SingleCacheLookupPerCall(t *testing.T) {
	a := ageRangeAtom()
	a.CacheEnabled = true
	a.CacheTTLSeconds = 60

	inner := store.NewResultCache(100)
	t.Cleanup(inner.Close)
	cache := &countingCache{inner: inner}

	s := storeWith(t, a)
	e := newTestEngine(t, s, cache)

	input := map[string]interface{}{"age": 25}
	first, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK", input)
	if err != nil {
		t.Fatalf("first execution failed: %v", err)
	}
	if first.CacheHit {
		t.Error("first execution should not be a cache hit")
	}
	if got := cache.gets.Load(); got != 1 {
		t.Errorf("cold execution performed %d cache lookups, want 1", got)
	}

	second, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK", input)
	if err != nil {
		t.Fatalf("second execution failed: %v", err)
	}
	if !second.CacheHit {
		t.Error("second execution with identical input should hit the cache")
	}
	if got := cache.gets.Load(); got != 2 {
		t.Errorf("cache lookups after the warm execution = %d, want 2", got)
	}
}

func TestExecute_Timeout(t *testing.T) {
	slow := scorerFunc(func(ctx context.Context, _ atom.ModelSpec, _ map[string]interface{}) (float64, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return 0.9, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	a := &atom.Atom{
		TenantID: testTenant,
		Code:     "SLOW_MODEL",
		Version:  1,
		Name:     "slow model",
		Type:     atom.TypeMachineLearning,
		Status:   atom.StatusActive,
		Priority: 5,
		Logic: &atom.Logic{
			ML: &atom.MLLogic{
				Model: atom.ModelSpec{Type: atom.ModelClassification, Version: "v1"},
			},
		},
		ExpectedExecutionTimeMs: 20,
	}

	s := storeWith(t, a)
	e := newTestEngine(t, s, nil)
	e.RegisterScorer(atom.ModelClassification, slow)

	_, err := e.ExecuteByCode(context.Background(), testTenant, "SLOW_MODEL",
		map[string]interface{}{"x": 1})
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}
	if timeout.Timeout != 20*time.Millisecond {
		t.Errorf("timeout = %v, want the atom's declared 20ms", timeout.Timeout)
	}
}

func TestExecute_TimeoutDiscardsLateResult(t *testing.T) {
	// A scorer that ignores cancellation and succeeds long after the
	// engine has already answered with a timeout.
	stubborn := scorerFunc(func(_ context.Context, _ atom.ModelSpec, _ map[string]interface{}) (float64, error) {
		time.Sleep(150 * time.Millisecond)
		return 0.9, nil
	})

	a := &atom.Atom{
		TenantID: testTenant,
		Code:     "STUBBORN_MODEL",
		Version:  1,
		Name:     "stubborn model",
		Type:     atom.TypeMachineLearning,
		Status:   atom.StatusActive,
		Priority: 5,
		Logic: &atom.Logic{
			ML: &atom.MLLogic{
				Model: atom.ModelSpec{Type: atom.ModelClassification, Version: "v1"},
			},
		},
		ExpectedExecutionTimeMs: 20,
		CacheEnabled:            true,
		CacheTTLSeconds:         60,
	}

	cache := store.NewResultCache(100)
	t.Cleanup(cache.Close)
	backend := store.NewMemoryStats()

	s := storeWith(t, a)
	e, err := New(DefaultConfig(), s, cache, backend, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	e.RegisterScorer(atom.ModelClassification, stubborn)

	input := map[string]interface{}{"x": 1}
	_, err = e.ExecuteByCode(context.Background(), testTenant, "STUBBORN_MODEL", input)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}

	// Let the abandoned evaluation run to completion. Its result must
	// not have entered the cache.
	time.Sleep(300 * time.Millisecond)
	if n := cache.Size(); n != 0 {
		t.Errorf("cache holds %d entries after a timed-out execution, want 0", n)
	}

	// A retry must re-execute, not surface the abandoned success.
	if _, err := e.ExecuteByCode(context.Background(), testTenant, "STUBBORN_MODEL", input); !errors.As(err, &timeout) {
		t.Fatalf("retry error = %v, want TimeoutError, not a cached success", err)
	}

	// Close drains in-flight work, so the second abandoned evaluation
	// has finished before the statistics are inspected.
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	stats, err := backend.Load(context.Background(), testTenant, "STUBBORN_MODEL")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if stats == nil || stats.ExecutionCount != 2 {
		t.Fatalf("stats = %+v, want exactly the two timeout samples", stats)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("success rate = %v, want 0: late results must not be recorded", stats.SuccessRate)
	}
}

func TestExecute_MLScoreDeterministic(t *testing.T) {
	a := &atom.Atom{
		TenantID: testTenant,
		Code:     "CHURN_MODEL",
		Version:  1,
		Name:     "churn model",
		Type:     atom.TypeMachineLearning,
		Status:   atom.StatusActive,
		Priority: 5,
		Logic: &atom.Logic{
			ML: &atom.MLLogic{
				Model: atom.ModelSpec{Type: atom.ModelPrediction, Version: "v3", Threshold: 0.3},
			},
		},
	}
	s := storeWith(t, a)
	e := newTestEngine(t, s, nil)

	input := map[string]interface{}{"recency": 12, "frequency": 4}
	first, err := e.ExecuteByCode(context.Background(), testTenant, "CHURN_MODEL", input)
	if err != nil {
		t.Fatalf("first execution failed: %v", err)
	}
	second, err := e.ExecuteByCode(context.Background(), testTenant, "CHURN_MODEL", input)
	if err != nil {
		t.Fatalf("second execution failed: %v", err)
	}
	if first.Value != second.Value {
		t.Errorf("placeholder scores differ: %v vs %v", first.Value, second.Value)
	}
}

func TestExecute_ClosedEngine(t *testing.T) {
	s := storeWith(t, ageRangeAtom())
	e := newTestEngine(t, s, nil)
	e.Close()

	_, err := e.ExecuteByCode(context.Background(), testTenant, "AGE_RANGE_CHECK",
		map[string]interface{}{"age": 25})
	if !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("error = %v, want ErrEngineClosed", err)
	}
}

func TestExecute_NonExecutableStatus(t *testing.T) {
	archived := ageRangeAtom()
	archived.Status = atom.StatusArchived

	s := storeWith(t, archived)
	e := newTestEngine(t, s, nil)

	_, err := e.Execute(context.Background(), archived, map[string]interface{}{"age": 25})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want ExecutionError for archived atom", err)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFrom(ctx); got != "req-123" {
		t.Errorf("RequestIDFrom = %q, want req-123", got)
	}
	if got := RequestIDFrom(context.Background()); got != "" {
		t.Errorf("RequestIDFrom(empty) = %q, want empty", got)
	}
}

// countingCache wraps a ResultCache and counts lookups.
type countingCache struct {
	inner *store.ResultCache
	gets  atomic.Int64
}

func (c *countingCache) Get(ctx context.Context, key string) (*store.CachedResult, bool) {
	c.gets.Add(1)
	return c.inner.Get(ctx, key)
}

func (c *countingCache) Put(ctx context.Context, key string, value *store.CachedResult, ttl time.Duration) {
	c.inner.Put(ctx, key, value, ttl)
}

// scorerFunc adapts a function to the ModelScorer interface.
type scorerFunc func(ctx context.Context, spec atom.ModelSpec, features map[string]interface{}) (float64, error)

func (f scorerFunc) Score(ctx context.Context, spec atom.ModelSpec, features map[string]interface{}) (float64, error) {
	return f(ctx, spec, features)
}
