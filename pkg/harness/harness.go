// Package harness runs an atom's embedded test cases through the execution
// engine and reports per-case outcomes. Activation requires at least one
// passing run, so the harness is the gate between draft and active atoms.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"eligos-hq/atlas/pkg/atom"
	"eligos-hq/atlas/pkg/engine"
)

// Executor evaluates an atom against an input map. *engine.Engine satisfies
// this.
type Executor interface {
	Execute(ctx context.Context, a *atom.Atom, input map[string]interface{}) (*engine.Result, error)
}

// CaseResult is the outcome of one test case run.
type CaseResult struct {
	// Name is the test case name.
	Name string `json:"name"`

	// Passed reports whether the actual value matched the expectation.
	Passed bool `json:"passed"`

	// Expected is the value the test case declared.
	Expected interface{} `json:"expected"`

	// Actual is the value the execution produced, nil when the run errored.
	Actual interface{} `json:"actual,omitempty"`

	// Error holds the execution error message, if any. An errored run is a
	// failed case.
	Error string `json:"error,omitempty"`

	// ExecutionTimeMs is the wall time of the run.
	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// Report summarizes a harness run over an atom's test cases.
type Report struct {
	AtomCode string        `json:"atom_code"`
	Version  int           `json:"version"`
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Cases    []CaseResult  `json:"cases"`
	Duration time.Duration `json:"-"`
}

// AllPassed reports whether every case passed. An atom with zero test cases
// has not passed.
func (r *Report) AllPassed() bool {
	return r.Total > 0 && r.Failed == 0
}

// Harness executes atom test cases.
type Harness struct {
	executor Executor
	logger   *slog.Logger
}

// New creates a harness over the executor.
func New(executor Executor, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		executor: executor,
		logger:   logger.With("component", "harness"),
	}
}

// Run executes every test case of the atom and returns a report. Execution
// errors fail the case but never abort the run; each case sees a fresh
// execution so cases cannot leak state into each other.
func (h *Harness) Run(ctx context.Context, a *atom.Atom) (*Report, error) {
	if a == nil {
		return nil, fmt.Errorf("atom cannot be nil")
	}

	report := &Report{
		AtomCode: a.Code,
		Version:  a.Version,
		Total:    len(a.TestCases),
		Cases:    make([]CaseResult, 0, len(a.TestCases)),
	}

	start := time.Now()
	for _, tc := range a.TestCases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Cases = append(report.Cases, h.runCase(ctx, a, tc))
	}
	report.Duration = time.Since(start)

	for _, c := range report.Cases {
		if c.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	h.logger.Info("test run completed",
		"atom_code", a.Code,
		"version", a.Version,
		"total", report.Total,
		"passed", report.Passed,
		"failed", report.Failed,
	)
	return report, nil
}

func (h *Harness) runCase(ctx context.Context, a *atom.Atom, tc atom.TestCase) CaseResult {
	cr := CaseResult{Name: tc.Name, Expected: tc.Expected}

	res, err := h.executor.Execute(ctx, a, tc.Input)
	if err != nil {
		cr.Error = err.Error()
		return cr
	}

	cr.Actual = res.Value
	cr.ExecutionTimeMs = res.ExecutionTimeMs
	cr.Passed = valuesEqual(tc.Expected, res.Value)
	if !cr.Passed {
		h.logger.Debug("test case failed",
			"atom_code", a.Code,
			"case", tc.Name,
			"expected", tc.Expected,
			"actual", res.Value,
		)
	}
	return cr
}

// valuesEqual compares an expected test value against an actual result.
// Numeric values compare by magnitude so a YAML-decoded int expectation
// matches a float result.
func valuesEqual(expected, actual interface{}) bool {
	if reflect.DeepEqual(expected, actual) {
		return true
	}
	ef, eok := toFloat(expected)
	af, aok := toFloat(actual)
	if eok && aok {
		return ef == af
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
