package atom

import (
	"time"
)

// Type classifies an atom and determines its evaluation strategy and the
// shape of its logic payload.
type Type string

const (
	// TypeSimple evaluates a single field/operator/value condition.
	TypeSimple Type = "simple"

	// TypeComplex evaluates a list of conditions combined with a logical operator.
	TypeComplex Type = "complex"

	// TypeComposite executes named child atoms and combines their results.
	TypeComposite Type = "composite"

	// TypeTemplate substitutes parameters into a condition template and
	// evaluates the result as a simple atom.
	TypeTemplate Type = "template"

	// TypeMachineLearning dispatches to a pluggable model scorer.
	TypeMachineLearning Type = "machine_learning"
)

// Valid reports whether t is a known atom type.
func (t Type) Valid() bool {
	switch t {
	case TypeSimple, TypeComplex, TypeComposite, TypeTemplate, TypeMachineLearning:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of an atom.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusTesting    Status = "testing"
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusArchived   Status = "archived"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusTesting, StatusActive, StatusDeprecated, StatusArchived:
		return true
	default:
		return false
	}
}

// Executable reports whether an atom in this status may be executed.
// Only active and testing atoms are executable.
func (s Status) Executable() bool {
	return s == StatusActive || s == StatusTesting
}

// ParameterType is the declared type of an input parameter.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamInteger ParameterType = "integer"
	ParamLong    ParameterType = "long"
	ParamDouble  ParameterType = "double"
	ParamBoolean ParameterType = "boolean"
	ParamList    ParameterType = "list"
	ParamMap     ParameterType = "map"
)

// Valid reports whether p is a known parameter type.
func (p ParameterType) Valid() bool {
	switch p {
	case ParamString, ParamInteger, ParamLong, ParamDouble, ParamBoolean, ParamList, ParamMap:
		return true
	default:
		return false
	}
}

// Parameter declares an input attribute an atom expects in its execution
// context. Required parameters missing at execution time fail the call
// before any evaluation happens.
type Parameter struct {
	// Name is the attribute key in the execution input.
	Name string `yaml:"name" json:"name"`

	// Type is the expected value type.
	Type ParameterType `yaml:"type" json:"type"`

	// Required indicates the parameter must be present in the input.
	Required bool `yaml:"required" json:"required"`

	// Description documents the parameter for atom authors.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// TestCase is a declared input/expected pair replayed by the test harness.
// Test cases never participate in production execution.
type TestCase struct {
	// Name identifies the case in harness reports.
	Name string `yaml:"name" json:"name"`

	// Input has the same shape as execution context attributes.
	Input map[string]interface{} `yaml:"input" json:"input"`

	// Expected is the value the execution result must structurally equal.
	Expected interface{} `yaml:"expected" json:"expected"`
}

// Stats holds execution statistics for an atom. Stats are mutated after
// execution by the background updater and are never an input to evaluation.
type Stats struct {
	// ExecutionCount is the total number of executions recorded.
	ExecutionCount int64 `yaml:"execution_count" json:"execution_count"`

	// AvgExecutionTimeMs is the rolling average execution time.
	AvgExecutionTimeMs float64 `yaml:"avg_execution_time_ms" json:"avg_execution_time_ms"`

	// SuccessRate is the fraction of executions that succeeded, in [0,1].
	SuccessRate float64 `yaml:"success_rate" json:"success_rate"`

	// ErrorRate is the fraction of executions that failed, in [0,1].
	ErrorRate float64 `yaml:"error_rate" json:"error_rate"`

	// LastExecutedAt is when the atom last executed.
	LastExecutedAt time.Time `yaml:"last_executed_at" json:"last_executed_at"`
}

// Atom is a single unit of reusable eligibility logic. Atoms are immutable
// once loaded; a change in logic is published as a new version.
type Atom struct {
	// ID is the storage identifier of this atom version.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// TenantID scopes the atom to a tenant. Codes are unique per tenant.
	TenantID string `yaml:"tenant_id" json:"tenant_id"`

	// Code is the stable, tenant-scoped identifier (uppercase snake,
	// e.g. "AGE_RANGE_18_65"). Versions of the same logic share a code.
	Code string `yaml:"code" json:"code"`

	// Version increases strictly per code and is never reused.
	Version int `yaml:"version" json:"version"`

	// Name is the human-readable display name.
	Name string `yaml:"name" json:"name"`

	// Description explains what the atom decides.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Category is an informational grouping (e.g. "demographic", "consent").
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// Type determines the evaluation strategy and logic payload shape.
	Type Type `yaml:"type" json:"type"`

	// Status is the lifecycle state; only active/testing atoms execute.
	Status Status `yaml:"status" json:"status"`

	// Priority orders atoms for presentation, in [1,10].
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`

	// Tags are lowercase kebab-case labels.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Logic is the typed payload evaluated at execution time.
	Logic *Logic `yaml:"logic" json:"logic"`

	// Dependencies lists atom codes this atom's logic may reference.
	// An atom must not depend on its own code.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// InputParameters declares the input schema checked before execution.
	InputParameters []Parameter `yaml:"input_parameters,omitempty" json:"input_parameters,omitempty"`

	// CacheEnabled enables result caching by fingerprint.
	CacheEnabled bool `yaml:"cache_enabled" json:"cache_enabled"`

	// CacheTTLSeconds is the result cache TTL. Zero means the engine default.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds,omitempty" json:"cache_ttl_seconds,omitempty"`

	// ExpectedExecutionTimeMs bounds evaluation time. Zero means the engine
	// default timeout.
	ExpectedExecutionTimeMs int `yaml:"expected_execution_time_ms,omitempty" json:"expected_execution_time_ms,omitempty"`

	// TestCases are replayed by the test harness.
	TestCases []TestCase `yaml:"test_cases,omitempty" json:"test_cases,omitempty"`

	// Documentation and UsageExample are required for activation.
	Documentation string `yaml:"documentation,omitempty" json:"documentation,omitempty"`
	UsageExample  string `yaml:"usage_example,omitempty" json:"usage_example,omitempty"`

	// Stats are maintained by the background statistics updater.
	Stats Stats `yaml:"stats,omitempty" json:"stats,omitempty"`

	// CreatedAt and UpdatedAt are storage timestamps.
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Executable reports whether this atom may be executed.
func (a *Atom) Executable() bool {
	return a.Status.Executable()
}

// DirectDependencies returns the de-duplicated set of atom codes this atom
// requires before its own logic can evaluate: the declared dependency set
// plus, for composite atoms, the child atom codes.
func (a *Atom) DirectDependencies() []string {
	seen := make(map[string]bool, len(a.Dependencies))
	var deps []string
	add := func(code string) {
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		deps = append(deps, code)
	}

	for _, code := range a.Dependencies {
		add(code)
	}
	if a.Type == TypeComposite && a.Logic != nil && a.Logic.Composite != nil {
		for _, code := range a.Logic.Composite.ChildAtoms {
			add(code)
		}
	}
	return deps
}
