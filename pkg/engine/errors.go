package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common sentinel errors
var (
	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrEngineClosed indicates the engine has been shut down.
	ErrEngineClosed = errors.New("engine is closed")
)

// AtomNotFoundError indicates an atom code could not be resolved to an
// executable atom. This is a configuration error: fatal, never retried.
type AtomNotFoundError struct {
	TenantID string
	Code     string
}

// Error returns the error message.
func (e *AtomNotFoundError) Error() string {
	return fmt.Sprintf("atom %q not found or not executable for tenant %q", e.Code, e.TenantID)
}

// DependencyError indicates one or more declared dependencies could not be
// resolved. Retryable once the dependencies are fixed, fatal for this call.
type DependencyError struct {
	Code    string
	Missing []string
}

// Error returns the error message.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("atom %q has unresolvable dependencies: %s",
		e.Code, strings.Join(e.Missing, ", "))
}

// CycleError indicates the dependency graph recurses into an atom already
// on the current resolution path. Fatal; must be fixed by re-authoring.
type CycleError struct {
	Code string
	Path []string
}

// Error returns the error message.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected at atom %q (path: %s)",
		e.Code, strings.Join(e.Path, " -> "))
}

// DepthError indicates the dependency graph exceeds the maximum composition
// depth. Signals a pathological configuration, not a transient fault.
type DepthError struct {
	Code     string
	Depth    int
	MaxDepth int
}

// Error returns the error message.
func (e *DepthError) Error() string {
	return fmt.Sprintf("atom %q exceeds maximum dependency depth %d (reached %d)",
		e.Code, e.MaxDepth, e.Depth)
}

// TimeoutError indicates an atom's evaluation exceeded its configured bound.
// Retryable by the caller with backoff; cached state is unaffected.
type TimeoutError struct {
	Code    string
	Timeout time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("atom %q execution timed out after %v", e.Code, e.Timeout)
}

// MissingParameterError indicates required input parameters were absent.
type MissingParameterError struct {
	Code       string
	Parameters []string
}

// Error returns the error message.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("atom %q is missing required parameters: %s",
		e.Code, strings.Join(e.Parameters, ", "))
}

// ExecutionError wraps an unexpected evaluation failure with the offending
// atom code and elapsed time.
type ExecutionError struct {
	Code    string
	Elapsed time.Duration
	Cause   error
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("atom %q execution failed after %v: %v", e.Code, e.Elapsed, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
