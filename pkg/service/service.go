// Package service is the application-facing entry point over the engine,
// validator, harness and stores. It assigns request IDs, translates engine
// errors into stable response codes, and owns the atom lifecycle
// transitions (draft, testing, active).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"eligos-hq/atlas/pkg/atom"
	"eligos-hq/atlas/pkg/atom/validator"
	"eligos-hq/atlas/pkg/engine"
	"eligos-hq/atlas/pkg/harness"
	"eligos-hq/atlas/pkg/store"
)

// Stable error codes returned to API callers.
const (
	CodeAtomNotFound      = "ATOM_NOT_FOUND"
	CodeMissingDependency = "MISSING_DEPENDENCY"
	CodeCircularReference = "CIRCULAR_REFERENCE"
	CodeDepthExceeded     = "DEPTH_EXCEEDED"
	CodeTimeout           = "EXECUTION_TIMEOUT"
	CodeMissingParameter  = "MISSING_PARAMETER"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeExecutionFailed   = "EXECUTION_FAILED"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error is the stable, API-shaped error the service returns. Details carry
// machine-readable context keyed by the code, e.g. "missing_dependencies"
// for MISSING_DEPENDENCY or "timeout_ms" for EXECUTION_TIMEOUT.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying engine error.
func (e *Error) Unwrap() error { return e.cause }

// ExecutionResponse is the outcome of an execution request.
type ExecutionResponse struct {
	RequestID       string      `json:"request_id"`
	AtomCode        string      `json:"atom_code"`
	Version         int         `json:"version"`
	Eligible        bool        `json:"eligible"`
	Value           interface{} `json:"value"`
	Reason          string      `json:"reason,omitempty"`
	CacheHit        bool        `json:"cache_hit"`
	ExecutionTimeMs int64       `json:"execution_time_ms"`
}

// ValidationResponse is the outcome of a validation request.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Service wires the engine, validator and harness behind one entry point.
type Service struct {
	atoms     store.AtomStore
	engine    *engine.Engine
	validator *validator.Validator
	harness   *harness.Harness
	logger    *slog.Logger
}

// New creates the service over an engine and its atom store.
func New(atoms store.AtomStore, eng *engine.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		atoms:     atoms,
		engine:    eng,
		validator: validator.New(atoms),
		harness:   harness.New(eng, logger),
		logger:    logger.With("component", "service"),
	}
}

// Execute evaluates the atom version with the given storage ID.
func (s *Service) Execute(ctx context.Context, tenantID, atomID string, input map[string]interface{}) (*ExecutionResponse, error) {
	a, err := s.atoms.FindByID(ctx, tenantID, atomID)
	if err != nil {
		return nil, s.translate(err)
	}
	if a == nil {
		return nil, &Error{
			Code:    CodeAtomNotFound,
			Message: fmt.Sprintf("atom %q not found for tenant %q", atomID, tenantID),
		}
	}
	return s.run(ctx, a, input)
}

// ExecuteByCode evaluates the latest executable version of the atom with
// the given code.
func (s *Service) ExecuteByCode(ctx context.Context, tenantID, code string, input map[string]interface{}) (*ExecutionResponse, error) {
	a, err := s.atoms.FindByCode(ctx, tenantID, code)
	if err != nil {
		return nil, s.translate(err)
	}
	if a == nil {
		return nil, &Error{
			Code:    CodeAtomNotFound,
			Message: fmt.Sprintf("no executable version of atom %q for tenant %q", code, tenantID),
			Details: map[string]interface{}{"atom_code": code},
		}
	}
	return s.run(ctx, a, input)
}

func (s *Service) run(ctx context.Context, a *atom.Atom, input map[string]interface{}) (*ExecutionResponse, error) {
	requestID := engine.RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = engine.ContextWithRequestID(ctx, requestID)
	}

	res, err := s.engine.Execute(ctx, a, input)
	if err != nil {
		s.logger.Warn("execution failed",
			"request_id", requestID,
			"tenant_id", a.TenantID,
			"atom_code", a.Code,
			"error", err,
		)
		return nil, s.translate(err)
	}

	return &ExecutionResponse{
		RequestID:       requestID,
		AtomCode:        a.Code,
		Version:         a.Version,
		Eligible:        res.Eligible,
		Value:           res.Value,
		Reason:          res.Reason,
		CacheHit:        res.CacheHit,
		ExecutionTimeMs: res.ExecutionTimeMs,
	}, nil
}

// Validate runs structural validation on the atom definition.
func (s *Service) Validate(ctx context.Context, a *atom.Atom) (*ValidationResponse, error) {
	if a == nil {
		return nil, &Error{Code: CodeValidationFailed, Message: "atom cannot be nil"}
	}
	errs := s.validator.Validate(a)
	return &ValidationResponse{
		Valid:  errs.Empty(),
		Errors: errs.Messages(),
	}, nil
}

// ValidateForActivation checks whether the atom definition is ready to be
// activated: structurally valid, documented, tested, with all dependencies
// executable and acyclic.
func (s *Service) ValidateForActivation(ctx context.Context, a *atom.Atom) (*ValidationResponse, error) {
	if a == nil {
		return nil, &Error{Code: CodeValidationFailed, Message: "atom cannot be nil"}
	}
	errs := s.validator.ValidateForActivation(ctx, a)
	return &ValidationResponse{
		Valid:  errs.Empty(),
		Errors: errs.Messages(),
	}, nil
}

// Test runs the atom's embedded test cases through the engine.
func (s *Service) Test(ctx context.Context, a *atom.Atom) (*harness.Report, error) {
	report, err := s.harness.Run(ctx, a)
	if err != nil {
		return nil, s.translate(err)
	}
	return report, nil
}

// Save validates and persists a new atom version.
func (s *Service) Save(ctx context.Context, a *atom.Atom) error {
	if a == nil {
		return &Error{Code: CodeValidationFailed, Message: "atom cannot be nil"}
	}
	if errs := s.validator.Validate(a); !errs.Empty() {
		return &Error{
			Code:    CodeValidationFailed,
			Message: fmt.Sprintf("atom %q failed validation", a.Code),
			Details: map[string]interface{}{"errors": errs.Messages()},
		}
	}
	if err := s.atoms.Save(ctx, a); err != nil {
		return s.translate(err)
	}
	return nil
}

// translate maps engine and storage errors onto stable response codes.
func (s *Service) translate(err error) *Error {
	var (
		notFound *engine.AtomNotFoundError
		depErr   *engine.DependencyError
		cycle    *engine.CycleError
		depth    *engine.DepthError
		timeout  *engine.TimeoutError
		missing  *engine.MissingParameterError
		execErr  *engine.ExecutionError
	)

	switch {
	case errors.As(err, &notFound):
		return &Error{
			Code:    CodeAtomNotFound,
			Message: notFound.Error(),
			Details: map[string]interface{}{"atom_code": notFound.Code},
			cause:   err,
		}
	case errors.As(err, &depErr):
		return &Error{
			Code:    CodeMissingDependency,
			Message: depErr.Error(),
			Details: map[string]interface{}{
				"atom_code":            depErr.Code,
				"missing_dependencies": depErr.Missing,
			},
			cause: err,
		}
	case errors.As(err, &cycle):
		return &Error{
			Code:    CodeCircularReference,
			Message: cycle.Error(),
			Details: map[string]interface{}{
				"atom_code": cycle.Code,
				"path":      cycle.Path,
			},
			cause: err,
		}
	case errors.As(err, &depth):
		return &Error{
			Code:    CodeDepthExceeded,
			Message: depth.Error(),
			Details: map[string]interface{}{
				"atom_code": depth.Code,
				"depth":     depth.Depth,
				"max_depth": depth.MaxDepth,
			},
			cause: err,
		}
	case errors.As(err, &timeout):
		return &Error{
			Code:    CodeTimeout,
			Message: timeout.Error(),
			Details: map[string]interface{}{
				"atom_code":  timeout.Code,
				"timeout_ms": timeout.Timeout.Milliseconds(),
			},
			cause: err,
		}
	case errors.As(err, &missing):
		return &Error{
			Code:    CodeMissingParameter,
			Message: missing.Error(),
			Details: map[string]interface{}{
				"atom_code":          missing.Code,
				"missing_parameters": missing.Parameters,
			},
			cause: err,
		}
	case errors.As(err, &execErr):
		return &Error{
			Code:    CodeExecutionFailed,
			Message: execErr.Error(),
			Details: map[string]interface{}{"atom_code": execErr.Code},
			cause:   err,
		}
	case errors.Is(err, engine.ErrEngineClosed):
		return &Error{Code: CodeUnavailable, Message: err.Error(), cause: err}
	default:
		return &Error{Code: CodeInternal, Message: err.Error(), cause: err}
	}
}
