package validator

import (
	"fmt"
	"strings"
)

// ValidationError describes a single rule violation. Violations are values,
// never panics; callers decide whether a non-empty list is fatal.
type ValidationError struct {
	// Field is the atom field the violation concerns (e.g. "code",
	// "logic.conditions[2].operator").
	Field string

	// Message is a human-readable description of the violation.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors is an accumulating list of validation errors.
type Errors []ValidationError

// Add appends a violation for the given field.
func (el *Errors) Add(field, format string, args ...interface{}) {
	*el = append(*el, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Merge appends all violations from another list.
func (el *Errors) Merge(other Errors) {
	*el = append(*el, other...)
}

// Empty reports whether no violations were recorded.
func (el Errors) Empty() bool {
	return len(el) == 0
}

// Messages returns the violations as descriptive strings.
func (el Errors) Messages() []string {
	msgs := make([]string, len(el))
	for i, e := range el {
		msgs[i] = e.Error()
	}
	return msgs
}

// ToError converts the list to a single error, or nil if the list is empty.
// Used when validation gates execution or activation.
func (el Errors) ToError() error {
	switch len(el) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("validation failed: %s", el[0].Error())
	default:
		return fmt.Errorf("validation failed with %d errors: %s",
			len(el), strings.Join(el.Messages(), "; "))
	}
}
