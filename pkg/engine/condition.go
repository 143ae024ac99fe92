package engine

import (
	"fmt"
	"regexp"

	"eligos-hq/atlas/pkg/atom"
)

// placeholderRe matches {{param}} references in template conditions.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// evaluateCondition evaluates one condition against the context and builds
// a human-readable reason for the outcome.
//
// A field absent from both attributes and dependency results satisfies
// IS_NULL; every other operator fails closed to false on a missing field.
func evaluateCondition(cond atom.Condition, ectx *Context) (bool, string, error) {
	actual, found := ectx.Lookup(cond.Field)

	if !found {
		switch cond.Operator {
		case atom.OpIsNull:
			return true, fmt.Sprintf("%s is not present", cond.Field), nil
		case atom.OpIsNotNull:
			return false, fmt.Sprintf("%s is not present", cond.Field), nil
		default:
			return false, fmt.Sprintf("%s is not present in the execution context", cond.Field), nil
		}
	}

	matched, err := evaluateOperator(cond.Operator, actual, cond.Value)
	if err != nil {
		return false, "", fmt.Errorf("condition on %q: %w", cond.Field, err)
	}

	return matched, conditionReason(cond, actual, matched), nil
}

// conditionReason explains a condition outcome. Range checks name the bound
// that was violated so callers can surface "age 70 above maximum 65"-style
// messages.
func conditionReason(cond atom.Condition, actual interface{}, matched bool) string {
	if matched {
		return fmt.Sprintf("%s %v satisfies %s %v", cond.Field, actual, cond.Operator, cond.Value)
	}

	switch cond.Operator {
	case atom.OpBetween:
		if lo, hi, value, ok := betweenBounds(actual, cond.Value); ok {
			if value < lo {
				return fmt.Sprintf("%s %v below minimum %v", cond.Field, actual, trimFloat(lo))
			}
			if value > hi {
				return fmt.Sprintf("%s %v above maximum %v", cond.Field, actual, trimFloat(hi))
			}
		}
		return fmt.Sprintf("%s %v is not a valid operand for BETWEEN %v", cond.Field, actual, cond.Value)

	case atom.OpLessThan, atom.OpLessThanOrEqual:
		return fmt.Sprintf("%s %v above maximum %v", cond.Field, actual, cond.Value)

	case atom.OpGreaterThan, atom.OpGreaterThanOrEqual:
		return fmt.Sprintf("%s %v below minimum %v", cond.Field, actual, cond.Value)

	default:
		return fmt.Sprintf("%s %v does not satisfy %s %v", cond.Field, actual, cond.Operator, cond.Value)
	}
}

// trimFloat renders whole floats without a trailing ".0" fraction.
func trimFloat(f float64) interface{} {
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}
