package engine

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"eligos-hq/atlas/pkg/atom"
)

// evaluateOperator evaluates a comparison operator between the actual field
// value and the expected operand.
//
// Numeric comparisons are fail-closed: a value that cannot be coerced to a
// number resolves the comparison to false rather than raising an error.
// This masks genuinely malformed input, but it is the contract callers
// depend on for admit/deny decisions.
func evaluateOperator(op atom.Operator, actual, expected interface{}) (bool, error) {
	switch op {
	case atom.OpEquals:
		return looseEqual(actual, expected), nil

	case atom.OpNotEquals:
		return !looseEqual(actual, expected), nil

	case atom.OpGreaterThan:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a > b }), nil

	case atom.OpGreaterThanOrEqual:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a >= b }), nil

	case atom.OpLessThan:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a < b }), nil

	case atom.OpLessThanOrEqual:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a <= b }), nil

	case atom.OpBetween:
		return evaluateBetween(actual, expected), nil

	case atom.OpNotBetween:
		lo, hi, value, ok := betweenBounds(actual, expected)
		if !ok {
			return false, nil // fail closed, same as BETWEEN
		}
		return value < lo || value > hi, nil

	case atom.OpContains:
		return strings.Contains(stringify(actual), stringify(expected)), nil

	case atom.OpStartsWith:
		return strings.HasPrefix(stringify(actual), stringify(expected)), nil

	case atom.OpEndsWith:
		return strings.HasSuffix(stringify(actual), stringify(expected)), nil

	case atom.OpMatches:
		pattern, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("MATCHES requires a string pattern, got %T", expected)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		return re.MatchString(stringify(actual)), nil

	case atom.OpIn:
		return evaluateIn(actual, expected)

	case atom.OpNotIn:
		in, err := evaluateIn(actual, expected)
		return !in, err

	case atom.OpIsNull:
		return isNil(actual), nil

	case atom.OpIsNotNull:
		return !isNil(actual), nil

	default:
		return false, fmt.Errorf("unknown operator: %q", op)
	}
}

// evaluateLogical combines boolean operands with a logical operator.
// NOT requires exactly one operand; XOR is true when exactly one operand is
// true.
func evaluateLogical(op atom.LogicalOperator, operands []bool) (bool, error) {
	switch op {
	case atom.LogicalAnd, atom.LogicalNand:
		all := true
		for _, v := range operands {
			if !v {
				all = false
				break
			}
		}
		if op == atom.LogicalNand {
			return !all, nil
		}
		return all, nil

	case atom.LogicalOr, atom.LogicalNor:
		any := false
		for _, v := range operands {
			if v {
				any = true
				break
			}
		}
		if op == atom.LogicalNor {
			return !any, nil
		}
		return any, nil

	case atom.LogicalNot:
		if len(operands) != 1 {
			return false, fmt.Errorf("NOT requires exactly one operand, got %d", len(operands))
		}
		return !operands[0], nil

	case atom.LogicalXor:
		trueCount := 0
		for _, v := range operands {
			if v {
				trueCount++
			}
		}
		return trueCount == 1, nil

	default:
		return false, fmt.Errorf("unknown logical operator: %q", op)
	}
}

// truthy coerces a non-boolean operand to a boolean: numbers are true when
// nonzero, strings when non-blank, other values when non-nil.
func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.TrimSpace(val) != ""
	default:
		if n, ok := toFloat(v); ok {
			return n != 0
		}
		return !isNil(v)
	}
}

// looseEqual compares two values, preferring numeric equality when both
// sides coerce to numbers (so int 5 equals float64 5.0 equals "5").
func looseEqual(actual, expected interface{}) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	if a, ok := toFloat(actual); ok {
		if b, ok := toFloat(expected); ok {
			return a == b
		}
	}
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	// Fall back to string comparison so "US" matches an interned value of a
	// different concrete string-like type.
	aStr, aOK := actual.(string)
	bStr, bOK := expected.(string)
	return aOK && bOK && aStr == bStr
}

// compareNumeric applies cmp to both values coerced to float64, failing
// closed to false when either side does not coerce.
func compareNumeric(actual, expected interface{}, cmp func(a, b float64) bool) bool {
	a, ok := toFloat(actual)
	if !ok {
		return false
	}
	b, ok := toFloat(expected)
	if !ok {
		return false
	}
	return cmp(a, b)
}

// evaluateBetween checks lo <= actual <= hi where expected is [lo, hi].
func evaluateBetween(actual, expected interface{}) bool {
	lo, hi, value, ok := betweenBounds(actual, expected)
	if !ok {
		return false
	}
	return value >= lo && value <= hi
}

// betweenBounds coerces the BETWEEN operands. ok is false when the expected
// value is not a two-element list or any coercion fails.
func betweenBounds(actual, expected interface{}) (lo, hi, value float64, ok bool) {
	bounds, isList := asList(expected)
	if !isList || len(bounds) != 2 {
		return 0, 0, 0, false
	}
	lo, okLo := toFloat(bounds[0])
	hi, okHi := toFloat(bounds[1])
	value, okVal := toFloat(actual)
	if !okLo || !okHi || !okVal {
		return 0, 0, 0, false
	}
	return lo, hi, value, true
}

// evaluateIn checks list membership using loose equality.
func evaluateIn(actual, expected interface{}) (bool, error) {
	list, ok := asList(expected)
	if !ok {
		return false, fmt.Errorf("IN requires a list operand, got %T", expected)
	}
	for _, elem := range list {
		if looseEqual(actual, elem) {
			return true, nil
		}
	}
	return false, nil
}

// toFloat coerces a value to float64: numbers as-is, strings parsed as
// doubles, everything else fails.
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// stringify converts any value to its string form for string operators.
func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// asList normalizes a slice-like value to []interface{}.
func asList(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]interface{}); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// isNil reports whether v is nil, including typed nils behind interfaces.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
