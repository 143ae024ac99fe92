package engine

import (
	"testing"

	"eligos-hq/atlas/pkg/atom"
)

// TestEvaluateOperator_Comparisons tests comparison operators including the
// fail-closed numeric coercion contract.
func TestEvaluateOperator_Comparisons(t *testing.T) {
	tests := []struct {
		name     string
		op       atom.Operator
		actual   interface{}
		expected interface{}
		want     bool
		wantErr  bool
	}{
		{
			name:     "equals - string",
			op:       atom.OpEquals,
			actual:   "active",
			expected: "active",
			want:     true,
		},
		{
			name:     "equals - int vs float",
			op:       atom.OpEquals,
			actual:   5,
			expected: float64(5),
			want:     true,
		},
		{
			name:     "equals - numeric string vs number",
			op:       atom.OpEquals,
			actual:   "5",
			expected: 5,
			want:     true,
		},
		{
			name:     "not equals",
			op:       atom.OpNotEquals,
			actual:   "closed",
			expected: "active",
			want:     true,
		},
		{
			name:     "greater than - true",
			op:       atom.OpGreaterThan,
			actual:   1000,
			expected: 500,
			want:     true,
		},
		{
			name:     "greater than - equal is false",
			op:       atom.OpGreaterThan,
			actual:   500,
			expected: 500,
			want:     false,
		},
		{
			name:     "greater than - numeric string coerces",
			op:       atom.OpGreaterThan,
			actual:   "1000",
			expected: 500,
			want:     true,
		},
		{
			name:     "greater than - non-numeric fails closed",
			op:       atom.OpGreaterThan,
			actual:   "abc",
			expected: 500,
			want:     false,
		},
		{
			name:     "greater than - non-numeric expected fails closed",
			op:       atom.OpGreaterThan,
			actual:   1000,
			expected: map[string]interface{}{"x": 1},
			want:     false,
		},
		{
			name:     "less than or equal",
			op:       atom.OpLessThanOrEqual,
			actual:   65,
			expected: 65,
			want:     true,
		},
		{
			name:     "between - inclusive bounds",
			op:       atom.OpBetween,
			actual:   18,
			expected: []interface{}{18, 65},
			want:     true,
		},
		{
			name:     "between - above",
			op:       atom.OpBetween,
			actual:   70,
			expected: []interface{}{18, 65},
			want:     false,
		},
		{
			name:     "between - malformed bounds fail closed",
			op:       atom.OpBetween,
			actual:   30,
			expected: []interface{}{18},
			want:     false,
		},
		{
			name:     "not between",
			op:       atom.OpNotBetween,
			actual:   70,
			expected: []interface{}{18, 65},
			want:     true,
		},
		{
			name:     "not between - malformed bounds still fail closed",
			op:       atom.OpNotBetween,
			actual:   70,
			expected: "18-65",
			want:     false,
		},
		{
			name:     "contains",
			op:       atom.OpContains,
			actual:   "premium-gold",
			expected: "gold",
			want:     true,
		},
		{
			name:     "starts with",
			op:       atom.OpStartsWith,
			actual:   "premium-gold",
			expected: "premium",
			want:     true,
		},
		{
			name:     "ends with",
			op:       atom.OpEndsWith,
			actual:   "premium-gold",
			expected: "gold",
			want:     true,
		},
		{
			name:     "matches",
			op:       atom.OpMatches,
			actual:   "AB-1234",
			expected: `^[A-Z]{2}-\d{4}$`,
			want:     true,
		},
		{
			name:     "matches - invalid pattern errors",
			op:       atom.OpMatches,
			actual:   "AB-1234",
			expected: `([`,
			wantErr:  true,
		},
		{
			name:     "matches - non-string pattern errors",
			op:       atom.OpMatches,
			actual:   "AB-1234",
			expected: 42,
			wantErr:  true,
		},
		{
			name:     "in - member",
			op:       atom.OpIn,
			actual:   "US",
			expected: []interface{}{"US", "CA", "MX"},
			want:     true,
		},
		{
			name:     "in - numeric member with loose equality",
			op:       atom.OpIn,
			actual:   5,
			expected: []interface{}{float64(5), float64(10)},
			want:     true,
		},
		{
			name:     "in - non-list errors",
			op:       atom.OpIn,
			actual:   "US",
			expected: "US",
			wantErr:  true,
		},
		{
			name:     "not in",
			op:       atom.OpNotIn,
			actual:   "BR",
			expected: []interface{}{"US", "CA"},
			want:     true,
		},
		{
			name:   "is null - nil",
			op:     atom.OpIsNull,
			actual: nil,
			want:   true,
		},
		{
			name:   "is not null",
			op:     atom.OpIsNotNull,
			actual: "anything",
			want:   true,
		},
		{
			name:    "unknown operator errors",
			op:      atom.Operator("FUZZY"),
			actual:  1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateOperator(tt.op, tt.actual, tt.expected)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("evaluateOperator(%s) expected error, got %v", tt.op, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("evaluateOperator(%s) unexpected error: %v", tt.op, err)
			}
			if got != tt.want {
				t.Errorf("evaluateOperator(%s, %v, %v) = %v, want %v",
					tt.op, tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

func TestEvaluateLogical(t *testing.T) {
	tests := []struct {
		name     string
		op       atom.LogicalOperator
		operands []bool
		want     bool
		wantErr  bool
	}{
		{name: "and - all true", op: atom.LogicalAnd, operands: []bool{true, true, true}, want: true},
		{name: "and - one false", op: atom.LogicalAnd, operands: []bool{true, false, true}, want: false},
		{name: "or - one true", op: atom.LogicalOr, operands: []bool{false, true}, want: true},
		{name: "or - none true", op: atom.LogicalOr, operands: []bool{false, false}, want: false},
		{name: "not - single operand", op: atom.LogicalNot, operands: []bool{false}, want: true},
		{name: "not - two operands errors", op: atom.LogicalNot, operands: []bool{true, false}, wantErr: true},
		{name: "not - zero operands errors", op: atom.LogicalNot, operands: nil, wantErr: true},
		{name: "xor - exactly one true", op: atom.LogicalXor, operands: []bool{false, true, false}, want: true},
		{name: "xor - two true is false", op: atom.LogicalXor, operands: []bool{true, true, false}, want: false},
		{name: "nand", op: atom.LogicalNand, operands: []bool{true, true}, want: false},
		{name: "nor", op: atom.LogicalNor, operands: []bool{false, false}, want: true},
		{name: "unknown operator errors", op: atom.LogicalOperator("IMPLIES"), operands: []bool{true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateLogical(tt.op, tt.operands)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("evaluateLogical(%s) expected error, got %v", tt.op, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("evaluateLogical(%s) unexpected error: %v", tt.op, err)
			}
			if got != tt.want {
				t.Errorf("evaluateLogical(%s, %v) = %v, want %v", tt.op, tt.operands, got, tt.want)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{name: "true bool", value: true, want: true},
		{name: "false bool", value: false, want: false},
		{name: "nonzero number", value: 0.7, want: true},
		{name: "zero number", value: 0, want: false},
		{name: "non-blank string", value: "yes", want: true},
		{name: "blank string", value: "   ", want: false},
		{name: "nil", value: nil, want: false},
		{name: "non-nil map", value: map[string]interface{}{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truthy(tt.value); got != tt.want {
				t.Errorf("truthy(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestToFloat(t *testing.T) {
	if _, ok := toFloat("not a number"); ok {
		t.Error("toFloat should reject non-numeric strings")
	}
	if v, ok := toFloat(" 42.5 "); !ok || v != 42.5 {
		t.Errorf("toFloat(\" 42.5 \") = %v, %v; want 42.5, true", v, ok)
	}
	if v, ok := toFloat(int64(7)); !ok || v != 7 {
		t.Errorf("toFloat(int64(7)) = %v, %v; want 7, true", v, ok)
	}
	if _, ok := toFloat([]int{1}); ok {
		t.Error("toFloat should reject slices")
	}
}
