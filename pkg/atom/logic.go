package atom

import (
	"fmt"
)

// Operator is a comparison operator applied to a condition's field value.
type Operator string

const (
	OpEquals             Operator = "EQUALS"
	OpNotEquals          Operator = "NOT_EQUALS"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThan           Operator = "LESS_THAN"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OpBetween            Operator = "BETWEEN"
	OpNotBetween         Operator = "NOT_BETWEEN"
	OpContains           Operator = "CONTAINS"
	OpStartsWith         Operator = "STARTS_WITH"
	OpEndsWith           Operator = "ENDS_WITH"
	OpMatches            Operator = "MATCHES"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT_IN"
	OpIsNull             Operator = "IS_NULL"
	OpIsNotNull          Operator = "IS_NOT_NULL"
)

// Valid reports whether op is a known comparison operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpBetween, OpNotBetween,
		OpContains, OpStartsWith, OpEndsWith, OpMatches,
		OpIn, OpNotIn, OpIsNull, OpIsNotNull:
		return true
	default:
		return false
	}
}

// LogicalOperator combines boolean operands.
type LogicalOperator string

const (
	LogicalAnd  LogicalOperator = "AND"
	LogicalOr   LogicalOperator = "OR"
	LogicalNot  LogicalOperator = "NOT"
	LogicalXor  LogicalOperator = "XOR"
	LogicalNand LogicalOperator = "NAND"
	LogicalNor  LogicalOperator = "NOR"
)

// Valid reports whether op is a known logical operator.
func (op LogicalOperator) Valid() bool {
	switch op {
	case LogicalAnd, LogicalOr, LogicalNot, LogicalXor, LogicalNand, LogicalNor:
		return true
	default:
		return false
	}
}

// ModelType identifies the class of a machine-learning model.
type ModelType string

const (
	ModelClassification ModelType = "classification"
	ModelRegression     ModelType = "regression"
	ModelClustering     ModelType = "clustering"
	ModelPrediction     ModelType = "prediction"
)

// Valid reports whether t is a known model type.
func (t ModelType) Valid() bool {
	switch t {
	case ModelClassification, ModelRegression, ModelClustering, ModelPrediction:
		return true
	default:
		return false
	}
}

// Condition is a single field/operator/value comparison evaluated against
// the execution context.
type Condition struct {
	// Field names an input attribute or a dependency atom code. Dot
	// notation descends into nested map attributes.
	Field string `yaml:"field" json:"field"`

	// Operator is the comparison to apply.
	Operator Operator `yaml:"operator" json:"operator"`

	// Value is the expected operand. For BETWEEN/NOT_BETWEEN it is a
	// two-element list; for IN/NOT_IN a list; ignored for null checks.
	Value interface{} `yaml:"value,omitempty" json:"value,omitempty"`
}

// SimpleLogic wraps the single condition of a simple atom.
type SimpleLogic struct {
	Condition Condition `yaml:"condition" json:"condition"`
}

// ComplexLogic combines multiple independent conditions with a logical
// operator. Conditions are evaluated independently; there is no
// short-circuit ordering guarantee between them.
type ComplexLogic struct {
	Conditions []Condition     `yaml:"conditions" json:"conditions"`
	Operator   LogicalOperator `yaml:"operator" json:"operator"`
}

// CompositeLogic executes named child atoms and combines their boolean
// results with a logical operator. Child executions are full engine
// executions and therefore cache-eligible.
type CompositeLogic struct {
	ChildAtoms []string        `yaml:"child_atoms" json:"child_atoms"`
	Operator   LogicalOperator `yaml:"operator" json:"operator"`
}

// TemplateParameter declares a substitutable value in a template atom.
type TemplateParameter struct {
	Name    string      `yaml:"name" json:"name"`
	Default interface{} `yaml:"default,omitempty" json:"default,omitempty"`
}

// TemplateLogic is a condition template whose field and value may contain
// {{param}} placeholders. Substitution produces a simple-shaped condition
// which is then evaluated normally.
type TemplateLogic struct {
	Template   Condition           `yaml:"template" json:"template"`
	Parameters []TemplateParameter `yaml:"parameters" json:"parameters"`
}

// ModelSpec describes the model a machine-learning atom dispatches to.
type ModelSpec struct {
	// Type selects the model-type handler.
	Type ModelType `yaml:"type" json:"type"`

	// Version pins the model version.
	Version string `yaml:"version" json:"version"`

	// Threshold is the eligibility cutoff applied to the model score.
	// Zero means the engine default of 0.5.
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Features optionally names the input attributes fed to the model.
	Features []string `yaml:"features,omitempty" json:"features,omitempty"`
}

// MLLogic wraps the model descriptor of a machine-learning atom.
type MLLogic struct {
	Model ModelSpec `yaml:"model" json:"model"`
}

// Logic is the tagged union of atom logic payloads. Exactly one variant is
// non-nil, matching the owning atom's type. Parsing validates the shape once
// so evaluation never re-inspects untyped maps.
type Logic struct {
	Simple    *SimpleLogic    `yaml:"simple,omitempty" json:"simple,omitempty"`
	Complex   *ComplexLogic   `yaml:"complex,omitempty" json:"complex,omitempty"`
	Composite *CompositeLogic `yaml:"composite,omitempty" json:"composite,omitempty"`
	Template  *TemplateLogic  `yaml:"template,omitempty" json:"template,omitempty"`
	ML        *MLLogic        `yaml:"machine_learning,omitempty" json:"machine_learning,omitempty"`
}

// Variant returns the atom type the populated payload corresponds to, or an
// error if zero or multiple variants are set.
func (l *Logic) Variant() (Type, error) {
	var (
		typ   Type
		count int
	)
	if l.Simple != nil {
		typ, count = TypeSimple, count+1
	}
	if l.Complex != nil {
		typ, count = TypeComplex, count+1
	}
	if l.Composite != nil {
		typ, count = TypeComposite, count+1
	}
	if l.Template != nil {
		typ, count = TypeTemplate, count+1
	}
	if l.ML != nil {
		typ, count = TypeMachineLearning, count+1
	}

	switch count {
	case 0:
		return "", fmt.Errorf("logic definition is empty")
	case 1:
		return typ, nil
	default:
		return "", fmt.Errorf("logic definition has %d payload variants, want exactly one", count)
	}
}

// Matches reports whether the populated payload variant matches the given
// atom type.
func (l *Logic) Matches(t Type) bool {
	variant, err := l.Variant()
	return err == nil && variant == t
}
