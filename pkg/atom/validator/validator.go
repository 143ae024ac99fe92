// Package validator performs structural and semantic validation of atom
// definitions. Validation is non-throwing: every pass returns a list of
// descriptive violations and callers decide whether a non-empty list is
// fatal (it is when validation gates execution or activation).
package validator

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"eligos-hq/atlas/pkg/atom"
	"eligos-hq/atlas/pkg/store"
)

var (
	// codePattern validates atom codes (uppercase snake, e.g. "AGE_RANGE").
	codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

	// tagPattern validates tags (lowercase kebab, e.g. "marketing-consent").
	tagPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

	// placeholderPattern finds {{param}} references in template conditions.
	placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

const (
	minCodeLength        = 3
	maxCodeLength        = 100
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxTagLength         = 50
	maxTags              = 20
	maxConditions        = 20
	maxDependencies      = 10

	// cyclePrecheckDepth bounds the dependency walk performed during
	// validation. Full-depth cycle detection happens again at resolution
	// time; the pre-check only catches shallow misconfiguration early.
	cyclePrecheckDepth = 5
)

// Validator validates atom definitions. The store is optional: when nil,
// dependency-resolution checks (activation readiness, cycle pre-check) are
// skipped so definitions can be validated offline.
type Validator struct {
	atoms store.AtomStore
}

// New creates a validator backed by the given atom store. Pass nil for
// offline structural validation only.
func New(atoms store.AtomStore) *Validator {
	return &Validator{atoms: atoms}
}

// Validate runs structural validation on an atom. An empty list means the
// atom is structurally valid.
func (v *Validator) Validate(a *atom.Atom) Errors {
	var errs Errors

	if a == nil {
		errs.Add("", "atom is nil")
		return errs
	}

	v.validateIdentity(a, &errs)
	v.validateClassification(a, &errs)
	v.validateDependencies(a, &errs)
	v.validateLogic(a, &errs)
	v.validateInputParameters(a, &errs)

	return errs
}

// ValidateForActivation runs structural validation plus the stricter
// activation-readiness checks: resolvable, executable dependencies; at
// least one declared test case; non-empty documentation and usage example.
func (v *Validator) ValidateForActivation(ctx context.Context, a *atom.Atom) Errors {
	errs := v.Validate(a)
	if a == nil {
		return errs
	}

	if len(a.TestCases) == 0 {
		errs.Add("test_cases", "activation requires at least one declared test case")
	}
	if strings.TrimSpace(a.Documentation) == "" {
		errs.Add("documentation", "activation requires non-empty documentation")
	}
	if strings.TrimSpace(a.UsageExample) == "" {
		errs.Add("usage_example", "activation requires a non-empty usage example")
	}

	if v.atoms != nil {
		v.validateDependencyReadiness(ctx, a, &errs)
		v.precheckCycles(ctx, a, &errs)
	}

	return errs
}

// ValidateForExecution checks the execution input against the atom's
// declared parameter schema: required parameters present, values
// type-conformant.
func (v *Validator) ValidateForExecution(a *atom.Atom, input map[string]interface{}) Errors {
	var errs Errors
	if a == nil {
		errs.Add("", "atom is nil")
		return errs
	}

	for _, param := range a.InputParameters {
		value, present := input[param.Name]
		if !present {
			if param.Required {
				errs.Add("input."+param.Name, "required parameter is missing")
			}
			continue
		}
		if !conformsTo(param.Type, value) {
			errs.Add("input."+param.Name, "expected %s, got %T", param.Type, value)
		}
	}

	return errs
}

// MissingParameters returns the names of required parameters absent from
// the input. Used by the engine to raise a typed missing-parameter error.
func MissingParameters(a *atom.Atom, input map[string]interface{}) []string {
	var missing []string
	for _, param := range a.InputParameters {
		if !param.Required {
			continue
		}
		if _, ok := input[param.Name]; !ok {
			missing = append(missing, param.Name)
		}
	}
	return missing
}

func (v *Validator) validateIdentity(a *atom.Atom, errs *Errors) {
	if a.TenantID == "" {
		errs.Add("tenant_id", "tenant ID is required")
	}

	switch {
	case a.Code == "":
		errs.Add("code", "code is required")
	case len(a.Code) < minCodeLength || len(a.Code) > maxCodeLength:
		errs.Add("code", "code length must be between %d and %d characters, got %d",
			minCodeLength, maxCodeLength, len(a.Code))
	case !codePattern.MatchString(a.Code):
		errs.Add("code", "code %q must be uppercase snake case (pattern %s)",
			a.Code, codePattern.String())
	}

	if a.Version < 1 {
		errs.Add("version", "version must be at least 1, got %d", a.Version)
	}

	switch {
	case strings.TrimSpace(a.Name) == "":
		errs.Add("name", "name is required")
	case len(a.Name) > maxNameLength:
		errs.Add("name", "name exceeds %d characters", maxNameLength)
	}
	if len(a.Description) > maxDescriptionLength {
		errs.Add("description", "description exceeds %d characters", maxDescriptionLength)
	}
}

func (v *Validator) validateClassification(a *atom.Atom, errs *Errors) {
	if !a.Type.Valid() {
		errs.Add("type", "unknown atom type %q", a.Type)
	}
	if !a.Status.Valid() {
		errs.Add("status", "unknown status %q", a.Status)
	}
	if a.Priority < 1 || a.Priority > 10 {
		errs.Add("priority", "priority must be between 1 and 10, got %d", a.Priority)
	}

	if len(a.Tags) > maxTags {
		errs.Add("tags", "at most %d tags allowed, got %d", maxTags, len(a.Tags))
	}
	for i, tag := range a.Tags {
		field := fmt.Sprintf("tags[%d]", i)
		if len(tag) > maxTagLength {
			errs.Add(field, "tag exceeds %d characters", maxTagLength)
		} else if !tagPattern.MatchString(tag) {
			errs.Add(field, "tag %q must be lowercase kebab case", tag)
		}
	}
}

func (v *Validator) validateDependencies(a *atom.Atom, errs *Errors) {
	if len(a.Dependencies) > maxDependencies {
		errs.Add("dependencies", "at most %d dependencies allowed, got %d",
			maxDependencies, len(a.Dependencies))
	}

	seen := make(map[string]bool, len(a.Dependencies))
	for i, dep := range a.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		if dep == a.Code {
			errs.Add(field, "atom %q must not depend on itself", a.Code)
		}
		if !codePattern.MatchString(dep) {
			errs.Add(field, "dependency code %q must be uppercase snake case", dep)
		}
		if seen[dep] {
			errs.Add(field, "duplicate dependency %q", dep)
		}
		seen[dep] = true
	}
}

func (v *Validator) validateLogic(a *atom.Atom, errs *Errors) {
	if a.Logic == nil {
		errs.Add("logic", "logic definition is required")
		return
	}
	if !a.Type.Valid() {
		return // already reported; variant check would be noise
	}
	if !a.Logic.Matches(a.Type) {
		variant, err := a.Logic.Variant()
		if err != nil {
			errs.Add("logic", "%v", err)
		} else {
			errs.Add("logic", "logic payload is %s but atom type is %s", variant, a.Type)
		}
		return
	}

	switch a.Type {
	case atom.TypeSimple:
		v.validateCondition("logic.condition", a.Logic.Simple.Condition, errs)

	case atom.TypeComplex:
		logic := a.Logic.Complex
		if len(logic.Conditions) == 0 {
			errs.Add("logic.conditions", "complex atom requires at least one condition")
		}
		if len(logic.Conditions) > maxConditions {
			errs.Add("logic.conditions", "at most %d conditions allowed, got %d",
				maxConditions, len(logic.Conditions))
		}
		v.validateLogicalOperator("logic.operator", logic.Operator, len(logic.Conditions), errs)
		for i, cond := range logic.Conditions {
			v.validateCondition(fmt.Sprintf("logic.conditions[%d]", i), cond, errs)
		}

	case atom.TypeComposite:
		logic := a.Logic.Composite
		if len(logic.ChildAtoms) == 0 {
			errs.Add("logic.child_atoms", "composite atom requires at least one child atom")
		}
		v.validateLogicalOperator("logic.operator", logic.Operator, len(logic.ChildAtoms), errs)
		for i, child := range logic.ChildAtoms {
			field := fmt.Sprintf("logic.child_atoms[%d]", i)
			if child == a.Code {
				errs.Add(field, "composite atom %q must not reference itself", a.Code)
			}
			if !codePattern.MatchString(child) {
				errs.Add(field, "child atom code %q must be uppercase snake case", child)
			}
		}

	case atom.TypeTemplate:
		logic := a.Logic.Template
		v.validateCondition("logic.template", logic.Template, errs)
		if len(logic.Parameters) == 0 {
			errs.Add("logic.parameters", "template atom requires a parameters array")
		}
		declared := make(map[string]bool, len(logic.Parameters))
		for i, param := range logic.Parameters {
			if param.Name == "" {
				errs.Add(fmt.Sprintf("logic.parameters[%d]", i), "parameter name is required")
				continue
			}
			declared[param.Name] = true
		}
		for _, ref := range templateReferences(logic.Template) {
			if !declared[ref] {
				errs.Add("logic.template", "placeholder {{%s}} has no declared parameter", ref)
			}
		}

	case atom.TypeMachineLearning:
		model := a.Logic.ML.Model
		if !model.Type.Valid() {
			errs.Add("logic.model.type",
				"model type must be one of classification, regression, clustering, prediction; got %q",
				model.Type)
		}
		if strings.TrimSpace(model.Version) == "" {
			errs.Add("logic.model.version", "model version is required")
		}
		if model.Threshold < 0 || model.Threshold > 1 {
			errs.Add("logic.model.threshold", "threshold must be in [0,1], got %v", model.Threshold)
		}
	}
}

func (v *Validator) validateCondition(field string, cond atom.Condition, errs *Errors) {
	if cond.Field == "" {
		errs.Add(field+".field", "condition field is required")
	}
	if !cond.Operator.Valid() {
		errs.Add(field+".operator", "unknown operator %q", cond.Operator)
		return
	}

	switch cond.Operator {
	case atom.OpIsNull, atom.OpIsNotNull:
		// Null checks take no operand.

	case atom.OpBetween, atom.OpNotBetween:
		bounds, ok := asList(cond.Value)
		if !ok || len(bounds) != 2 {
			errs.Add(field+".value", "%s requires a two-element [min, max] list", cond.Operator)
		}

	case atom.OpIn, atom.OpNotIn:
		if _, ok := asList(cond.Value); !ok {
			errs.Add(field+".value", "%s requires a list value", cond.Operator)
		}

	default:
		if cond.Value == nil {
			errs.Add(field+".value", "operator %s requires a value", cond.Operator)
		}
	}
}

func (v *Validator) validateLogicalOperator(field string, op atom.LogicalOperator, operands int, errs *Errors) {
	if !op.Valid() {
		errs.Add(field, "unknown logical operator %q", op)
		return
	}
	if op == atom.LogicalNot && operands != 1 {
		errs.Add(field, "NOT requires exactly one operand, got %d", operands)
	}
}

func (v *Validator) validateInputParameters(a *atom.Atom, errs *Errors) {
	seen := make(map[string]bool, len(a.InputParameters))
	for i, param := range a.InputParameters {
		field := fmt.Sprintf("input_parameters[%d]", i)
		if param.Name == "" {
			errs.Add(field+".name", "parameter name is required")
		} else if seen[param.Name] {
			errs.Add(field+".name", "duplicate parameter %q", param.Name)
		}
		seen[param.Name] = true
		if !param.Type.Valid() {
			errs.Add(field+".type", "unknown parameter type %q", param.Type)
		}
	}
}

// validateDependencyReadiness checks every direct dependency resolves to an
// executable atom in the store.
func (v *Validator) validateDependencyReadiness(ctx context.Context, a *atom.Atom, errs *Errors) {
	for _, code := range a.DirectDependencies() {
		dep, err := v.atoms.FindLatestVersion(ctx, a.TenantID, code)
		if err != nil {
			errs.Add("dependencies", "failed to resolve dependency %q: %v", code, err)
			continue
		}
		if dep == nil {
			errs.Add("dependencies", "dependency %q does not exist", code)
			continue
		}
		if !dep.Executable() {
			errs.Add("dependencies", "dependency %q has status %q; activation requires active or testing",
				code, dep.Status)
		}
	}
}

// precheckCycles walks the dependency graph to cyclePrecheckDepth looking
// for recursion back into an atom already on the current path.
func (v *Validator) precheckCycles(ctx context.Context, a *atom.Atom, errs *Errors) {
	path := map[string]bool{a.Code: true}
	v.walkDependencies(ctx, a, a.TenantID, path, 1, errs)
}

func (v *Validator) walkDependencies(ctx context.Context, a *atom.Atom, tenantID string, path map[string]bool, depth int, errs *Errors) {
	if depth > cyclePrecheckDepth {
		return
	}
	for _, code := range a.DirectDependencies() {
		if path[code] {
			errs.Add("dependencies", "dependency cycle detected through %q", code)
			continue
		}
		dep, err := v.atoms.FindLatestVersion(ctx, tenantID, code)
		if err != nil || dep == nil {
			continue // missing dependencies are reported by the readiness check
		}
		path[code] = true
		v.walkDependencies(ctx, dep, tenantID, path, depth+1, errs)
		delete(path, code)
	}
}

// templateReferences extracts placeholder names from a template condition's
// field and value.
func templateReferences(cond atom.Condition) []string {
	var refs []string
	collect := func(s string) {
		for _, match := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			refs = append(refs, match[1])
		}
	}
	collect(cond.Field)
	if s, ok := cond.Value.(string); ok {
		collect(s)
	}
	return refs
}

// conformsTo reports whether value conforms to the declared parameter type.
func conformsTo(t atom.ParameterType, value interface{}) bool {
	if value == nil {
		return false
	}
	switch t {
	case atom.ParamString:
		_, ok := value.(string)
		return ok
	case atom.ParamBoolean:
		_, ok := value.(bool)
		return ok
	case atom.ParamInteger, atom.ParamLong:
		return isIntegral(value)
	case atom.ParamDouble:
		return isNumeric(value)
	case atom.ParamList:
		kind := reflect.ValueOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	case atom.ParamMap:
		return reflect.ValueOf(value).Kind() == reflect.Map
	default:
		return false
	}
}

func isIntegral(value interface{}) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int64(v))
	default:
		return false
	}
}

// asList normalizes a slice-like value to []interface{}.
func asList(value interface{}) ([]interface{}, bool) {
	if value == nil {
		return nil, false
	}
	if list, ok := value.([]interface{}); ok {
		return list, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func isNumeric(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}
