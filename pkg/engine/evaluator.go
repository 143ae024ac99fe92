package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"eligos-hq/atlas/pkg/atom"
)

// evaluator evaluates one atom type's logic against an execution context.
// There is one implementation per atom type, selected once per execution;
// recursive execution never re-dispatches on type tags.
type evaluator interface {
	Evaluate(ctx context.Context, a *atom.Atom, ectx *Context) (*Result, error)
}

// childExecutor executes a child atom through the full engine (so child
// results are cache-eligible). Implemented by the Engine.
type childExecutor func(ctx context.Context, code string, ectx *Context) (*Result, error)

// ModelScorer produces a score in [0,1] for a machine-learning atom. Real
// model backends are external collaborators registered per model type; the
// engine ships a deterministic placeholder.
type ModelScorer interface {
	Score(ctx context.Context, spec atom.ModelSpec, features map[string]interface{}) (float64, error)
}

// --- simple ---

type simpleEvaluator struct{}

func (simpleEvaluator) Evaluate(_ context.Context, a *atom.Atom, ectx *Context) (*Result, error) {
	cond := a.Logic.Simple.Condition
	matched, reason, err := evaluateCondition(cond, ectx)
	if err != nil {
		return nil, err
	}
	return &Result{Eligible: matched, Value: matched, Reason: reason}, nil
}

// --- complex ---

type complexEvaluator struct{}

func (complexEvaluator) Evaluate(_ context.Context, a *atom.Atom, ectx *Context) (*Result, error) {
	logic := a.Logic.Complex

	operands := make([]bool, len(logic.Conditions))
	reasons := make([]string, 0, len(logic.Conditions))
	for i, cond := range logic.Conditions {
		matched, reason, err := evaluateCondition(cond, ectx)
		if err != nil {
			return nil, err
		}
		operands[i] = matched
		if !matched {
			reasons = append(reasons, reason)
		}
	}

	combined, err := evaluateLogical(logic.Operator, operands)
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("%d of %d conditions matched under %s",
		countTrue(operands), len(operands), logic.Operator)
	if !combined && len(reasons) > 0 {
		reason = fmt.Sprintf("%s: %s", reason, strings.Join(reasons, "; "))
	}
	return &Result{Eligible: combined, Value: combined, Reason: reason}, nil
}

// --- composite ---

type compositeEvaluator struct {
	execChild childExecutor
}

// Evaluate executes each named child atom and combines the results. A child
// that fails to execute contributes false rather than failing the composite;
// under OR the composite can still admit on the strength of another child.
func (e compositeEvaluator) Evaluate(ctx context.Context, a *atom.Atom, ectx *Context) (*Result, error) {
	logic := a.Logic.Composite

	operands := make([]bool, len(logic.ChildAtoms))
	var failures []string
	for i, code := range logic.ChildAtoms {
		res, err := e.execChild(ctx, code, ectx)
		if err != nil {
			operands[i] = false
			failures = append(failures, fmt.Sprintf("%s: %v", code, err))
			continue
		}
		operands[i] = truthy(res.Value)
	}

	combined, err := evaluateLogical(logic.Operator, operands)
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("%d of %d child atoms eligible under %s",
		countTrue(operands), len(operands), logic.Operator)
	if len(failures) > 0 {
		reason = fmt.Sprintf("%s (failed children treated as ineligible: %s)",
			reason, strings.Join(failures, "; "))
	}
	return &Result{Eligible: combined, Value: combined, Reason: reason}, nil
}

// --- template ---

type templateEvaluator struct{}

// Evaluate substitutes declared parameters into the template condition and
// evaluates the result as a simple condition. Parameter values come from the
// execution attributes, falling back to declared defaults.
func (templateEvaluator) Evaluate(_ context.Context, a *atom.Atom, ectx *Context) (*Result, error) {
	logic := a.Logic.Template

	values := make(map[string]interface{}, len(logic.Parameters))
	for _, param := range logic.Parameters {
		if v, ok := ectx.Attributes[param.Name]; ok {
			values[param.Name] = v
			continue
		}
		if param.Default != nil {
			values[param.Name] = param.Default
			continue
		}
		return nil, fmt.Errorf("template parameter %q has no value and no default", param.Name)
	}

	cond := atom.Condition{
		Field:    substitute(logic.Template.Field, values),
		Operator: logic.Template.Operator,
		Value:    substituteValue(logic.Template.Value, values),
	}

	matched, reason, err := evaluateCondition(cond, ectx)
	if err != nil {
		return nil, err
	}
	return &Result{Eligible: matched, Value: matched, Reason: reason}, nil
}

// substitute replaces {{param}} placeholders in s with their values.
func substitute(s string, values map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		if v, ok := values[name]; ok {
			return stringify(v)
		}
		return match
	})
}

// substituteValue substitutes into string values; a value that is exactly
// one placeholder is replaced by the raw parameter value, preserving its
// type for numeric comparisons.
func substituteValue(value interface{}, values map[string]interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(s)
	if m := placeholderRe.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
		if v, ok := values[m[1]]; ok {
			return v
		}
	}
	return substitute(s, values)
}

// --- machine learning ---

type mlEvaluator struct {
	scorers map[atom.ModelType]ModelScorer
}

func (e mlEvaluator) Evaluate(ctx context.Context, a *atom.Atom, ectx *Context) (*Result, error) {
	spec := a.Logic.ML.Model

	scorer, ok := e.scorers[spec.Type]
	if !ok {
		return nil, fmt.Errorf("no scorer registered for model type %q", spec.Type)
	}

	features := modelFeatures(spec, ectx)
	score, err := scorer.Score(ctx, spec, features)
	if err != nil {
		return nil, fmt.Errorf("model %s/%s scoring failed: %w", spec.Type, spec.Version, err)
	}

	threshold := spec.Threshold
	if threshold == 0 {
		threshold = 0.5
	}
	eligible := score >= threshold

	return &Result{
		Eligible: eligible,
		Value:    score,
		Reason: fmt.Sprintf("model %s/%s scored %.4f against threshold %.2f",
			spec.Type, spec.Version, score, threshold),
	}, nil
}

// modelFeatures selects the attributes fed to the scorer: the declared
// feature names when present, the whole attribute bag otherwise.
func modelFeatures(spec atom.ModelSpec, ectx *Context) map[string]interface{} {
	if len(spec.Features) == 0 {
		return ectx.Attributes
	}
	features := make(map[string]interface{}, len(spec.Features))
	for _, name := range spec.Features {
		if v, ok := ectx.Lookup(name); ok {
			features[name] = v
		}
	}
	return features
}

// placeholderScorer is the default deterministic model stub: the score is
// derived from a hash of the model version and the feature values, so
// repeated calls with the same input always score the same.
type placeholderScorer struct{}

func (placeholderScorer) Score(_ context.Context, spec atom.ModelSpec, features map[string]interface{}) (float64, error) {
	h := fnv.New64a()
	h.Write([]byte(spec.Version))
	if data, err := json.Marshal(features); err == nil {
		h.Write(data)
	} else {
		h.Write([]byte(fmt.Sprintf("%v", features)))
	}
	// Map the hash onto [0,1).
	return float64(h.Sum64()%10000) / 10000, nil
}

// defaultScorers registers the placeholder for every model type.
func defaultScorers() map[atom.ModelType]ModelScorer {
	stub := placeholderScorer{}
	return map[atom.ModelType]ModelScorer{
		atom.ModelClassification: stub,
		atom.ModelRegression:     stub,
		atom.ModelClustering:     stub,
		atom.ModelPrediction:     stub,
	}
}

// countTrue returns the number of true operands.
func countTrue(operands []bool) int {
	n := 0
	for _, v := range operands {
		if v {
			n++
		}
	}
	return n
}
