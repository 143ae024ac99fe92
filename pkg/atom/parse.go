package atom

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseLogic converts a loosely-typed logic payload (as stored by the API
// layer or a database JSON column) into the typed Logic union for the given
// atom type. The payload shape is validated here, once, so evaluation never
// walks untyped maps.
//
// Expected payload keys per type:
//
//	simple:           condition
//	complex:          conditions, operator
//	composite:        child_atoms, operator
//	template:         template, parameters
//	machine_learning: model
func ParseLogic(t Type, payload map[string]interface{}) (*Logic, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown atom type %q", t)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("logic payload is empty")
	}

	logic := &Logic{}
	switch t {
	case TypeSimple:
		var v SimpleLogic
		if err := decodePayload(payload, &v); err != nil {
			return nil, fmt.Errorf("simple logic: %w", err)
		}
		logic.Simple = &v

	case TypeComplex:
		var v ComplexLogic
		if err := decodePayload(payload, &v); err != nil {
			return nil, fmt.Errorf("complex logic: %w", err)
		}
		logic.Complex = &v

	case TypeComposite:
		var v CompositeLogic
		if err := decodePayload(payload, &v); err != nil {
			return nil, fmt.Errorf("composite logic: %w", err)
		}
		logic.Composite = &v

	case TypeTemplate:
		var v TemplateLogic
		if err := decodePayload(payload, &v); err != nil {
			return nil, fmt.Errorf("template logic: %w", err)
		}
		logic.Template = &v

	case TypeMachineLearning:
		var v MLLogic
		if err := decodePayload(payload, &v); err != nil {
			return nil, fmt.Errorf("machine learning logic: %w", err)
		}
		logic.ML = &v
	}

	return logic, nil
}

// decodePayload maps a loose payload into a typed variant struct by
// round-tripping through YAML, reusing the struct tags as the schema.
func decodePayload(payload map[string]interface{}, out interface{}) error {
	data, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
