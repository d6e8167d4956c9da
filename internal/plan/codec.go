package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type fieldFilterWire struct {
	Field    string          `json:"field"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes the value into the Value union.
func (f *FieldFilter) UnmarshalJSON(data []byte) error {
	var wire fieldFilterWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	f.Field = wire.Field
	f.Operator = wire.Operator
	f.Value = nil

	raw := bytes.TrimSpace(wire.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '{' {
		var wrapper struct {
			Subquery *QueryPlan `json:"subquery"`
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wrapper); err != nil {
			return fmt.Errorf("filter %s: object values must be a {\"subquery\": plan} wrapper: %w", wire.Field, err)
		}
		if wrapper.Subquery == nil {
			return fmt.Errorf("filter %s: subquery wrapper without a plan", wire.Field)
		}
		f.Value = Subquery{Plan: wrapper.Subquery}
		return nil
	}

	var native any
	if err := json.Unmarshal(raw, &native); err != nil {
		return err
	}
	v, err := ValueOf(native)
	if err != nil {
		return fmt.Errorf("filter %s: %w", wire.Field, err)
	}
	f.Value = v
	return nil
}

// MarshalJSON encodes the Value union as plain JSON.
func (f FieldFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Field    string   `json:"field"`
		Operator Operator `json:"operator"`
		Value    any      `json:"value"`
	}{f.Field, f.Operator, NativeOf(f.Value)})
}

// UnmarshalYAML decodes the value into the Value union.
func (f *FieldFilter) UnmarshalYAML(node *yaml.Node) error {
	var wire struct {
		Field    string    `yaml:"field"`
		Operator Operator  `yaml:"operator"`
		Value    yaml.Node `yaml:"value"`
	}
	if err := node.Decode(&wire); err != nil {
		return err
	}
	f.Field = wire.Field
	f.Operator = wire.Operator
	f.Value = nil

	switch wire.Value.Kind {
	case 0:
		return nil
	case yaml.MappingNode:
		var wrapper struct {
			Subquery *QueryPlan `yaml:"subquery"`
		}
		if err := wire.Value.Decode(&wrapper); err != nil {
			return fmt.Errorf("filter %s: %w", wire.Field, err)
		}
		if wrapper.Subquery == nil {
			return fmt.Errorf("filter %s: object values must be a {subquery: plan} wrapper", wire.Field)
		}
		f.Value = Subquery{Plan: wrapper.Subquery}
		return nil
	}

	var native any
	if err := wire.Value.Decode(&native); err != nil {
		return fmt.Errorf("filter %s: %w", wire.Field, err)
	}
	if native == nil {
		return nil
	}
	v, err := ValueOf(native)
	if err != nil {
		return fmt.Errorf("filter %s: %w", wire.Field, err)
	}
	f.Value = v
	return nil
}

// MarshalYAML encodes the Value union as plain YAML.
func (f FieldFilter) MarshalYAML() (any, error) {
	return struct {
		Field    string   `yaml:"field"`
		Operator Operator `yaml:"operator"`
		Value    any      `yaml:"value"`
	}{f.Field, f.Operator, NativeOf(f.Value)}, nil
}

// DecodeJSON reads one plan from r. Unknown top-level keys are rejected.
func DecodeJSON(r io.Reader) (*QueryPlan, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var p QueryPlan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// DecodeYAML reads one plan from YAML data.
func DecodeYAML(data []byte) (*QueryPlan, error) {
	var p QueryPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// Decode reads a plan from data, accepting JSON or YAML.
func Decode(data []byte) (*QueryPlan, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeJSON(bytes.NewReader(trimmed))
	}
	return DecodeYAML(data)
}
