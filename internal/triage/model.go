package triage

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
)

// FieldType describes how a condition field is captured.
type FieldType string

const (
	// FieldText is a free-form value
	FieldText FieldType = "text"

	// FieldSelect is restricted to the field's Options
	FieldSelect FieldType = "select"
)

// ErrConditionValue is returned when decoding a condition value of any other JSON type.
var ErrConditionValue = errors.New("condition value must be a string or an array of strings")

// ConditionValue is either a single string or an ordered list of strings. A list is an
// OR-set: the condition holds when the field equals any of the listed values.
type ConditionValue struct {
	values []string
	list   bool
}

// Single returns a single-string condition value.
func Single(v string) ConditionValue {
	return ConditionValue{values: []string{v}}
}

// AnyOf returns a list condition value.
func AnyOf(vs ...string) ConditionValue {
	return ConditionValue{values: slices.Clone(vs), list: true}
}

// IsList reports whether the value was given as a list.
func (v ConditionValue) IsList() bool { return v.list }

// Values returns a copy of the listed values (one element for a single value).
func (v ConditionValue) Values() []string { return slices.Clone(v.values) }

// Text renders the value for the prompt: the value itself, or list values joined by ", ".
func (v ConditionValue) Text() string {
	var b bytes.Buffer
	for i, s := range v.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s)
	}
	return b.String()
}

// MarshalJSON keeps the form the value was given in.
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.values)
	}
	if len(v.values) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(v.values[0])
}

// UnmarshalJSON accepts a JSON string or an array of strings.
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return ErrConditionValue
		}
		*v = AnyOf(vs...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrConditionValue
	}
	*v = Single(s)
	return nil
}

// Condition is a single matching predicate. Conditions of a rule are AND-ed together.
type Condition struct {
	Field string         `json:"field" validate:"required"`
	Value ConditionValue `json:"value" validate:"-"`
}

// ConditionField describes a routable dimension shown in the config UI and prompt.
type ConditionField struct {
	Name    string    `json:"name" validate:"required"`
	Label   string    `json:"label" validate:"required"`
	Type    FieldType `json:"type" validate:"oneof=select text"`
	Options []string  `json:"options,omitempty" validate:"dive,required"`
}

// Rule routes a request type, narrowed by its conditions, to an assignee.
// Lower Priority wins; equal priorities keep their relative order.
type Rule struct {
	ID          string      `json:"id" validate:"required"`
	RequestType string      `json:"requestType" validate:"required"`
	Conditions  []Condition `json:"conditions" validate:"dive"`
	Assignee    string      `json:"assignee" validate:"required,email"`
	Priority    int         `json:"priority" validate:"gt=0"`
}

// Config is the routing document. It is the only persisted unit: every rule mutation
// is a read-modify-write of the whole document.
type Config struct {
	RequestTypes    []string         `json:"requestTypes" validate:"dive,required"`
	ConditionFields []ConditionField `json:"conditionFields" validate:"dive"`
	Rules           []Rule           `json:"rules" validate:"dive"`
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	if r.Conditions != nil {
		out.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			out.Conditions[i] = Condition{
				Field: c.Field,
				Value: ConditionValue{values: slices.Clone(c.Value.values), list: c.Value.list},
			}
		}
	}
	return out
}

// Clone returns a deep copy of the document. Snapshots handed out by the store are
// clones, so callers may mutate them freely without touching persisted state.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		RequestTypes: slices.Clone(c.RequestTypes),
	}
	if c.ConditionFields != nil {
		out.ConditionFields = make([]ConditionField, len(c.ConditionFields))
		for i, f := range c.ConditionFields {
			f.Options = slices.Clone(f.Options)
			out.ConditionFields[i] = f
		}
	}
	if c.Rules != nil {
		out.Rules = make([]Rule, len(c.Rules))
		for i, r := range c.Rules {
			out.Rules[i] = r.Clone()
		}
	}
	return out
}

// normalize replaces nil slices with empty ones so the document always serializes
// with arrays rather than nulls.
func (c *Config) normalize() {
	if c.RequestTypes == nil {
		c.RequestTypes = []string{}
	}
	if c.ConditionFields == nil {
		c.ConditionFields = []ConditionField{}
	}
	if c.Rules == nil {
		c.Rules = []Rule{}
	}
	for i := range c.Rules {
		if c.Rules[i].Conditions == nil {
			c.Rules[i].Conditions = []Condition{}
		}
	}
}
