package triage

import (
	"errors"
	"testing"
)

func validRule() Rule {
	return Rule{
		ID:          "rule-1",
		RequestType: "Sales Contract",
		Conditions:  []Condition{{Field: "location", Value: Single("Australia")}},
		Assignee:    "john@acme.corp",
		Priority:    1,
	}
}

func validConfig() *Config {
	return &Config{
		RequestTypes: []string{"Sales Contract", "NDA"},
		ConditionFields: []ConditionField{
			{Name: "location", Label: "Location", Type: FieldText},
			{Name: "region", Label: "Region", Type: FieldSelect, Options: []string{"APAC", "EMEA"}},
		},
		Rules: []Rule{validRule()},
	}
}

// fieldErrors unwraps a *ValidationError or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return ve.Errors
}

func hasFieldError(errs []FieldError, field, msg string) bool {
	for _, fe := range errs {
		if fe.Field == field && fe.Message == msg {
			return true
		}
	}
	return false
}

func TestValidateRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Rule)
		requireID bool
		field     string
		msg       string
	}{
		{name: "zero priority", mutate: func(r *Rule) { r.Priority = 0 }, requireID: true, field: "priority", msg: "Priority must be a positive integer"},
		{name: "negative priority", mutate: func(r *Rule) { r.Priority = -1 }, requireID: true, field: "priority", msg: "Priority must be a positive integer"},
		{name: "bad email", mutate: func(r *Rule) { r.Assignee = "not-an-email" }, requireID: true, field: "assignee", msg: "Invalid email format for assignee"},
		{name: "missing request type", mutate: func(r *Rule) { r.RequestType = "" }, requireID: true, field: "requestType", msg: "Request type is required"},
		{name: "missing id", mutate: func(r *Rule) { r.ID = "" }, requireID: true, field: "id", msg: "Rule ID is required"},
		{name: "empty condition field", mutate: func(r *Rule) { r.Conditions[0].Field = "" }, requireID: true, field: "conditions[0].field", msg: "Field is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := validRule()
			tt.mutate(&r)
			errs := fieldErrors(t, ValidateRule(r, tt.requireID))
			if !hasFieldError(errs, tt.field, tt.msg) {
				t.Errorf("errors = %+v, want {%s %s}", errs, tt.field, tt.msg)
			}
		})
	}
}

func TestValidateRule_Valid(t *testing.T) {
	t.Parallel()

	if err := ValidateRule(validRule(), true); err != nil {
		t.Fatalf("ValidateRule: %v", err)
	}

	noConds := validRule()
	noConds.Conditions = nil
	if err := ValidateRule(noConds, true); err != nil {
		t.Fatalf("ValidateRule without conditions: %v", err)
	}
}

func TestValidateRule_IDOptional(t *testing.T) {
	t.Parallel()

	r := validRule()
	r.ID = ""
	if err := ValidateRule(r, false); err != nil {
		t.Fatalf("ValidateRule(requireID=false): %v", err)
	}
}

func TestValidateRule_CollectsAll(t *testing.T) {
	t.Parallel()

	r := Rule{Assignee: "nope", Priority: 0}
	errs := fieldErrors(t, ValidateRule(r, true))

	for _, want := range []FieldError{
		{Field: "id", Message: "Rule ID is required"},
		{Field: "requestType", Message: "Request type is required"},
		{Field: "assignee", Message: "Invalid email format for assignee"},
		{Field: "priority", Message: "Priority must be a positive integer"},
	} {
		if !hasFieldError(errs, want.Field, want.Message) {
			t.Errorf("missing %+v in %+v", want, errs)
		}
	}
}

func TestValidateCondition(t *testing.T) {
	t.Parallel()

	if err := ValidateCondition(Condition{Field: "location", Value: AnyOf("AU", "NZ")}); err != nil {
		t.Fatalf("ValidateCondition: %v", err)
	}

	errs := fieldErrors(t, ValidateCondition(Condition{Value: Single("AU")}))
	if !hasFieldError(errs, "field", "Field is required") {
		t.Errorf("errors = %+v", errs)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
		msg    string
	}{
		{name: "rule priority", mutate: func(c *Config) { c.Rules[0].Priority = 0 }, field: "rules[0].priority", msg: "Priority must be a positive integer"},
		{name: "rule assignee", mutate: func(c *Config) { c.Rules[0].Assignee = "x" }, field: "rules[0].assignee", msg: "Invalid email format for assignee"},
		{name: "empty request type", mutate: func(c *Config) { c.RequestTypes[1] = "" }, field: "requestTypes[1]", msg: "Request type must not be empty"},
		{name: "field name", mutate: func(c *Config) { c.ConditionFields[0].Name = "" }, field: "conditionFields[0].name", msg: "Field name is required"},
		{name: "field label", mutate: func(c *Config) { c.ConditionFields[0].Label = "" }, field: "conditionFields[0].label", msg: "Field label is required"},
		{name: "field type", mutate: func(c *Config) { c.ConditionFields[0].Type = "number" }, field: "conditionFields[0].type", msg: "Type must be one of: select, text"},
		{name: "select without options", mutate: func(c *Config) { c.ConditionFields[1].Options = nil }, field: "conditionFields[1].options", msg: "Options are required for select fields"},
		{name: "empty option", mutate: func(c *Config) { c.ConditionFields[1].Options[0] = "" }, field: "conditionFields[1].options[0]", msg: "Option must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			errs := fieldErrors(t, ValidateConfig(cfg))
			if !hasFieldError(errs, tt.field, tt.msg) {
				t.Errorf("errors = %+v, want {%s %s}", errs, tt.field, tt.msg)
			}
		})
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
	if err := ValidateConfig(&Config{}); err != nil {
		t.Fatalf("ValidateConfig(empty): %v", err)
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	fieldErrors(t, ValidateConfig(nil))
}

func TestValidationError_Message(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Errors: []FieldError{
		{Field: "priority", Message: "Priority must be a positive integer"},
		{Message: "configuration is required"},
	}}
	want := "validation failed: priority: Priority must be a positive integer; configuration is required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
