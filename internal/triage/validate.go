package triage

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON names so paths match the wire document
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCondition checks a single condition.
func ValidateCondition(c Condition) error {
	return collect(validate.Struct(c), nil)
}

// ValidateRule checks a rule. When requireID is false an empty id is accepted so the
// caller can generate one.
func ValidateRule(r Rule, requireID bool) error {
	var skip func(FieldError) bool
	if !requireID {
		skip = func(fe FieldError) bool { return fe.Field == "id" }
	}
	return collect(validate.Struct(r), skip)
}

// ValidateConfig checks the whole document, every contained rule included.
func ValidateConfig(c *Config) error {
	if c == nil {
		return &ValidationError{Errors: []FieldError{{Message: "configuration is required"}}}
	}

	var fields []FieldError
	if err := collect(validate.Struct(c), nil); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		fields = ve.Errors
	}

	for i, f := range c.ConditionFields {
		if f.Type == FieldSelect && len(f.Options) == 0 {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("conditionFields[%d].options", i),
				Message: "Options are required for select fields",
			})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Errors: fields}
	}
	return nil
}

// collect converts validator output into a ValidationError, one entry per failure.
func collect(err error, skip func(FieldError) bool) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		e := FieldError{Field: fieldPath(fe.Namespace()), Message: message(fe)}
		if skip != nil && skip(e) {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return &ValidationError{Errors: out}
}

// fieldPath drops the root type name: "Config.rules[0].assignee" -> "rules[0].assignee".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	name, _, _ := strings.Cut(fe.Field(), "[")

	switch fe.Tag() {
	case "required":
		switch name {
		case "id":
			return "Rule ID is required"
		case "requestType":
			return "Request type is required"
		case "field":
			return "Field is required"
		case "name":
			return "Field name is required"
		case "label":
			return "Field label is required"
		case "requestTypes":
			return "Request type must not be empty"
		case "options":
			return "Option must not be empty"
		}
		return name + " is required"
	case "email":
		return "Invalid email format for assignee"
	case "gt":
		return "Priority must be a positive integer"
	case "oneof":
		return "Type must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
