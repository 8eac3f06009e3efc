package schema

import (
	"fmt"
	"regexp"

	"github.com/BaSui01/genflow/types"
)

// SchemaError reports a schema that cannot be used for validation.
// It is a configuration defect and never a property of the candidate value.
type SchemaError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "invalid schema: " + e.Reason
	}
	return fmt.Sprintf("invalid schema at %s: %s", e.Path, e.Reason)
}

// Is matches any *types.Error carrying ErrSchemaConfiguration.
func (e *SchemaError) Is(target error) bool {
	te, ok := target.(*types.Error)
	return ok && te.Code == types.ErrSchemaConfiguration
}

var defaultValidator = NewValidator()

// CheckSchema checks a schema against the built-in formats.
func CheckSchema(s *JSONSchema) error {
	return defaultValidator.CheckSchema(s)
}

// CheckSchema reports the first structural defect of s as *SchemaError.
func (v *Validator) CheckSchema(s *JSONSchema) error {
	if s == nil {
		return &SchemaError{Reason: "schema is nil"}
	}
	return v.check(s, "")
}

func (v *Validator) check(s *JSONSchema, path string) error {
	fail := func(format string, args ...any) error {
		return &SchemaError{Path: displayPath(path), Reason: fmt.Sprintf(format, args...)}
	}

	switch s.Type {
	case "", TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeNull, TypeObject, TypeArray:
	default:
		return fail("unknown type %q", s.Type)
	}

	lengths := []struct {
		name string
		n    *int
	}{
		{"minLength", s.MinLength}, {"maxLength", s.MaxLength},
		{"minItems", s.MinItems}, {"maxItems", s.MaxItems},
	}
	for _, l := range lengths {
		if l.n != nil && *l.n < 0 {
			return fail("%s must not be negative", l.name)
		}
	}
	if s.MinLength != nil && s.MaxLength != nil && *s.MinLength > *s.MaxLength {
		return fail("minLength %d exceeds maxLength %d", *s.MinLength, *s.MaxLength)
	}
	if s.MinItems != nil && s.MaxItems != nil && *s.MinItems > *s.MaxItems {
		return fail("minItems %d exceeds maxItems %d", *s.MinItems, *s.MaxItems)
	}
	if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
		return fail("minimum %v exceeds maximum %v", *s.Minimum, *s.Maximum)
	}
	if s.MultipleOf != nil && *s.MultipleOf <= 0 {
		return fail("multipleOf must be positive")
	}

	if s.Pattern != "" {
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fail("invalid pattern %q: %v", s.Pattern, err)
		}
	}
	if s.Format != "" && !v.HasFormat(s.Format) {
		return fail("unknown format %q", s.Format)
	}

	if s.Type == TypeArray && s.Items == nil {
		return fail("array schema has no items")
	}
	if s.Items != nil {
		if err := v.check(s.Items, path+"[]"); err != nil {
			return err
		}
	}

	for _, req := range s.Required {
		if !s.HasProperty(req) {
			return fail("required property %q is not declared", req)
		}
	}
	for _, name := range s.PropertyNames() {
		prop := s.Properties[name]
		if prop == nil {
			return &SchemaError{Path: joinPath(path, name), Reason: "property schema is nil"}
		}
		if err := v.check(prop, joinPath(path, name)); err != nil {
			return err
		}
	}
	if ap := s.AdditionalProperties; ap != nil && ap.Schema != nil {
		if err := v.check(ap.Schema, joinPath(path, "*")); err != nil {
			return err
		}
	}

	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "$"
	}
	return path
}
