package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/BaSui01/genflow/internal/datauri"
	"github.com/BaSui01/genflow/types"
)

// SchemaValidator validates JSON data against a JSONSchema.
type SchemaValidator interface {
	Validate(data []byte, schema *JSONSchema) error
	ValidateValue(value any, schema *JSONSchema) error
}

// ParseError represents a single constraint violation with its field path.
// Paths use dots for object members and brackets for array elements ("matches[2].source").
type ParseError struct {
	Path       string `json:"path"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors struct {
	Errors []ParseError `json:"errors"`
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Fields converts the violations into the transport-neutral field error form.
func (e *ValidationErrors) Fields() []types.FieldError {
	out := make([]types.FieldError, 0, len(e.Errors))
	for _, pe := range e.Errors {
		out = append(out, types.FieldError{Path: pe.Path, Constraint: pe.Constraint, Message: pe.Message})
	}
	return out
}

// Paths returns the violated field paths in report order.
func (e *ValidationErrors) Paths() []string {
	out := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		out = append(out, pe.Path)
	}
	return out
}

// Validator checks candidate values against schemas.
// Custom formats must be registered before the validator is shared between goroutines.
type Validator struct {
	formatValidators map[StringFormat]func(string) bool
	patterns         sync.Map // pattern string -> *regexp.Regexp
}

var _ SchemaValidator = (*Validator)(nil)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	timePattern     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
)

// NewValidator creates a Validator with the built-in format validators.
func NewValidator() *Validator {
	v := &Validator{
		formatValidators: make(map[StringFormat]func(string) bool),
	}
	v.registerBuiltinFormats()
	return v
}

func (v *Validator) registerBuiltinFormats() {
	v.formatValidators[FormatEmail] = func(s string) bool {
		if !emailPattern.MatchString(s) {
			return false
		}
		_, err := mail.ParseAddress(s)
		return err == nil
	}

	// Absolute URL: scheme plus host, or an opaque part (mailto:, urn:).
	v.formatValidators[FormatURI] = func(s string) bool {
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" {
			return false
		}
		return u.Host != "" || u.Opaque != ""
	}

	// Web address: http or https with a host.
	v.formatValidators[FormatURL] = func(s string) bool {
		u, err := url.Parse(s)
		if err != nil || u.Hostname() == "" {
			return false
		}
		return u.Scheme == "http" || u.Scheme == "https"
	}

	v.formatValidators[FormatUUID] = func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil && len(s) == 36
	}

	v.formatValidators[FormatDateTime] = func(s string) bool {
		_, err := time.Parse(time.RFC3339Nano, s)
		return err == nil
	}

	v.formatValidators[FormatDate] = func(s string) bool {
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	}

	v.formatValidators[FormatTime] = func(s string) bool {
		return timePattern.MatchString(s)
	}

	v.formatValidators[FormatIPv4] = func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil && !strings.Contains(s, ":")
	}

	v.formatValidators[FormatIPv6] = func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && strings.Contains(s, ":")
	}

	v.formatValidators[FormatHostname] = func(s string) bool {
		return len(s) <= 253 && hostnamePattern.MatchString(s)
	}

	v.formatValidators[FormatDataURI] = func(s string) bool {
		_, err := datauri.Parse(s)
		return err == nil
	}
}

// RegisterFormat registers a custom format validator.
func (v *Validator) RegisterFormat(format StringFormat, validator func(string) bool) {
	v.formatValidators[format] = validator
}

// HasFormat reports whether a format name is known to this validator.
func (v *Validator) HasFormat(format StringFormat) bool {
	_, ok := v.formatValidators[format]
	return ok
}

// Validate validates JSON bytes against a schema.
// It returns *SchemaError when the schema itself is malformed and *ValidationErrors
// when the candidate violates it.
func (v *Validator) Validate(data []byte, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	if err := v.CheckSchema(schema); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return &ValidationErrors{
			Errors: []ParseError{{Constraint: "json", Message: fmt.Sprintf("invalid JSON: %v", err)}},
		}
	}
	if dec.More() {
		return &ValidationErrors{
			Errors: []ParseError{{Constraint: "json", Message: "invalid JSON: trailing data after value"}},
		}
	}

	return v.run(value, schema)
}

// ValidateValue validates an already decoded value.
// Values outside the JSON data model (structs, typed slices) are normalized through
// a JSON round trip first.
func (v *Validator) ValidateValue(value any, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	if err := v.CheckSchema(schema); err != nil {
		return err
	}

	normalized, err := normalize(value)
	if err != nil {
		return &ValidationErrors{
			Errors: []ParseError{{Constraint: "type", Message: fmt.Sprintf("value is not representable as JSON: %v", err)}},
		}
	}
	return v.run(normalized, schema)
}

func (v *Validator) run(value any, schema *JSONSchema) error {
	w := &walk{v: v}
	w.value(value, schema, "")
	if len(w.errs) > 0 {
		return &ValidationErrors{Errors: w.errs}
	}
	return nil
}

// walk accumulates violations for one validation pass.
type walk struct {
	v    *Validator
	errs []ParseError
}

func (w *walk) fail(path, constraint string, schema *JSONSchema, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if schema != nil && schema.ErrorMessage != "" {
		msg = schema.ErrorMessage
	}
	w.errs = append(w.errs, ParseError{Path: path, Constraint: constraint, Message: msg})
}

func (w *walk) value(value any, schema *JSONSchema, path string) {
	if schema == nil {
		return
	}

	if schema.Const != nil {
		if !equalValues(value, schema.Const) {
			w.fail(path, "const", schema, "value must be %v", schema.Const)
		}
		return
	}

	if len(schema.Enum) > 0 {
		found := false
		for _, enumVal := range schema.Enum {
			if equalValues(value, enumVal) {
				found = true
				break
			}
		}
		if !found {
			w.fail(path, "enum", schema, "value must be one of: %v", schema.Enum)
		}
	}

	switch schema.Type {
	case TypeString:
		w.str(value, schema, path)
	case TypeNumber:
		w.number(value, schema, path, false)
	case TypeInteger:
		w.number(value, schema, path, true)
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			w.fail(path, "type", schema, "expected boolean, got %s", jsonKind(value))
		}
	case TypeNull:
		if value != nil {
			w.fail(path, "type", schema, "expected null, got %s", jsonKind(value))
		}
	case TypeObject:
		w.object(value, schema, path)
	case TypeArray:
		w.array(value, schema, path)
	}
}

func (w *walk) str(value any, schema *JSONSchema, path string) {
	s, ok := value.(string)
	if !ok {
		w.fail(path, "type", schema, "expected string, got %s", jsonKind(value))
		return
	}

	n := utf8.RuneCountInString(s)
	if schema.MinLength != nil && n < *schema.MinLength {
		w.fail(path, "minLength", schema, "string length %d is less than minimum %d", n, *schema.MinLength)
	}
	if schema.MaxLength != nil && n > *schema.MaxLength {
		w.fail(path, "maxLength", schema, "string length %d exceeds maximum %d", n, *schema.MaxLength)
	}

	if schema.Pattern != "" {
		re, err := w.v.compile(schema.Pattern)
		if err == nil && !re.MatchString(s) {
			w.fail(path, "pattern", schema, "string does not match pattern %q", schema.Pattern)
		}
	}

	if schema.Format != "" {
		if fv, ok := w.v.formatValidators[schema.Format]; ok && !fv(s) {
			w.fail(path, "format", schema, "string does not match format %q", schema.Format)
		}
	}
}

func (w *walk) number(value any, schema *JSONSchema, path string, integer bool) {
	kind := "number"
	if integer {
		kind = "integer"
	}
	num, ok := toFloat64(value)
	if !ok {
		if n, isNum := value.(json.Number); isNum {
			w.fail(path, "range", schema, "number %s is outside the representable range", truncate(string(n), 32))
			return
		}
		w.fail(path, "type", schema, "expected %s, got %s", kind, jsonKind(value))
		return
	}
	if math.IsInf(num, 0) || math.IsNaN(num) {
		w.fail(path, "range", schema, "number %v is not finite", num)
		return
	}
	if integer && num != math.Trunc(num) {
		w.fail(path, "type", schema, "expected integer, got %v", num)
		return
	}

	if schema.Minimum != nil && num < *schema.Minimum {
		w.fail(path, "minimum", schema, "value %v is less than minimum %v", num, *schema.Minimum)
	}
	if schema.Maximum != nil && num > *schema.Maximum {
		w.fail(path, "maximum", schema, "value %v exceeds maximum %v", num, *schema.Maximum)
	}
	if schema.ExclusiveMinimum != nil && num <= *schema.ExclusiveMinimum {
		w.fail(path, "exclusiveMinimum", schema, "value %v must be greater than %v", num, *schema.ExclusiveMinimum)
	}
	if schema.ExclusiveMaximum != nil && num >= *schema.ExclusiveMaximum {
		w.fail(path, "exclusiveMaximum", schema, "value %v must be less than %v", num, *schema.ExclusiveMaximum)
	}
	if schema.MultipleOf != nil && *schema.MultipleOf > 0 {
		q := num / *schema.MultipleOf
		if math.Abs(q-math.Round(q)) > 1e-9 {
			w.fail(path, "multipleOf", schema, "value %v is not a multiple of %v", num, *schema.MultipleOf)
		}
	}
}

func (w *walk) object(value any, schema *JSONSchema, path string) {
	obj, ok := value.(map[string]any)
	if !ok {
		w.fail(path, "type", schema, "expected object, got %s", jsonKind(value))
		return
	}

	for _, req := range schema.Required {
		val, exists := obj[req]
		prop := schema.Properties[req]
		if !exists {
			w.fail(joinPath(path, req), "required", prop, "required field is missing")
		} else if val == nil {
			w.fail(joinPath(path, req), "required", prop, "required field must not be null")
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		propValue := obj[name]
		propPath := joinPath(path, name)

		if propSchema, ok := schema.Properties[name]; ok {
			// Null counts as absent; required nulls were reported above.
			if propValue == nil && propSchema.Type != TypeNull {
				continue
			}
			w.value(propValue, propSchema, propPath)
			continue
		}

		ap := schema.AdditionalProperties
		switch {
		case ap == nil:
		case ap.Schema != nil:
			w.value(propValue, ap.Schema, propPath)
		case !ap.Allowed:
			w.fail(propPath, "additionalProperties", nil, "additional property not allowed")
		}
	}
}

func (w *walk) array(value any, schema *JSONSchema, path string) {
	arr, ok := value.([]any)
	if !ok {
		w.fail(path, "type", schema, "expected array, got %s", jsonKind(value))
		return
	}

	if schema.MinItems != nil && len(arr) < *schema.MinItems {
		w.fail(path, "minItems", schema, "array has %d items, minimum is %d", len(arr), *schema.MinItems)
	}
	if schema.MaxItems != nil && len(arr) > *schema.MaxItems {
		w.fail(path, "maxItems", schema, "array has %d items, maximum is %d", len(arr), *schema.MaxItems)
	}

	if schema.UniqueItems != nil && *schema.UniqueItems {
		seen := make(map[string]bool, len(arr))
		for i, item := range arr {
			key := valueKey(item)
			if seen[key] {
				w.fail(indexPath(path, i), "uniqueItems", schema, "duplicate item in array with uniqueItems constraint")
			}
			seen[key] = true
		}
	}

	if schema.Items != nil {
		for i, item := range arr {
			w.value(item, schema.Items, indexPath(path, i))
		}
	}
}

func (v *Validator) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := v.patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	v.patterns.Store(pattern, re)
	return re, nil
}

// normalize maps an arbitrary Go value onto the JSON data model.
func normalize(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64, json.Number, map[string]any, []any:
		if !needsNormalize(value) {
			return value, nil
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// needsNormalize reports whether a JSON-shaped container holds non-JSON leaves.
func needsNormalize(value any) bool {
	switch x := value.(type) {
	case map[string]any:
		for _, e := range x {
			if needsNormalize(e) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range x {
			if needsNormalize(e) {
				return true
			}
		}
		return false
	case nil, string, bool, float64, json.Number:
		return false
	default:
		return true
	}
}

func toFloat64(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func equalValues(a, b any) bool {
	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		return aNum == bNum
	}
	if aIsNum != bIsNum {
		return false
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return aStr == bStr
	}

	aBool, aIsBool := a.(bool)
	bBool, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		return aBool == bBool
	}

	if a == nil && b == nil {
		return true
	}

	return valueKey(a) == valueKey(b)
}

func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func joinPath(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + "." + segment
}

func indexPath(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

func valueKey(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}
