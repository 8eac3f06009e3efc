package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/BaSui01/genflow/schema"
)

const fieldPath = `[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`

// {{{field}}} is tried before {{field}} so triple braces are consumed whole.
var placeholderRe = regexp.MustCompile(`\{\{\{\s*(` + fieldPath + `)\s*\}\}\}|\{\{\s*(` + fieldPath + `)\s*\}\}`)

// Template is a prompt with named placeholders resolved against the flow input.
type Template struct {
	text         string
	placeholders []string
}

// ParseTemplate parses a prompt template.
// Any "{{" that does not open a well-formed placeholder is rejected.
func ParseTemplate(text string) (*Template, error) {
	t := &Template{text: text}
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if !seen[name] {
			seen[name] = true
			t.placeholders = append(t.placeholders, name)
		}
	}

	rest := placeholderRe.ReplaceAllString(text, "")
	if i := strings.Index(rest, "{{"); i >= 0 {
		end := i + 24
		if end > len(rest) {
			end = len(rest)
		}
		return nil, &schema.SchemaError{Path: "template", Reason: fmt.Sprintf("malformed placeholder near %q", rest[i:end])}
	}
	return t, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(text string) *Template {
	t, err := ParseTemplate(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Text returns the template source.
func (t *Template) Text() string { return t.text }

// Placeholders returns the distinct placeholder paths in order of first appearance.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

// Check reports the first placeholder that a valid input could leave without a
// value: undeclared, optional at some level of its path, or typed null.
func (t *Template) Check(input *schema.JSONSchema) error {
	for _, p := range t.placeholders {
		segs := strings.Split(p, ".")
		if input.Lookup(segs) == nil {
			return &schema.SchemaError{Path: p, Reason: "placeholder is not declared in the input schema"}
		}
		cur := input
		for i, seg := range segs {
			if !cur.IsRequired(seg) {
				return &schema.SchemaError{Path: strings.Join(segs[:i+1], "."), Reason: fmt.Sprintf("placeholder %q references an optional field; mark it required", p)}
			}
			cur = cur.GetProperty(seg)
		}
		if cur.Type == schema.TypeNull {
			return &schema.SchemaError{Path: p, Reason: "placeholder references a field that is always null"}
		}
	}
	return nil
}

// Render substitutes every placeholder with its value from input.
// A placeholder without a value is a configuration error; nothing is rendered empty.
func (t *Template) Render(input map[string]any) (string, error) {
	var renderErr error
	out := placeholderRe.ReplaceAllStringFunc(t.text, func(m string) string {
		if renderErr != nil {
			return m
		}
		sub := placeholderRe.FindStringSubmatch(m)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		v, ok := lookupValue(input, name)
		if !ok {
			renderErr = &schema.SchemaError{Path: name, Reason: "placeholder has no value in the input"}
			return m
		}
		s, err := stringify(v)
		if err != nil {
			renderErr = &schema.SchemaError{Path: name, Reason: err.Error()}
			return m
		}
		return s
	})
	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}

func lookupValue(input map[string]any, path string) (any, bool) {
	var cur any = input
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func stringify(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return "", fmt.Errorf("value is not renderable: %w", err)
		}
		return string(data), nil
	}
}

// structuredInstruction is appended to prompts of flows with object outputs.
// Output validation still runs on every result.
func structuredInstruction(out *schema.JSONSchema) (string, error) {
	schemaJSON, err := out.ToJSONIndent()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("\n\nIMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. You MUST respond with valid JSON that conforms to the schema below.\n")
	sb.WriteString("2. Do NOT include any text before or after the JSON.\n")
	sb.WriteString("3. Do NOT wrap the JSON in markdown code blocks.\n")
	sb.WriteString("4. Ensure all required fields are present and have valid values.\n")
	sb.WriteString("5. Follow all constraints specified in the schema (enum values, min/max, patterns, etc.).\n\n")
	sb.WriteString("JSON Schema:\n")
	sb.WriteString("```json\n")
	sb.Write(schemaJSON)
	sb.WriteString("\n```\n\n")
	sb.WriteString("Respond with ONLY the JSON object.")
	return sb.String(), nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

// extractJSON pulls the JSON body out of a response that may carry fences or prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		if m := fenceRe.FindStringSubmatch(response); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}

	return response
}
