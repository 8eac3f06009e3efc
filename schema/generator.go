package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// SchemaGenerator 利用反射从 Go 类型生成 JSON Schema.
type SchemaGenerator struct {
	// 正在处理的类型, 用于截断递归类型
	visited map[reflect.Type]bool
}

// NewSchemaGenerator 创建一个新的 SchemaGenerator 实例.
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{
		visited: make(map[reflect.Type]bool),
	}
}

// GenerateSchema 从 Go 类型生成 JSON Schema.
// 支持结构体、切片、映射、指针和基本类型。
// 字段名取自 "json" 标签, 约束取自 "jsonschema" 标签.
//
// 支持的 jsonschema 标签选项:
//   - required: 字段必填
//   - enum=a,b,c: 枚举值
//   - minimum=0 / maximum=100: 数值闭区间
//   - exclusiveMinimum=0 / exclusiveMaximum=1: 数值开区间
//   - multipleOf=0.5: 数值步长
//   - minLength=1 / maxLength=100: 字符串长度 (按字符计)
//   - pattern=^[a-z]+$: 正则
//   - format=email: 字符串格式 (email、uri、uuid、hostname、data-uri 等)
//   - minItems=1 / maxItems=10 / uniqueItems: 数组约束
//   - title=, description=: 说明
//   - errorMessage=: 面向用户的错误提示
//   - default=: 默认值
func (g *SchemaGenerator) GenerateSchema(t reflect.Type) (*JSONSchema, error) {
	g.visited = make(map[reflect.Type]bool)
	return g.generateSchema(t)
}

// GenerateSchemaFromValue 从一个值的类型生成 JSON Schema.
func (g *SchemaGenerator) GenerateSchemaFromValue(v any) (*JSONSchema, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot generate schema from nil value")
	}
	return g.GenerateSchema(reflect.TypeOf(v))
}

// For 为类型参数 T 生成 schema.
func For[T any]() (*JSONSchema, error) {
	return NewSchemaGenerator().GenerateSchema(reflect.TypeOf((*T)(nil)).Elem())
}

// MustFor 与 For 相同, 出错时 panic. 只用于包级初始化.
func MustFor[T any]() *JSONSchema {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}

func (g *SchemaGenerator) generateSchema(t reflect.Type) (*JSONSchema, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for nil type")
	}

	if t.Kind() == reflect.Ptr {
		return g.generateSchema(t.Elem())
	}

	if t == timeType {
		return NewStringSchema().WithFormat(FormatDateTime), nil
	}

	// 递归类型只展开一层
	if g.visited[t] {
		return &JSONSchema{Type: TypeObject}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return NewStringSchema(), nil

	case reflect.Bool:
		return NewBooleanSchema(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewIntegerSchema(), nil

	case reflect.Float32, reflect.Float64:
		return NewNumberSchema(), nil

	case reflect.Slice, reflect.Array:
		// []byte 按 encoding/json 的规则编码为 base64 字符串
		if t.Elem().Kind() == reflect.Uint8 {
			return NewStringSchema(), nil
		}
		elem, err := g.generateSchema(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for array element: %w", err)
		}
		return NewArraySchema(elem), nil

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", t.Key().Kind())
		}
		valueSchema, err := g.generateSchema(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for map value: %w", err)
		}
		return NewObjectSchema().WithAdditionalPropertiesSchema(valueSchema), nil

	case reflect.Struct:
		return g.generateStructSchema(t)

	case reflect.Interface:
		return &JSONSchema{}, nil

	default:
		return nil, fmt.Errorf("unsupported type: %s", t.Kind())
	}
}

func (g *SchemaGenerator) generateStructSchema(t reflect.Type) (*JSONSchema, error) {
	g.visited[t] = true
	defer func() { g.visited[t] = false }()

	schema := NewObjectSchema()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := jsonFieldName(field)
		if name == "-" {
			continue
		}

		fieldSchema, err := g.generateSchema(field.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for field %s: %w", field.Name, err)
		}

		options := parseTagOptions(field.Tag.Get("jsonschema"))
		if err := applyTagOptions(fieldSchema, options, field.Type); err != nil {
			return nil, fmt.Errorf("invalid jsonschema tag on field %s: %w", field.Name, err)
		}

		if _, ok := options["required"]; ok {
			schema.Required = append(schema.Required, name)
		}
		schema.Properties[name] = fieldSchema
	}

	return schema, nil
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

func applyTagOptions(schema *JSONSchema, options map[string]string, t reflect.Type) error {
	for key, raw := range options {
		switch key {
		case "required":
		case "title":
			schema.Title = raw
		case "description":
			schema.Description = raw
		case "errorMessage":
			schema.ErrorMessage = raw
		case "default":
			schema.Default = parseDefaultValue(raw, t)
		case "enum":
			values := strings.Split(raw, ",")
			schema.Enum = make([]any, len(values))
			for i, v := range values {
				schema.Enum[i] = strings.TrimSpace(v)
			}
		case "pattern":
			schema.Pattern = raw
		case "format":
			schema.Format = StringFormat(raw)
		case "uniqueItems":
			unique := raw == "" || raw == "true"
			schema.UniqueItems = &unique
		case "minLength", "maxLength", "minItems", "maxItems":
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			switch key {
			case "minLength":
				schema.MinLength = &n
			case "maxLength":
				schema.MaxLength = &n
			case "minItems":
				schema.MinItems = &n
			case "maxItems":
				schema.MaxItems = &n
			}
		case "minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum", "multipleOf":
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			switch key {
			case "minimum":
				schema.Minimum = &f
			case "maximum":
				schema.Maximum = &f
			case "exclusiveMinimum":
				schema.ExclusiveMinimum = &f
			case "exclusiveMaximum":
				schema.ExclusiveMaximum = &f
			case "multipleOf":
				schema.MultipleOf = &f
			}
		default:
			return fmt.Errorf("unknown option %q", key)
		}
	}
	return nil
}

// parseTagOptions 将 jsonschema 标签解析为选项映射.
// 格式: "opt1,opt2=value2,opt3=value3"
func parseTagOptions(tag string) map[string]string {
	options := make(map[string]string)
	if tag == "" {
		return options
	}

	for _, part := range splitTagParts(tag) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if key, value, ok := strings.Cut(part, "="); ok && key != "" {
			options[key] = value
		} else {
			options[part] = ""
		}
	}
	return options
}

var boolTagOptions = map[string]bool{
	"required":    true,
	"uniqueItems": true,
}

// splitTagParts 按逗号切分标签, 但保留值内部的逗号 (enum=a,b,c 或 pattern={2,}).
// 一个值内的逗号只有在下一段像新的键时才被视为分隔符.
func splitTagParts(tag string) []string {
	var parts []string
	var current strings.Builder
	inValue := false

	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch {
		case ch == '=' && !inValue:
			inValue = true
			current.WriteByte(ch)
		case ch == ',' && !inValue:
			parts = append(parts, current.String())
			current.Reset()
		case ch == ',':
			next := tag[i+1:]
			if idx := strings.IndexByte(next, ','); idx >= 0 {
				next = next[:idx]
			}
			if startsOption(strings.TrimSpace(next)) {
				parts = append(parts, current.String())
				current.Reset()
				inValue = false
				continue
			}
			current.WriteByte(ch)
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func startsOption(segment string) bool {
	if boolTagOptions[segment] {
		return true
	}
	key, _, ok := strings.Cut(segment, "=")
	if !ok || key == "" {
		return false
	}
	for _, c := range key {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func parseDefaultValue(value string, t reflect.Type) any {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Bool:
		return value == "true"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return value
}
