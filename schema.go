package rest

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type        string                `json:"type,omitempty"`
	Format      string                `json:"format,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Description string                `json:"description,omitempty"`
	Enum        []string              `json:"enum,omitempty"`
	Ref         string                `json:"$ref,omitempty"`

	Default any `json:"default,omitempty"`

	Minimum    *float64 `json:"minimum,omitempty"`
	Maximum    *float64 `json:"maximum,omitempty"`
	ExclMin    *float64 `json:"exclusiveMinimum,omitempty"`
	ExclMax    *float64 `json:"exclusiveMaximum,omitempty"`
	MultipleOf *float64 `json:"multipleOf,omitempty"`
	MinLength  *int     `json:"minLength,omitempty"`
	MaxLength  *int     `json:"maxLength,omitempty"`
	Pattern    string   `json:"pattern,omitempty"`
	MinItems   *int     `json:"minItems,omitempty"`
	MaxItems   *int     `json:"maxItems,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty"`
}

// typeToSchema converts a reflect.Type to a JSONSchema.
func typeToSchema(t reflect.Type) JSONSchema {
	if t.Kind() == reflect.Pointer {
		return typeToSchema(t.Elem())
	}

	switch t {
	case reflect.TypeFor[time.Time]():
		return JSONSchema{Type: "string", Format: "date-time"}
	case reflect.TypeFor[time.Duration]():
		return JSONSchema{Type: "string", Format: "duration"}
	case reflect.TypeFor[uuid.UUID]():
		return JSONSchema{Type: "string", Format: "uuid"}
	case reflect.TypeFor[Void]():
		return JSONSchema{}
	case reflect.TypeFor[Stream]():
		return JSONSchema{Type: "string", Format: "binary"}
	case reflect.TypeFor[SSEStream]():
		return JSONSchema{Type: "string", Format: "event-stream"}
	case reflect.TypeFor[FileUpload]():
		return JSONSchema{Type: "string", Format: "binary"}
	case reflect.TypeFor[BodyStream]():
		return JSONSchema{Type: "string", Format: "binary"}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return JSONSchema{Type: "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return JSONSchema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return JSONSchema{Type: "number"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", Format: "byte"}
		}
		items := typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Array:
		items := typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		valSchema := typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &valSchema}
	case reflect.Struct:
		return structToSchema(t)
	case reflect.Interface:
		return JSONSchema{}
	default:
		return JSONSchema{}
	}
}

// structToSchema converts a struct type to a JSONSchema with properties.
func structToSchema(t reflect.Type) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		// Binding and injection fields are not part of the body schema.
		if isParamField(f) || f.Type == reflect.TypeFor[RawRequest]() ||
			f.Type == reflect.TypeFor[*ResponseEditor]() || f.Type.Implements(injectableType) {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		prop := typeToSchema(f.Type)

		if doc := f.Tag.Get("doc"); doc != "" {
			prop.Description = doc
		}
		if cons, err := parseConstraints(f.Tag); err == nil {
			applyConstraintSchema(&prop, &cons)
		}
		if lit, ok := f.Tag.Lookup("default"); ok {
			prop.Default = lit
		}

		schema.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

// descriptorSchema builds the parameter schema for a compiled field
// descriptor, folding its declared constraints and default in.
func descriptorSchema(d *fieldDescriptor) JSONSchema {
	s := typeToSchema(d.typ)
	applyConstraintSchema(&s, &d.cons)
	if d.hasDefault && d.defaultFn == nil {
		s.Default = d.defaultLit
	}
	return s
}

func applyConstraintSchema(s *JSONSchema, c *constraints) {
	if c.empty() {
		return
	}
	s.Minimum = c.minimum
	s.Maximum = c.maximum
	s.ExclMin = c.exclMin
	s.ExclMax = c.exclMax
	s.MultipleOf = c.multipleOf
	s.MinLength = c.minLength
	s.MaxLength = c.maxLength
	s.MinItems = c.minItems
	s.MaxItems = c.maxItems
	if c.pattern != nil {
		s.Pattern = c.pattern.String()
	}
	s.Enum = c.enum
}
