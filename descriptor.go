package rest

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
)

// constraints is the normalized constraint set parsed once from struct
// tags at registration time. Numeric bounds apply post-coercion; string
// bounds apply to the raw wire value.
type constraints struct {
	minimum    *float64
	maximum    *float64
	exclMin    *float64
	exclMax    *float64
	multipleOf *float64

	minLength *int
	maxLength *int
	pattern   *regexp.Regexp
	enum      []string

	minItems *int
	maxItems *int
}

func (c *constraints) empty() bool {
	return c.minimum == nil && c.maximum == nil &&
		c.exclMin == nil && c.exclMax == nil && c.multipleOf == nil &&
		c.minLength == nil && c.maxLength == nil &&
		c.pattern == nil && len(c.enum) == 0 &&
		c.minItems == nil && c.maxItems == nil
}

// parseConstraints reads the constraint tag vocabulary off a struct field.
// Malformed constraint values are registration errors, not silent skips.
func parseConstraints(tag reflect.StructTag) (constraints, error) {
	var c constraints

	num := func(name string, dst **float64) error {
		v, ok := tag.Lookup(name)
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("constraint %s: %w", name, err)
		}
		*dst = &f
		return nil
	}
	count := func(name string, dst **int) error {
		v, ok := tag.Lookup(name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("constraint %s: %w", name, err)
		}
		*dst = &n
		return nil
	}

	for _, step := range []error{
		num("minimum", &c.minimum),
		num("maximum", &c.maximum),
		num("exclusiveMinimum", &c.exclMin),
		num("exclusiveMaximum", &c.exclMax),
		num("multipleOf", &c.multipleOf),
		count("minLength", &c.minLength),
		count("maxLength", &c.maxLength),
		count("minItems", &c.minItems),
		count("maxItems", &c.maxItems),
	} {
		if step != nil {
			return c, step
		}
	}

	if v, ok := tag.Lookup("pattern"); ok {
		re, err := regexp.Compile(v)
		if err != nil {
			return c, fmt.Errorf("constraint pattern: %w", err)
		}
		c.pattern = re
	}
	if v, ok := tag.Lookup("enum"); ok {
		c.enum = splitList(v)
	}

	return c, nil
}

// fieldDescriptor is the normalized per-field schema for one bound value.
// Descriptors are built once per request type and shared read-only across
// requests.
type fieldDescriptor struct {
	name  string // Go field name
	alias string // wire name looked up in the source
	index int    // struct field index

	typ    reflect.Type
	source paramSource

	required   bool
	hasDefault bool
	defaultLit string
	defaultFn  func() any // attached via WithDefaultFunc at registration

	// validate=false passes the raw wire value through without coercion
	// or constraint checks; defaulting and presence rules still apply.
	validate bool

	// extractAll binds the entire source container instead of one key.
	extractAll bool

	// sub holds the compiled descriptors of an extract-all composite
	// struct, each validated independently at bind time.
	sub []fieldDescriptor

	cons constraints
}

// newFieldDescriptor normalizes a tagged struct field into a descriptor.
// All registration-time schema errors for non-body parameters surface here.
func newFieldDescriptor(f reflect.StructField, index int, src paramSource, alias, opts string) (fieldDescriptor, error) {
	d := fieldDescriptor{
		name:     f.Name,
		alias:    alias,
		index:    index,
		typ:      f.Type,
		source:   src,
		validate: !tagContains(opts, "novalidate"),
	}

	if alias == "*" {
		d.extractAll = true
		d.alias = f.Name
		if !allowsExtractAll(f.Type) {
			return d, fmt.Errorf("field %s: extract-all target must be a struct or string-keyed map, got %s", f.Name, f.Type)
		}
	}

	if lit, ok := f.Tag.Lookup("default"); ok {
		if !src.canDefault() {
			return d, fmt.Errorf("field %s: %s parameters cannot declare a default", f.Name, src)
		}
		d.hasDefault = true
		d.defaultLit = lit
	}

	if tagContains(opts, "required") || f.Tag.Get("required") == "true" {
		if d.hasDefault {
			return d, fmt.Errorf("field %s: required and default are mutually exclusive", f.Name)
		}
		d.required = true
	}
	if src == sourcePath {
		d.required = true
	}

	if !d.validate && !allowsUnvalidated(f.Type) {
		return d, fmt.Errorf("field %s: novalidate target must be string, []string, or any, got %s", f.Name, f.Type)
	}

	cons, err := parseConstraints(f.Tag)
	if err != nil {
		return d, fmt.Errorf("field %s: %w", f.Name, err)
	}
	d.cons = cons

	return d, nil
}

// allowsExtractAll reports whether t can hold an entire source container:
// a composite struct bound field-by-field, or a string-keyed map of
// string/[]string values (url.Values and http.Header qualify).
func allowsExtractAll(t reflect.Type) bool {
	if t.Kind() == reflect.Struct {
		return true
	}
	if t.Kind() != reflect.Map || t.Key().Kind() != reflect.String {
		return false
	}
	elem := t.Elem()
	if elem.Kind() == reflect.String {
		return true
	}
	return elem.Kind() == reflect.Slice && elem.Elem().Kind() == reflect.String
}

func allowsUnvalidated(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Interface:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.String
	default:
		return false
	}
}

// bodyKind selects the extraction strategy for one body variant.
type bodyKind int

const (
	bodyJSON      bodyKind = iota // whole payload decoded as JSON
	bodyJSONField                 // one named top-level JSON document field
	bodyText                      // payload read as text, coerced to a scalar
	bodyForm                      // urlencoded or multipart fields bound one-by-one
	bodyBytes                     // full payload as []byte
	bodyStream                    // live byte stream, no buffering
)

func (k bodyKind) String() string {
	switch k {
	case bodyJSON, bodyJSONField:
		return "json"
	case bodyText:
		return "text"
	case bodyForm:
		return "form"
	case bodyBytes:
		return "bytes"
	case bodyStream:
		return "stream"
	default:
		return "unknown"
	}
}

// bodyDescriptor extends fieldDescriptor with body-specific strategy data.
type bodyDescriptor struct {
	fieldDescriptor

	kind bodyKind

	// strict requires the incoming Content-Type to match before any
	// decode is attempted; a mismatch is a content-type validation
	// error rather than a decode error.
	strict bool

	// decoder overrides the default JSON decode for this route.
	decoder Decoder
}
