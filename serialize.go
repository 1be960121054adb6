package rest

import (
	"reflect"

	json "github.com/goccy/go-json"
)

// EncodeOption adjusts how a response value is projected before it hits
// the wire encoder.
type EncodeOption func(*encodeOptions)

// The zero value is the default projection: wire aliases, nothing
// filtered, which passes values to the encoder untouched.
type encodeOptions struct {
	byAttribute     bool
	excludeNone     bool
	excludeUnset    bool
	excludeDefaults bool
	include         map[string]bool
	exclude         map[string]bool
}

func newEncodeOptions(opts []EncodeOption) encodeOptions {
	var eo encodeOptions
	for _, opt := range opts {
		opt(&eo)
	}
	return eo
}

func (eo *encodeOptions) isDefault() bool {
	return !eo.byAttribute && !eo.excludeNone && !eo.excludeUnset && !eo.excludeDefaults &&
		len(eo.include) == 0 && len(eo.exclude) == 0
}

// ByAlias controls output key naming: wire aliases when true (the
// default), attribute names when false.
func ByAlias(b bool) EncodeOption {
	return func(eo *encodeOptions) { eo.byAttribute = !b }
}

// ExcludeNone drops fields whose value is a nil pointer, slice, or map.
func ExcludeNone() EncodeOption {
	return func(eo *encodeOptions) { eo.excludeNone = true }
}

// ExcludeUnset drops fields still at their zero value.
func ExcludeUnset() EncodeOption {
	return func(eo *encodeOptions) { eo.excludeUnset = true }
}

// ExcludeDefaults drops fields whose value equals their declared default,
// or their zero value when no default is declared.
func ExcludeDefaults() EncodeOption {
	return func(eo *encodeOptions) { eo.excludeDefaults = true }
}

// Include restricts the output to the named top-level fields. Names refer
// to output keys under the active naming mode.
func Include(fields ...string) EncodeOption {
	return func(eo *encodeOptions) {
		if eo.include == nil {
			eo.include = make(map[string]bool, len(fields))
		}
		for _, f := range fields {
			eo.include[f] = true
		}
	}
}

// Exclude removes the named top-level fields from the output.
func Exclude(fields ...string) EncodeOption {
	return func(eo *encodeOptions) {
		if eo.exclude == nil {
			eo.exclude = make(map[string]bool, len(fields))
		}
		for _, f := range fields {
			eo.exclude[f] = true
		}
	}
}

// shape projects a response value into the structure the encoder will
// emit, applying naming and filtering options. With default options the
// value passes through untouched so the encoder's own struct handling
// (and any custom MarshalJSON) stays in charge.
func shape(v any, eo *encodeOptions) any {
	if eo.isDefault() || v == nil {
		return v
	}
	return shapeValue(reflect.ValueOf(v), eo, true)
}

func shapeValue(v reflect.Value, eo *encodeOptions, top bool) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return shapeValue(v.Elem(), eo, top)

	case reflect.Struct:
		if selfMarshaling(v.Type()) {
			return v.Interface()
		}
		return shapeStruct(v, eo, top)

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		out := make([]any, v.Len())
		for i := range v.Len() {
			out[i] = shapeValue(v.Index(i), eo, false)
		}
		return out

	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			var ks string
			if key.Kind() == reflect.String {
				ks = key.String()
			} else {
				ks = keyString(key)
			}
			out[ks] = shapeValue(iter.Value(), eo, false)
		}
		return out

	default:
		return v.Interface()
	}
}

func shapeStruct(v reflect.Value, eo *encodeOptions, top bool) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		alias := jsonFieldName(f)
		if alias == "-" {
			continue
		}

		var name string
		if eo.byAttribute {
			name = attributeName(f)
		} else {
			name = alias
		}

		if top {
			if len(eo.include) > 0 && !eo.include[name] {
				continue
			}
			if eo.exclude[name] {
				continue
			}
		}

		fv := v.Field(i)
		if eo.excludeNone && isNoneValue(fv) {
			continue
		}
		if eo.excludeUnset && fv.IsZero() {
			continue
		}
		if eo.excludeDefaults && atDeclaredDefault(f, fv) {
			continue
		}

		out[name] = shapeValue(fv, eo, false)
	}

	return out
}

func isNoneValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}

// atDeclaredDefault reports whether a field holds its declared default
// value, or its zero value when none is declared.
func atDeclaredDefault(f reflect.StructField, v reflect.Value) bool {
	lit, ok := f.Tag.Lookup("default")
	if !ok {
		return v.IsZero()
	}
	tmp := reflect.New(v.Type()).Elem()
	if err := coerceScalar(tmp, lit); err != nil {
		return v.IsZero()
	}
	return tmp.Equal(v)
}

func keyString(k reflect.Value) string {
	b, err := json.Marshal(k.Interface())
	if err != nil {
		return ""
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// selfMarshaling marks struct types whose wire form is not a plain field
// map and must not be reshaped.
func selfMarshaling(t reflect.Type) bool {
	if t == timeType || t == uuidType {
		return true
	}
	return t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType)
}

var marshalerType = reflect.TypeFor[json.Marshaler]()
