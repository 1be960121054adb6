package rest

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	durationType        = reflect.TypeFor[time.Duration]()
	timeType            = reflect.TypeFor[time.Time]()
	uuidType            = reflect.TypeFor[uuid.UUID]()
)

// coerceInto converts raw wire values into field and applies the
// descriptor's constraints. It is a pure function of (descriptor, raw,
// target type): no caller state is touched on failure. The returned
// FieldError carries message and type; the binder tags source and alias.
func coerceInto(field reflect.Value, desc *fieldDescriptor, raw []string) *FieldError {
	if len(raw) == 0 {
		return &FieldError{Message: "no value to bind", Type: errTypeMissing}
	}

	if !desc.validate {
		return passThrough(field, raw)
	}

	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		inner := *desc
		inner.typ = field.Type().Elem()
		if fe := coerceInto(elem.Elem(), &inner, raw); fe != nil {
			return fe
		}
		field.Set(elem)
		return nil
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() != reflect.Uint8 {
		out := reflect.MakeSlice(field.Type(), len(raw), len(raw))
		for i, v := range raw {
			if err := coerceScalar(out.Index(i), v); err != nil {
				return &FieldError{
					Message: fmt.Sprintf("item %d: %v", i, err),
					Type:    errTypeType,
					Value:   v,
				}
			}
		}
		field.Set(out)
		return checkValueConstraints(&desc.cons, field, "")
	}

	if err := coerceScalar(field, raw[0]); err != nil {
		return &FieldError{Message: err.Error(), Type: errTypeType, Value: raw[0]}
	}
	return checkValueConstraints(&desc.cons, field, raw[0])
}

// passThrough assigns the raw value without conversion or constraint
// checks (validate=false descriptors).
func passThrough(field reflect.Value, raw []string) *FieldError {
	switch {
	case field.Kind() == reflect.String:
		field.SetString(raw[0])
	case field.Type() == reflect.TypeFor[[]string]():
		field.Set(reflect.ValueOf(raw))
	case field.Kind() == reflect.Interface:
		if len(raw) == 1 {
			field.Set(reflect.ValueOf(raw[0]))
		} else {
			field.Set(reflect.ValueOf(raw))
		}
	default:
		return &FieldError{
			Message: fmt.Sprintf("cannot pass raw value through to %s", field.Type()),
			Type:    errTypeType,
		}
	}
	return nil
}

// coerceScalar sets a reflect.Value from one string, supporting the
// closed set of scalar targets plus encoding.TextUnmarshaler.
func coerceScalar(field reflect.Value, value string) error {
	switch field.Type() {
	case durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	case timeType:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	case uuidType:
		id, err := uuid.Parse(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(id))
		return nil
	}

	if field.CanAddr() && reflect.PointerTo(field.Type()).Implements(textUnmarshalerType) {
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
	}

	//exhaustive:ignore
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return unwrapNumErr(err, "integer")
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return unwrapNumErr(err, "unsigned integer")
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return unwrapNumErr(err, "number")
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type: %s", field.Type())
	}
	return nil
}

func unwrapNumErr(err error, kind string) error {
	var ne *strconv.NumError
	if ok := asNumError(err, &ne); ok {
		return fmt.Errorf("invalid %s %q", kind, ne.Num)
	}
	return err
}

func asNumError(err error, target **strconv.NumError) bool {
	ne, ok := err.(*strconv.NumError)
	if ok {
		*target = ne
	}
	return ok
}

// checkValueConstraints runs the descriptor's constraint set against a
// coerced value. raw is the original wire string for string-shaped checks.
func checkValueConstraints(cons *constraints, fv reflect.Value, raw string) *FieldError {
	if cons.empty() {
		return nil
	}
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}

	fail := func(format string, args ...any) *FieldError {
		return &FieldError{
			Message: fmt.Sprintf(format, args...),
			Type:    errTypeConstraint,
		}
	}

	if fv.Kind() == reflect.String {
		val := fv.String()
		if raw == "" {
			raw = val
		}
		if cons.minLength != nil && len(val) < *cons.minLength {
			return fail("must be at least %d characters", *cons.minLength)
		}
		if cons.maxLength != nil && len(val) > *cons.maxLength {
			return fail("must be at most %d characters", *cons.maxLength)
		}
		if cons.pattern != nil && !cons.pattern.MatchString(val) {
			return fail("must match pattern %s", cons.pattern.String())
		}
		if len(cons.enum) > 0 && !contains(cons.enum, val) {
			return fail("must be one of [%s]", strings.Join(cons.enum, ","))
		}
	}

	if isNumericKind(fv.Kind()) {
		n := toFloat64(fv)
		if cons.minimum != nil && n < *cons.minimum {
			return fail("must be at least %v", *cons.minimum)
		}
		if cons.maximum != nil && n > *cons.maximum {
			return fail("must be at most %v", *cons.maximum)
		}
		if cons.exclMin != nil && n <= *cons.exclMin {
			return fail("must be greater than %v", *cons.exclMin)
		}
		if cons.exclMax != nil && n >= *cons.exclMax {
			return fail("must be less than %v", *cons.exclMax)
		}
		if cons.multipleOf != nil && *cons.multipleOf != 0 {
			if rem := math.Abs(math.Mod(n, *cons.multipleOf)); rem > 1e-9 && math.Abs(rem-*cons.multipleOf) > 1e-9 {
				return fail("must be a multiple of %v", *cons.multipleOf)
			}
		}
	}

	if fv.Kind() == reflect.Slice {
		length := fv.Len()
		if cons.minItems != nil && length < *cons.minItems {
			return fail("must have at least %d items", *cons.minItems)
		}
		if cons.maxItems != nil && length > *cons.maxItems {
			return fail("must have at most %d items", *cons.maxItems)
		}
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func isNumericKind(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toFloat64(v reflect.Value) float64 {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default: // float32, float64
		return v.Float()
	}
}

// applyDefault writes the descriptor's default into field. Literal
// defaults were dry-run at registration, so a failure here can only come
// from a default factory returning an incompatible value.
func applyDefault(field reflect.Value, desc *fieldDescriptor) error {
	if desc.defaultFn != nil {
		v := reflect.ValueOf(desc.defaultFn())
		if !v.IsValid() {
			return nil
		}
		if !v.Type().AssignableTo(field.Type()) {
			return fmt.Errorf("default factory for %s returned %s, want %s", desc.name, v.Type(), field.Type())
		}
		field.Set(v)
		return nil
	}
	if fe := coerceInto(field, desc, []string{desc.defaultLit}); fe != nil {
		return fmt.Errorf("default for %s: %s", desc.name, fe.Message)
	}
	return nil
}
