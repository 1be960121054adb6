package rest

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
)

// orderedError pairs a field error with its plan position so the final
// aggregate list is stable in declaration order, regardless of the order
// in which failures were discovered.
type orderedError struct {
	order int
	fe    FieldError
}

// binder executes one plan against one live request. It is created per
// request and owns all per-request state: nothing here is shared, and
// nothing escapes the request's lifetime.
type binder struct {
	plan     *handlerPlan
	r        *http.Request
	dest     reflect.Value
	resolver Resolver

	rawBody  []byte
	bodyRead bool
	bodyErr  error

	errs []orderedError
}

// bind populates dest (a *Req) from the request. Every plan entry is
// attempted; validation failures are collected, never short-circuited,
// and surface as one aggregate ProblemDetail. Internal faults (resolver
// failures, default-factory type mismatches) return as plain errors and
// map to a 500 at the boundary.
func (p *handlerPlan) bind(r *http.Request, dest any, editor *ResponseEditor, resolver Resolver) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	b := &binder{plan: p, r: r, dest: v.Elem(), resolver: resolver}

	for i := range p.params {
		b.bindParam(&p.params[i])
	}
	b.bindBody()

	// An oversized body is a policy violation, not a field failure.
	var mbe *http.MaxBytesError
	if errors.As(b.bodyErr, &mbe) {
		return Error(http.StatusRequestEntityTooLarge, "request body too large")
	}

	if len(b.errs) > 0 {
		sort.SliceStable(b.errs, func(i, j int) bool { return b.errs[i].order < b.errs[j].order })
		out := make([]FieldError, len(b.errs))
		for i, oe := range b.errs {
			out[i] = oe.fe
		}
		return validationProblem(out)
	}

	return b.injectValues(editor)
}

// addErr records a field error at a plan position.
func (b *binder) addErr(order int, fe FieldError) {
	b.errs = append(b.errs, orderedError{order: order, fe: fe})
}

// fail tags a coercion failure with the descriptor's source and alias.
func (b *binder) fail(d *fieldDescriptor, fe *FieldError) {
	fe.Source = d.source.String()
	if fe.Field == "" {
		fe.Field = d.alias
	}
	b.addErr(d.index, *fe)
}

func (b *binder) bindParam(d *fieldDescriptor) {
	field := b.dest.Field(d.index)

	switch d.source {
	case sourcePath:
		// The route match guarantees presence; only coercion can fail.
		raw := b.r.PathValue(d.alias)
		if fe := coerceInto(field, d, []string{raw}); fe != nil {
			b.fail(d, fe)
		}

	case sourceQuery:
		if d.extractAll {
			b.bindAll(d, field, b.r.URL.Query())
			return
		}
		b.bindOne(d, field, b.r.URL.Query()[d.alias])

	case sourceHeader:
		if d.extractAll {
			b.bindAll(d, field, b.r.Header)
			return
		}
		b.bindOne(d, field, b.r.Header.Values(d.alias))

	case sourceCookie:
		if d.extractAll {
			b.bindAll(d, field, cookieValues(b.r))
			return
		}
		var vals []string
		if c, err := b.r.Cookie(d.alias); err == nil {
			vals = []string{c.Value}
		}
		b.bindOne(d, field, vals)
	}
}

// bindOne applies the missing-value policy, then coerces.
func (b *binder) bindOne(d *fieldDescriptor, field reflect.Value, vals []string) {
	if len(vals) == 0 {
		b.bindMissing(d, field)
		return
	}
	if fe := coerceInto(field, d, vals); fe != nil {
		b.fail(d, fe)
	}
}

// bindMissing resolves an absent value: default (factory evaluated per
// request), required error, or nil/zero for optional fields.
func (b *binder) bindMissing(d *fieldDescriptor, field reflect.Value) {
	switch {
	case d.hasDefault:
		if err := applyDefault(field, d); err != nil {
			b.fail(d, &FieldError{Message: err.Error(), Type: errTypeType})
		}
	case d.required:
		b.fail(d, &FieldError{Message: "field required", Type: errTypeMissing})
	}
	// Optional without default: pointer stays nil, value stays zero.
}

// bindAll binds an entire source container. Map targets receive the full
// mapping; struct targets are composites bound field-by-field, each
// sub-field validated and reported independently. An empty source with a
// composite target binds an empty composite, not an error.
func (b *binder) bindAll(d *fieldDescriptor, field reflect.Value, all map[string][]string) {
	if d.typ.Kind() == reflect.Map {
		b.bindAllMap(d, field, all)
		return
	}

	for i := range d.sub {
		sub := &d.sub[i]
		subField := field.Field(sub.index)
		vals := all[sub.alias]
		if d.source == sourceHeader {
			vals = http.Header(all).Values(sub.alias)
		}
		if len(vals) == 0 {
			b.bindSubMissing(d, sub, subField)
			continue
		}
		if fe := coerceInto(subField, sub, vals); fe != nil {
			fe.Source = sub.source.String()
			fe.Field = sub.alias
			b.addErr(d.index, *fe)
		}
	}
}

func (b *binder) bindSubMissing(parent, sub *fieldDescriptor, field reflect.Value) {
	switch {
	case sub.hasDefault:
		if err := applyDefault(field, sub); err != nil {
			b.addErr(parent.index, FieldError{
				Source:  sub.source.String(),
				Field:   sub.alias,
				Message: err.Error(),
				Type:    errTypeType,
			})
		}
	case sub.required:
		b.addErr(parent.index, FieldError{
			Source:  sub.source.String(),
			Field:   sub.alias,
			Message: "field required",
			Type:    errTypeMissing,
		})
	}
}

func (b *binder) bindAllMap(d *fieldDescriptor, field reflect.Value, all map[string][]string) {
	mt := d.typ
	out := reflect.MakeMapWithSize(mt, len(all))

	if mt.Elem().Kind() == reflect.String {
		for k, vs := range all {
			if len(vs) == 0 {
				continue
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(mt.Key()), reflect.ValueOf(vs[0]).Convert(mt.Elem()))
		}
	} else {
		for k, vs := range all {
			sv := reflect.MakeSlice(mt.Elem(), len(vs), len(vs))
			for i, v := range vs {
				sv.Index(i).Set(reflect.ValueOf(v).Convert(mt.Elem().Elem()))
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(mt.Key()), sv)
		}
	}

	field.Set(out)
}

// cookieValues flattens the request's cookies into a multi-valued map.
func cookieValues(r *http.Request) map[string][]string {
	cookies := r.Cookies()
	out := make(map[string][]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = append(out[c.Name], c.Value)
	}
	return out
}

// injectValues merges pass-through injections alongside the extracted
// values. It runs only after all extraction entries succeeded; a
// resolver failure is an internal fault, not a validation error.
func (b *binder) injectValues(editor *ResponseEditor) error {
	for _, inj := range b.plan.injections {
		field := b.dest.Field(inj.index)

		switch inj.kind {
		case injectRawRequest:
			field.Set(reflect.ValueOf(RawRequest{Request: b.r}))

		case injectEditor:
			field.Set(reflect.ValueOf(editor))

		case injectResolved:
			if b.resolver == nil {
				return fmt.Errorf("no resolver registered for injected %s", inj.typ)
			}
			val, err := b.resolver.Resolve(b.r.Context(), inj.typ)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", inj.typ, err)
			}
			rv := reflect.ValueOf(val)
			if !rv.IsValid() || !rv.Type().AssignableTo(inj.typ) {
				return fmt.Errorf("resolver returned %T for injected %s", val, inj.typ)
			}
			field.Field(0).Set(rv)
		}
	}
	return nil
}
