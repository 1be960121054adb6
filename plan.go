package rest

import (
	"fmt"
	"maps"
	"reflect"
	"sync"
	"sync/atomic"
)

// injectionKind classifies pass-through values merged into the bound
// request alongside extracted parameters.
type injectionKind int

const (
	injectRawRequest injectionKind = iota
	injectEditor
	injectResolved
)

type injection struct {
	index int
	kind  injectionKind
	typ   reflect.Type // resolution target for injectResolved
}

// handlerPlan is the immutable extraction plan built once per request
// type at registration. It is shared read-only across all in-flight
// requests; per-request state lives entirely in the binder.
type handlerPlan struct {
	reqType reflect.Type

	// params holds path/query/header/cookie descriptors in field
	// declaration order, which is also the order of aggregate errors.
	params []fieldDescriptor

	// bodies holds the body variants, at most one per content type.
	// Several bodyJSONField entries together form a single "json"
	// variant binding named top-level document fields.
	bodies []bodyDescriptor

	// formFields are bound one-by-one when the form variant is selected.
	formFields []fieldDescriptor

	injections []injection
}

func (p *handlerPlan) hasBindings() bool {
	return len(p.params) > 0 || len(p.bodies) > 0 || len(p.formFields) > 0 || len(p.injections) > 0
}

var (
	planCachePtr atomic.Pointer[map[reflect.Type]*handlerPlan]
	planCacheMu  sync.Mutex
)

func init() {
	m := make(map[reflect.Type]*handlerPlan)
	planCachePtr.Store(&m)
}

// planFor returns the cached plan for a request type, compiling it on
// first use. Reads are lock-free; the cache is updated copy-on-write.
func planFor(t reflect.Type) (*handlerPlan, error) {
	m := planCachePtr.Load()
	if p, ok := (*m)[t]; ok {
		return p, nil
	}

	planCacheMu.Lock()
	defer planCacheMu.Unlock()

	m = planCachePtr.Load()
	if p, ok := (*m)[t]; ok {
		return p, nil
	}

	p, err := compilePlan(t)
	if err != nil {
		return nil, err
	}

	next := make(map[reflect.Type]*handlerPlan, len(*m)+1)
	maps.Copy(next, *m)
	next[t] = p
	planCachePtr.Store(&next)

	return p, nil
}

// compilePlan statically analyzes a request type and produces its
// extraction plan. All registration-time schema errors surface here,
// before the handler can receive traffic. Compilation is deterministic:
// the same type always yields a structurally equal plan.
func compilePlan(t reflect.Type) (*handlerPlan, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	p := &handlerPlan{reqType: t}
	if t == reflect.TypeFor[Void]() || t.Kind() != reflect.Struct {
		return p, nil
	}

	jsonBodies := 0

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		switch {
		case f.Type == reflect.TypeFor[RawRequest]():
			p.injections = append(p.injections, injection{index: i, kind: injectRawRequest})
			continue
		case f.Type == reflect.TypeFor[*ResponseEditor]():
			p.injections = append(p.injections, injection{index: i, kind: injectEditor})
			continue
		case f.Type.Implements(injectableType):
			target := reflect.Zero(f.Type).Interface().(injectable).injectedType()
			p.injections = append(p.injections, injection{index: i, kind: injectResolved, typ: target})
			continue
		}

		srcTag := ""
		for _, tag := range paramTags {
			if f.Tag.Get(tag) == "" {
				continue
			}
			if srcTag != "" {
				return nil, fmt.Errorf("%s.%s: multiple binding tags (%s, %s)", t.Name(), f.Name, srcTag, tag)
			}
			srcTag = tag
		}

		switch {
		case srcTag != "":
			if f.Tag.Get("body") != "" || f.Tag.Get("form") != "" {
				return nil, fmt.Errorf("%s.%s: %s tag cannot be combined with body or form binding", t.Name(), f.Name, srcTag)
			}
			alias, opts := tagOptions(f.Tag.Get(srcTag))
			d, err := newFieldDescriptor(f, i, tagSources[srcTag], alias, opts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.Name(), err)
			}
			if d.extractAll && d.typ.Kind() == reflect.Struct {
				d.sub, err = compileComposite(d.typ, d.source)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", t.Name(), f.Name, err)
				}
			}
			p.params = append(p.params, d)

		case f.Tag.Get("form") != "":
			alias, opts := tagOptions(f.Tag.Get("form"))
			d, err := newFieldDescriptor(f, i, sourceBody, alias, opts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.Name(), err)
			}
			p.formFields = append(p.formFields, d)

		case f.Tag.Get("body") != "":
			bd, err := newBodyDescriptor(t, f, i)
			if err != nil {
				return nil, err
			}
			if bd.kind == bodyJSON {
				jsonBodies++
			}
			p.bodies = append(p.bodies, bd)

		case f.Type == reflect.TypeFor[BodyStream]():
			bd, err := newBodyDescriptor(t, f, i)
			if err != nil {
				return nil, err
			}
			p.bodies = append(p.bodies, bd)

		case f.Name == "Body":
			bd, err := newBodyDescriptor(t, f, i)
			if err != nil {
				return nil, err
			}
			jsonBodies++
			p.bodies = append(p.bodies, bd)
		}
	}

	// A struct with no binding declarations at all is, in its entirety,
	// a JSON body.
	if !p.hasBindings() && t.NumField() > 0 {
		p.bodies = append(p.bodies, bodyDescriptor{
			fieldDescriptor: fieldDescriptor{
				name:     t.Name(),
				alias:    "body",
				index:    -1,
				typ:      t,
				source:   sourceBody,
				validate: true,
			},
			kind: bodyJSON,
		})
		if err := checkBodyFieldTags(t, make(map[reflect.Type]bool)); err != nil {
			return nil, err
		}
		return p, nil
	}

	// Multiple whole-document JSON declarations switch to field mode:
	// each binds one named top-level key, validated independently.
	if jsonBodies > 1 {
		for i := range p.bodies {
			if p.bodies[i].kind == bodyJSON {
				p.bodies[i].kind = bodyJSONField
			}
		}
	}

	// Form fields form one implicit variant covering urlencoded and
	// multipart payloads.
	if len(p.formFields) > 0 {
		p.bodies = append(p.bodies, bodyDescriptor{
			fieldDescriptor: fieldDescriptor{
				name:     "form",
				alias:    "form",
				index:    -1,
				source:   sourceBody,
				validate: true,
			},
			kind: bodyForm,
		})
	}

	if err := checkBodyVariants(t, p.bodies); err != nil {
		return nil, err
	}
	seen := make(map[reflect.Type]bool)
	for i := range p.bodies {
		bd := &p.bodies[i]
		if bd.kind != bodyJSON && bd.kind != bodyJSONField {
			continue
		}
		if err := checkBodyFieldTags(bd.typ, seen); err != nil {
			return nil, err
		}
	}
	if err := dryRunDefaults(p); err != nil {
		return nil, err
	}

	return p, nil
}

// compileComposite builds independent sub-descriptors for each field of
// an extract-all composite struct. Sub-fields use the same source tag
// vocabulary; untagged fields fall back to their attribute name.
func compileComposite(t reflect.Type, src paramSource) ([]fieldDescriptor, error) {
	var subs []fieldDescriptor
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		alias, opts := tagOptions(f.Tag.Get(src.String()))
		if alias == "*" {
			return nil, fmt.Errorf("field %s: nested extract-all is not supported", f.Name)
		}
		if alias == "" {
			alias = attributeName(f)
		}
		d, err := newFieldDescriptor(f, i, src, alias, opts)
		if err != nil {
			return nil, err
		}
		subs = append(subs, d)
	}
	return subs, nil
}

// newBodyDescriptor builds the descriptor for one body-tagged field,
// deriving the extraction strategy from the tag value and field type.
func newBodyDescriptor(t reflect.Type, f reflect.StructField, index int) (bodyDescriptor, error) {
	kindName, opts := tagOptions(f.Tag.Get("body"))
	if f.Tag.Get("body") == "" {
		// Untagged BodyStream field or the conventional Body field.
		if f.Type == reflect.TypeFor[BodyStream]() {
			kindName = "stream"
		} else {
			kindName = "json"
		}
	}

	alias := "body"
	var kind bodyKind
	switch kindName {
	case "json":
		kind = bodyJSON
		alias = jsonFieldName(f)
		if f.Name == "Body" && f.Tag.Get("json") == "" {
			alias = "body"
		}
	case "text":
		kind = bodyText
	case "bytes":
		kind = bodyBytes
		if f.Type != reflect.TypeFor[[]byte]() {
			return bodyDescriptor{}, fmt.Errorf("%s.%s: bytes body target must be []byte, got %s", t.Name(), f.Name, f.Type)
		}
	case "stream":
		kind = bodyStream
		if f.Type != reflect.TypeFor[BodyStream]() {
			return bodyDescriptor{}, fmt.Errorf("%s.%s: stream body target must be rest.BodyStream, got %s", t.Name(), f.Name, f.Type)
		}
	case "form":
		return bodyDescriptor{}, fmt.Errorf("%s.%s: declare form fields with form tags, not a form body variant", t.Name(), f.Name)
	default:
		return bodyDescriptor{}, fmt.Errorf("%s.%s: unknown body kind %q", t.Name(), f.Name, kindName)
	}

	d, err := newFieldDescriptor(f, index, sourceBody, alias, opts)
	if err != nil {
		return bodyDescriptor{}, fmt.Errorf("%s: %w", t.Name(), err)
	}
	d.extractAll = false

	bd := bodyDescriptor{
		fieldDescriptor: d,
		kind:            kind,
		strict:          tagContains(opts, "strict"),
	}

	if bd.kind == bodyStream && bd.hasDefault {
		return bodyDescriptor{}, fmt.Errorf("%s.%s: stream body cannot declare a default", t.Name(), f.Name)
	}
	if bd.kind == bodyJSON && bd.hasDefault && !scalarDefaultable(f.Type) {
		return bodyDescriptor{}, fmt.Errorf("%s.%s: literal default unsupported for %s body, use WithDefaultFunc", t.Name(), f.Name, f.Type)
	}

	return bd, nil
}

func scalarDefaultable(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return t == timeType || t == durationType || t == uuidType
	}
}

// checkBodyFieldTags validates the constraint tags of every field a JSON
// body decode can reach, so a malformed tag is a registration error and
// the bind-time parse can never fail. Walks nested structs once, cycles
// guarded by seen.
func checkBodyFieldTags(t reflect.Type, seen map[reflect.Type]bool) error {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || plainDecoded(t) || seen[t] {
		return nil
	}
	seen[t] = true

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || isParamField(f) || f.Type == reflect.TypeFor[RawRequest]() {
			continue
		}
		if jsonFieldName(f) == "-" {
			continue
		}
		if _, err := parseConstraints(f.Tag); err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name(), f.Name, err)
		}
		if err := checkBodyFieldTags(f.Type, seen); err != nil {
			return err
		}
	}
	return nil
}

// checkBodyVariants enforces the all-or-nothing merge policy: at most one
// variant per content type, with named JSON fields counting as one.
func checkBodyVariants(t reflect.Type, bodies []bodyDescriptor) error {
	seen := make(map[string]string) // content-type group -> field name
	for _, bd := range bodies {
		group := bd.kind.String()
		if bd.kind == bodyJSONField {
			continue // grouped under one json variant
		}
		if prev, ok := seen[group]; ok {
			return fmt.Errorf("%s: fields %s and %s both declare a %s body", t.Name(), prev, bd.name, group)
		}
		seen[group] = bd.name
	}
	return nil
}

// dryRunDefaults coerces every literal default once at registration so a
// malformed literal fails startup instead of every request.
func dryRunDefaults(p *handlerPlan) error {
	check := func(d *fieldDescriptor) error {
		if !d.hasDefault || d.typ == nil {
			return nil
		}
		if d.typ == reflect.TypeFor[[]byte]() {
			return nil
		}
		tmp := reflect.New(d.typ).Elem()
		if fe := coerceInto(tmp, d, []string{d.defaultLit}); fe != nil {
			return fmt.Errorf("field %s: invalid default %q: %s", d.name, d.defaultLit, fe.Message)
		}
		return nil
	}

	for i := range p.params {
		if err := check(&p.params[i]); err != nil {
			return err
		}
	}
	for i := range p.formFields {
		if err := check(&p.formFields[i]); err != nil {
			return err
		}
	}
	for i := range p.bodies {
		if p.bodies[i].kind == bodyBytes {
			continue
		}
		if err := check(&p.bodies[i].fieldDescriptor); err != nil {
			return err
		}
	}
	return nil
}

// withOptions overlays route-level options (default factories, body
// decoder) onto a cached plan, returning a private copy when anything
// changes. The shared cached plan is never mutated.
func (p *handlerPlan) withOptions(ri *routeInfo) (*handlerPlan, error) {
	if len(ri.defaultFns) == 0 && ri.decoder == nil {
		return p, nil
	}

	clone := &handlerPlan{
		reqType:    p.reqType,
		params:     append([]fieldDescriptor(nil), p.params...),
		bodies:     append([]bodyDescriptor(nil), p.bodies...),
		formFields: append([]fieldDescriptor(nil), p.formFields...),
		injections: p.injections,
	}

	if ri.decoder != nil {
		for i := range clone.bodies {
			if clone.bodies[i].kind == bodyJSON || clone.bodies[i].kind == bodyJSONField {
				clone.bodies[i].decoder = ri.decoder
			}
		}
	}

	for name, fn := range ri.defaultFns {
		d := clone.findField(name)
		if d == nil {
			return nil, fmt.Errorf("WithDefaultFunc: %s has no bound field %q", p.reqType.Name(), name)
		}
		if d.source == sourcePath {
			return nil, fmt.Errorf("WithDefaultFunc: path parameter %q cannot have a default", name)
		}
		if d.hasDefault {
			return nil, fmt.Errorf("WithDefaultFunc: field %q already declares a default tag", name)
		}
		d.hasDefault = true
		d.defaultFn = fn
		d.required = false
	}

	for i := range clone.bodies {
		if clone.bodies[i].kind == bodyStream && clone.bodies[i].hasDefault {
			return nil, fmt.Errorf("WithDefaultFunc: stream body %q cannot have a default", clone.bodies[i].name)
		}
	}

	return clone, nil
}

// findField locates a descriptor by Go field name across all entry lists.
func (p *handlerPlan) findField(name string) *fieldDescriptor {
	for i := range p.params {
		if p.params[i].name == name {
			return &p.params[i]
		}
	}
	for i := range p.formFields {
		if p.formFields[i].name == name {
			return &p.formFields[i]
		}
	}
	for i := range p.bodies {
		if p.bodies[i].name == name {
			return &p.bodies[i].fieldDescriptor
		}
	}
	return nil
}
