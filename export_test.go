package rest

import "reflect"

// Test-only exports for internal functions.
var (
	TagOptions    = tagOptions
	TagContains   = tagContains
	JSONFieldName = jsonFieldName
	AttributeName = attributeName

	TypeToSchema   = typeToSchema
	StructToSchema = structToSchema

	MatchesContentType = matchesContentType
)

// CompilePlanErr compiles the extraction plan for t and returns only the
// registration error, for schema-error tests.
func CompilePlanErr(t reflect.Type) error {
	_, err := compilePlan(t)
	return err
}

// PlanShape summarizes a compiled plan for structural assertions.
type PlanShape struct {
	ParamAliases []string
	BodyKinds    []string
	FormAliases  []string
	Injections   int
}

// CompilePlanShape compiles t and reports the plan's structure.
func CompilePlanShape(t reflect.Type) (PlanShape, error) {
	p, err := compilePlan(t)
	if err != nil {
		return PlanShape{}, err
	}
	var s PlanShape
	for i := range p.params {
		s.ParamAliases = append(s.ParamAliases, p.params[i].alias)
	}
	for i := range p.bodies {
		kind := p.bodies[i].kind.String()
		if p.bodies[i].kind == bodyJSONField {
			kind = "json-field"
		}
		s.BodyKinds = append(s.BodyKinds, kind)
	}
	for i := range p.formFields {
		s.FormAliases = append(s.FormAliases, p.formFields[i].alias)
	}
	s.Injections = len(p.injections)
	return s, nil
}

// Shape runs the response projection with the given options.
func Shape(v any, opts ...EncodeOption) any {
	eo := newEncodeOptions(opts)
	return shape(v, &eo)
}

// BodyKindString maps a body kind name used in tests to its wire group.
func BodyKindString(name string) (bodyKind, bool) {
	switch name {
	case "json":
		return bodyJSON, true
	case "text":
		return bodyText, true
	case "form":
		return bodyForm, true
	case "bytes":
		return bodyBytes, true
	case "stream":
		return bodyStream, true
	default:
		return 0, false
	}
}
