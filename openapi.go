package rest

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi"`
	Info    OpenAPIInfo         `json:"info"`
	Paths   map[string]PathItem `json:"paths"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// PathItem maps HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary     string        `json:"summary,omitempty"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	OperationID string        `json:"operationId,omitempty"`
	Parameters  []Parameter   `json:"parameters,omitempty"`
	RequestBody *RequestBody  `json:"requestBody,omitempty"`
	Responses   OperationResp `json:"responses"`
	Deprecated  bool          `json:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string     `json:"name"`
	In          string     `json:"in"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Schema      JSONSchema `json:"schema"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool                `json:"required"`
	Content  map[string]MediaObj `json:"content"`
}

// MediaObj is a media type object with an optional schema.
type MediaObj struct {
	Schema *JSONSchema `json:"schema,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string              `json:"description"`
	Content     map[string]MediaObj `json:"content,omitempty"`
}

// OperationInfo supplies OpenAPI metadata for routes registered via Raw.
type OperationInfo struct {
	Summary     string
	Description string
	Tags        []string
	Status      int
}

// Spec generates the full OpenAPI 3.1 specification from registered
// routes. Parameters and request bodies come from the compiled
// extraction plans, so the document reflects exactly what the binder
// will accept.
func (r *Router) Spec() OpenAPISpec {
	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info: OpenAPIInfo{
			Title:   r.title,
			Version: r.version,
		},
		Paths: make(map[string]PathItem),
	}

	for i := range r.routes {
		ri := &r.routes[i]
		path := toOpenAPIPath(ri.pattern)
		method := strings.ToLower(ri.method)

		op := buildOperation(ri)

		if spec.Paths[path] == nil {
			spec.Paths[path] = make(PathItem)
		}
		spec.Paths[path][method] = op
	}

	return spec
}

// buildOperation creates an Operation from a routeInfo.
func buildOperation(ri *routeInfo) Operation {
	op := Operation{
		Summary:     ri.summary,
		Description: ri.desc,
		Tags:        ri.tags,
		OperationID: ri.operationID,
		Deprecated:  ri.deprecated,
		Responses:   make(OperationResp),
	}

	if ri.plan != nil {
		op.Parameters = planParameters(ri.plan)
		op.RequestBody = planRequestBody(ri.plan)
	}

	status := ri.status
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case ri.respType == nil || ri.respType == reflect.TypeFor[Void]():
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		op.Responses[statusToString(status)] = ResponseObj{
			Description: "No content",
		}

	case ri.respType == reflect.TypeFor[Stream]():
		op.Responses[statusToString(status)] = ResponseObj{
			Description: "Successful response",
			Content: map[string]MediaObj{
				"application/octet-stream": {},
			},
		}

	case ri.respType == reflect.TypeFor[SSEStream]():
		op.Responses[statusToString(status)] = ResponseObj{
			Description: "Successful response",
			Content: map[string]MediaObj{
				"text/event-stream": {Schema: &JSONSchema{Type: "string"}},
			},
		}

	default:
		ct := ri.contentType
		if ct == "" {
			ct = "application/json"
		}
		respSchema := typeToSchema(ri.respType)
		op.Responses[statusToString(status)] = ResponseObj{
			Description: "Successful response",
			Content: map[string]MediaObj{
				ct: {Schema: &respSchema},
			},
		}
	}

	for _, code := range ri.errors {
		op.Responses[statusToString(code)] = ResponseObj{
			Description: http.StatusText(code),
			Content: map[string]MediaObj{
				"application/problem+json": {},
			},
		}
	}

	return op
}

// planParameters projects a plan's parameter descriptors into OpenAPI
// parameters. Extract-all composites contribute one parameter per
// sub-field; extract-all map targets have no closed schema and are skipped.
func planParameters(p *handlerPlan) []Parameter {
	var params []Parameter

	add := func(d *fieldDescriptor) {
		params = append(params, Parameter{
			Name:     d.alias,
			In:       d.source.String(),
			Required: d.required,
			Schema:   descriptorSchema(d),
		})
	}

	for i := range p.params {
		d := &p.params[i]
		if d.extractAll {
			for j := range d.sub {
				add(&d.sub[j])
			}
			continue
		}
		add(d)
	}

	return params
}

// planRequestBody projects a plan's body variants into one RequestBody
// with a content entry per accepted media type.
func planRequestBody(p *handlerPlan) *RequestBody {
	if len(p.bodies) == 0 {
		return nil
	}

	rb := &RequestBody{Content: make(map[string]MediaObj)}
	jsonFields := JSONSchema{Type: "object", Properties: make(map[string]JSONSchema)}
	sawJSONFields := false

	for i := range p.bodies {
		bd := &p.bodies[i]
		if bd.required {
			rb.Required = true
		}

		switch bd.kind {
		case bodyJSON:
			schema := typeToSchema(bd.typ)
			rb.Content["application/json"] = MediaObj{Schema: &schema}
		case bodyJSONField:
			sawJSONFields = true
			jsonFields.Properties[bd.alias] = typeToSchema(bd.typ)
			if bd.required {
				jsonFields.Required = append(jsonFields.Required, bd.alias)
			}
		case bodyText:
			schema := descriptorSchema(&bd.fieldDescriptor)
			rb.Content["text/plain"] = MediaObj{Schema: &schema}
		case bodyBytes:
			rb.Content["application/octet-stream"] = MediaObj{Schema: &JSONSchema{Type: "string", Format: "binary"}}
		case bodyStream:
			rb.Content["application/octet-stream"] = MediaObj{Schema: &JSONSchema{Type: "string", Format: "binary"}}
		case bodyForm:
			schema := formSchema(p)
			rb.Content["application/x-www-form-urlencoded"] = MediaObj{Schema: &schema}
			rb.Content["multipart/form-data"] = MediaObj{Schema: &schema}
		}
	}

	if sawJSONFields {
		rb.Content["application/json"] = MediaObj{Schema: &jsonFields}
	}

	return rb
}

func formSchema(p *handlerPlan) JSONSchema {
	schema := JSONSchema{Type: "object", Properties: make(map[string]JSONSchema)}
	for i := range p.formFields {
		d := &p.formFields[i]
		schema.Properties[d.alias] = descriptorSchema(d)
		if d.required {
			schema.Required = append(schema.Required, d.alias)
		}
	}
	return schema
}

// toOpenAPIPath converts a Go 1.22 pattern like "/users/{id}" to
// an OpenAPI path. Strips wildcard suffixes.
func toOpenAPIPath(pattern string) string {
	return strings.ReplaceAll(pattern, "...", "")
}

// statusToString converts an HTTP status code to its string representation.
func statusToString(code int) string {
	return strconv.Itoa(code)
}
