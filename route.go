package rest

import (
	"net/http"
	"reflect"
)

// routeInfo holds metadata for a registered route, used for request
// dispatch, binding configuration, and OpenAPI spec generation.
type routeInfo struct {
	method  string
	pattern string
	summary string
	desc    string
	tags    []string

	status     int
	deprecated bool
	errors     []int

	operationID string

	bodyLimit int64

	// contentType pins the response content type instead of negotiating
	// from the Accept header.
	contentType string

	encodeOpts encodeOptions

	// defaultFns are per-request default factories keyed by Go field
	// name, overlaid onto the compiled plan at registration.
	defaultFns map[string]func() any

	// decoder overrides the JSON decode for this route's body variants.
	decoder Decoder

	reqType  reflect.Type
	respType reflect.Type

	// respOverride re-projects handler return values through respType
	// before encoding, dropping fields the declared view does not carry.
	respOverride bool

	plan    *handlerPlan
	handler http.Handler
}

// RouteOption configures a route at registration time.
type RouteOption func(*routeInfo)

// WithStatus sets the default HTTP status code for the response.
func WithStatus(code int) RouteOption {
	return func(ri *routeInfo) {
		ri.status = code
	}
}

// WithSummary sets the OpenAPI summary for the route.
func WithSummary(s string) RouteOption {
	return func(ri *routeInfo) {
		ri.summary = s
	}
}

// WithDescription sets the OpenAPI description for the route.
func WithDescription(d string) RouteOption {
	return func(ri *routeInfo) {
		ri.desc = d
	}
}

// WithTags adds OpenAPI tags to the route.
func WithTags(tags ...string) RouteOption {
	return func(ri *routeInfo) {
		ri.tags = append(ri.tags, tags...)
	}
}

// WithDeprecated marks the route as deprecated in the OpenAPI spec.
func WithDeprecated() RouteOption {
	return func(ri *routeInfo) {
		ri.deprecated = true
	}
}

// WithErrors declares additional HTTP error status codes for the OpenAPI spec.
func WithErrors(codes ...int) RouteOption {
	return func(ri *routeInfo) {
		ri.errors = append(ri.errors, codes...)
	}
}

// WithOperationID sets a custom OpenAPI operationId.
func WithOperationID(id string) RouteOption {
	return func(ri *routeInfo) {
		ri.operationID = id
	}
}

// WithBodyLimit sets a per-route maximum request body size in bytes.
// This overrides any global BodyLimit middleware for this route.
func WithBodyLimit(maxBytes int64) RouteOption {
	return func(ri *routeInfo) {
		ri.bodyLimit = maxBytes
	}
}

// WithContentType pins the response content type for this route,
// bypassing Accept negotiation. String and []byte responses with an
// unregistered content type are written verbatim.
func WithContentType(ct string) RouteOption {
	return func(ri *routeInfo) {
		ri.contentType = ct
	}
}

// WithEncodeOptions sets the serialization options applied to this
// route's response values.
func WithEncodeOptions(opts ...EncodeOption) RouteOption {
	return func(ri *routeInfo) {
		ri.encodeOpts = newEncodeOptions(opts)
	}
}

// WithDefaultFunc attaches a per-request default factory to the named
// request field. The factory is evaluated on each request where the
// value is absent; use it for mutable defaults a literal tag cannot
// express.
// The name is the Go field name. Attaching a factory to a path
// parameter, an unknown field, or a field that already declares a
// default tag panics at registration.
func WithDefaultFunc(field string, fn func() any) RouteOption {
	return func(ri *routeInfo) {
		if ri.defaultFns == nil {
			ri.defaultFns = make(map[string]func() any)
		}
		ri.defaultFns[field] = fn
	}
}

// WithResponseType declares T as the route's wire response type. The
// handler's return value is re-projected through T before encoding, so
// fields T does not declare never reach the client; T also becomes the
// documented response schema.
func WithResponseType[T any]() RouteOption {
	return func(ri *routeInfo) {
		ri.respType = reflect.TypeFor[T]()
		ri.respOverride = true
	}
}

// WithBodyDecoder overrides the default JSON decode for this route's
// whole-document body variants.
func WithBodyDecoder(dec Decoder) RouteOption {
	return func(ri *routeInfo) {
		ri.decoder = dec
	}
}
