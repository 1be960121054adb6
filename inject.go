package rest

import (
	"context"
	"net/http"
	"reflect"
)

// RawRequest can be embedded in a request type to get access to
// the underlying *http.Request.
type RawRequest struct {
	Request *http.Request
}

// Resolver is the capability through which injection markers are
// satisfied. Resolution of the underlying value for a request scope is
// delegated entirely to the external resolver; the core invokes it once
// per marker per request.
type Resolver interface {
	Resolve(ctx context.Context, target reflect.Type) (any, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, target reflect.Type) (any, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, target reflect.Type) (any, error) {
	return f(ctx, target)
}

// Inject marks a request field for dependency resolution. The router's
// Resolver is asked for a value of type T once per request; the result
// lands in Value before the handler runs.
type Inject[T any] struct {
	Value T
}

func (Inject[T]) injectedType() reflect.Type { return reflect.TypeFor[T]() }

type injectable interface {
	injectedType() reflect.Type
}

var injectableType = reflect.TypeFor[injectable]()

// ResponseEditor is injected into request types that declare a
// *ResponseEditor field. Handlers mutate it to adjust the outgoing
// status, headers, cookies, or body without constructing a full response
// object. If the handler instead returns a fully-formed response
// (Stream, SSEStream, Redirect), the returned object's own status and
// content type win and the editor's are discarded; headers and cookies
// are still applied.
type ResponseEditor struct {
	status      int
	contentType string
	header      http.Header
	cookies     []*http.Cookie
	body        []byte
}

func newResponseEditor() *ResponseEditor {
	return &ResponseEditor{header: make(http.Header)}
}

// SetStatus overrides the route's declared status code.
func (e *ResponseEditor) SetStatus(code int) { e.status = code }

// Header returns the mutable header set applied to the response.
func (e *ResponseEditor) Header() http.Header { return e.header }

// SetCookie adds a Set-Cookie header to the response.
func (e *ResponseEditor) SetCookie(c *http.Cookie) { e.cookies = append(e.cookies, c) }

// SetContentType overrides content-type resolution for the response.
func (e *ResponseEditor) SetContentType(ct string) { e.contentType = ct }

// SetText sets the response body directly. A handler that sets text and
// returns nil gets the body written as-is, with no encode pass.
func (e *ResponseEditor) SetText(s string) {
	e.body = []byte(s)
	if e.contentType == "" {
		e.contentType = "text/plain; charset=utf-8"
	}
}

// SetBody sets a raw response body and content type.
func (e *ResponseEditor) SetBody(body []byte, contentType string) {
	e.body = body
	e.contentType = contentType
}

// applyHeaders writes the editor's headers and cookies to w. Status,
// content type, and body are resolved separately so that explicitly
// returned response objects can take precedence.
func (e *ResponseEditor) applyHeaders(w http.ResponseWriter) {
	for k, vs := range e.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, c := range e.cookies {
		http.SetCookie(w, c)
	}
}
