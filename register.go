package rest

import (
	"fmt"
	"net/http"
	"reflect"
)

// Registrar is the interface accepted by the registration functions.
// Both *Router and *Group implement it.
type Registrar interface {
	addRoute(ri routeInfo)
	getValidator() Validator
	getErrorHandler() ErrorHandler
	getResolver() Resolver
	getCodecs() *codecRegistry
	routeMiddleware() []Middleware
}

func (r *Router) getValidator() Validator       { return r.validator }
func (r *Router) getErrorHandler() ErrorHandler { return r.errorHandler }
func (r *Router) getResolver() Resolver         { return r.resolver }
func (r *Router) getCodecs() *codecRegistry     { return r.codecs }
func (r *Router) routeMiddleware() []Middleware { return nil }

// register is the internal generic registration function. The request
// type's extraction plan is compiled here, so every schema error panics
// at startup, before the route can receive traffic.
func register[Req, Resp any](reg Registrar, method, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	ri := routeInfo{
		method:   method,
		pattern:  pattern,
		reqType:  reflect.TypeFor[Req](),
		respType: reflect.TypeFor[Resp](),
	}

	for _, opt := range opts {
		opt(&ri)
	}

	// Default status: Void response means 204, otherwise 200.
	if ri.status == 0 {
		if ri.respType == reflect.TypeFor[Void]() {
			ri.status = http.StatusNoContent
		} else {
			ri.status = http.StatusOK
		}
	}

	plan, err := planFor(ri.reqType)
	if err != nil {
		panic(fmt.Sprintf("rest: %s %s: %v", method, pattern, err))
	}
	plan, err = plan.withOptions(&ri)
	if err != nil {
		panic(fmt.Sprintf("rest: %s %s: %v", method, pattern, err))
	}
	ri.plan = plan

	ri.handler = buildHandler(h, &ri, reg)

	// Route-level middleware (from Group) is baked into the handler.
	routeMW := reg.routeMiddleware()
	for i := len(routeMW) - 1; i >= 0; i-- {
		ri.handler = routeMW[i](ri.handler)
	}

	reg.addRoute(ri)
}

// buildHandler wraps a typed Handler into an http.Handler running the
// full request pipeline: bind, validate, invoke, encode. A panic inside
// the pipeline is recovered into a 500 so one request cannot take the
// process down even without the Recovery middleware installed.
func buildHandler[Req, Resp any](h Handler[Req, Resp], ri *routeInfo, reg Registrar) http.Handler {
	validator := reg.getValidator()
	errHandler := reg.getErrorHandler()
	resolver := reg.getResolver()
	codecs := reg.getCodecs()

	writeErr := func(w http.ResponseWriter, r *http.Request, err error) {
		if errHandler != nil {
			errHandler(w, r, err)
			return
		}
		writeErrorResponse(w, err)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeErr(w, r, Errorf(http.StatusInternalServerError, "internal error: %v", rec))
			}
		}()

		if ri.bodyLimit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, ri.bodyLimit)
		}

		var req Req
		editor := newResponseEditor()

		if err := ri.plan.bind(r, &req, editor, resolver); err != nil {
			writeErr(w, r, err)
			return
		}

		if sv, ok := any(&req).(SelfValidator); ok {
			if err := sv.Validate(); err != nil {
				writeErr(w, r, err)
				return
			}
		}
		if validator != nil {
			if err := validator.Validate(&req); err != nil {
				writeErr(w, r, err)
				return
			}
		}

		resp, err := h(r.Context(), &req)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		var out any
		if resp != nil {
			out = resp
		}
		encodeResponse(w, r, out, editor, ri, codecs)
	})
}

// Get registers a GET handler.
func Get[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodGet, pattern, h, opts...)
}

// Post registers a POST handler.
func Post[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPost, pattern, h, opts...)
}

// Put registers a PUT handler.
func Put[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPut, pattern, h, opts...)
}

// Patch registers a PATCH handler.
func Patch[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPatch, pattern, h, opts...)
}

// Delete registers a DELETE handler.
func Delete[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodDelete, pattern, h, opts...)
}

// Raw registers a raw http.Handler with manual OperationInfo for the OpenAPI spec.
func Raw(reg Registrar, method, pattern string, h RawHandler, info OperationInfo) {
	ri := routeInfo{
		method:  method,
		pattern: pattern,
		summary: info.Summary,
		desc:    info.Description,
		tags:    info.Tags,
		status:  info.Status,
		handler: http.HandlerFunc(h),
	}

	routeMW := reg.routeMiddleware()
	for i := len(routeMW) - 1; i >= 0; i-- {
		ri.handler = routeMW[i](ri.handler)
	}

	reg.addRoute(ri)
}
