package rest

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"runtime/debug"
)

// Middleware is the standard middleware signature compatible with the entire
// Go middleware ecosystem.
type Middleware func(next http.Handler) http.Handler

// Next resumes the middleware chain from inside a continuation-style
// layer. Each layer may call it at most once.
type Next func()

// Layer adapts a continuation-style function into a Middleware. Not
// calling next short-circuits the chain; calling it a second time is a
// programming error and panics.
func Layer(fn func(w http.ResponseWriter, r *http.Request, next Next)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called := false
			fn(w, r, func() {
				if called {
					panic("rest: middleware continuation called twice")
				}
				called = true
				next.ServeHTTP(w, r)
			})
		})
	}
}

// Bound builds middleware with typed parameter access: P is bound from
// the request with the same extraction rules as handler request types.
// Binding failures answer with the aggregate validation problem and stop
// the chain; fn returning false stops the chain after fn wrote its own
// response. The plan is compiled when the middleware is built, so schema
// errors panic at startup. A body-tagged field in P buffers the payload
// so the downstream handler's body variant still sees it.
func Bound[P any](fn func(w http.ResponseWriter, r *http.Request, p *P) bool) Middleware {
	plan, err := planFor(reflect.TypeFor[P]())
	if err != nil {
		panic("rest: " + err.Error())
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var buffered []byte
			if len(plan.bodies) > 0 && r.Body != nil {
				data, err := io.ReadAll(r.Body)
				if err != nil {
					var mbe *http.MaxBytesError
					if errors.As(err, &mbe) {
						writeErrorResponse(w, Error(http.StatusRequestEntityTooLarge, "request body too large"))
						return
					}
					writeErrorResponse(w, Error(http.StatusBadRequest, "read request body: "+err.Error()))
					return
				}
				buffered = data
				r.Body = io.NopCloser(bytes.NewReader(buffered))
			}

			var p P
			if err := plan.bind(r, &p, nil, nil); err != nil {
				writeErrorResponse(w, err)
				return
			}
			if !fn(w, r, &p) {
				return
			}
			if buffered != nil {
				r.Body = io.NopCloser(bytes.NewReader(buffered))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recovery returns middleware that recovers from panics and responds with 500.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
