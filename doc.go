// Package rest is a generics-first HTTP request binding and response
// serialization engine. Handler types are the source of truth: request
// parameters, bodies, and responses are all expressed as Go types, and
// the framework derives an immutable extraction plan, validation, and
// OpenAPI 3.1 specs from them at registration time.
//
// The core handler signature removes http.ResponseWriter and *http.Request:
//
//	type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)
//
// Routes are registered with package-level generic functions:
//
//	r := rest.New(rest.WithTitle("My API"), rest.WithVersion("1.0.0"))
//	rest.Get[ListReq, ListResp](r, "/items", listItems)
//	rest.Post[CreateReq, Item](r, "/items", createItem, rest.WithStatus(http.StatusCreated))
//
// Request types use struct tags for parameter binding. Source tags cover
// path, query, header, and cookie values; a Body field (or body-tagged
// fields) covers request payloads:
//
//	type CreateReq struct {
//	    OrgID string `path:"org_id"`
//	    Limit int    `query:"limit" default:"20" maximum:"100"`
//	    Body  struct {
//	        Name string `json:"name" required:"true"`
//	    }
//	}
//
// Binding collects every failed field before answering: one request with
// three bad values gets one 422 problem response listing all three, in
// field declaration order.
//
// Middleware uses the standard func(http.Handler) http.Handler signature,
// so the entire Go middleware ecosystem works natively.
//
// OpenAPI 3.1 specs are generated from the compiled extraction plans:
//
//	r.ServeSpec("/openapi.json")
package rest
