package rest

// paramSource identifies where a bound value originates in an HTTP request.
type paramSource int

const (
	sourcePath paramSource = iota
	sourceQuery
	sourceHeader
	sourceCookie
	sourceBody
)

// String returns the wire name of the source, as it appears in
// validation error entries and the OpenAPI "in" field.
func (s paramSource) String() string {
	switch s {
	case sourcePath:
		return "path"
	case sourceQuery:
		return "query"
	case sourceHeader:
		return "header"
	case sourceCookie:
		return "cookie"
	case sourceBody:
		return "body"
	default:
		return "unknown"
	}
}

// canDefault reports whether fields bound from this source may declare
// a default value. Path parameters are guaranteed by the route match and
// may never carry one.
func (s paramSource) canDefault() bool {
	return s != sourcePath
}
