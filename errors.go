package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// Error type tags carried on FieldError entries.
const (
	errTypeMissing     = "missing"
	errTypeType        = "type"
	errTypeConstraint  = "constraint"
	errTypeDecode      = "decode"
	errTypeContentType = "content_type"
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string       `json:"type,omitempty"`
	Title    string       `json:"title,omitempty"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// FieldError describes a single field binding or validation failure.
// Field is the wire name of the failed value: the parameter alias for
// path/query/header/cookie sources, or a dotted location path such as
// "body.age" for body fields.
type FieldError struct {
	Source  string `json:"source"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// validationProblem aggregates every field error collected during one
// binder pass into the single 422 failure that crosses the binder boundary.
func validationProblem(errs []FieldError) *ProblemDetail {
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  "Validation Failed",
		Status: http.StatusUnprocessableEntity,
		Detail: fmt.Sprintf("%d validation error(s)", len(errs)),
		Errors: errs,
	}
}

// HTTPError is an error with an HTTP status code. Handlers return it (via
// Error/Errorf) to signal a deliberate client-facing failure; it propagates
// through the middleware chain unchanged.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// IsValidationError reports whether err is the binder's aggregate
// validation failure, letting middleware discriminate it from handler
// domain errors and internal faults.
func IsValidationError(err error) bool {
	var pd *ProblemDetail
	return errors.As(err, &pd) && pd.Status == http.StatusUnprocessableEntity
}
