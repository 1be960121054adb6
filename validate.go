package rest

// SelfValidator is implemented by request types that validate themselves.
// It runs after binding succeeded, so the receiver sees fully coerced and
// defaulted values.
type SelfValidator interface {
	Validate() error
}

// Validator validates any request.
type Validator interface {
	Validate(req any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(req any) error

// Validate calls f.
func (f ValidatorFunc) Validate(req any) error { return f(req) }
