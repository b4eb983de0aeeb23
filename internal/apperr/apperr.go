package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrBadRequest marks malformed or missing input.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized marks a failed signature or code verification.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServiceUnavailable marks missing server configuration.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrUpstream marks a chain RPC or transaction failure.
	ErrUpstream = errors.New("upstream error")
	// ErrPreconditionFailed marks a business-rule gate that did not pass.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Error carries a taxonomy kind, a caller-facing message and the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func BadRequest(msg string) error { return &Error{Kind: ErrBadRequest, Message: msg} }

func Unauthorized(msg string) error { return &Error{Kind: ErrUnauthorized, Message: msg} }

func Unavailable(msg string) error { return &Error{Kind: ErrServiceUnavailable, Message: msg} }

func PreconditionFailed(msg string) error { return &Error{Kind: ErrPreconditionFailed, Message: msg} }

// Upstream wraps a chain failure, keeping the underlying message visible.
func Upstream(msg string, err error) error {
	return &Error{Kind: ErrUpstream, Message: msg, Err: err}
}

// Wrap attaches a kind to an arbitrary cause.
func Wrap(kind error, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

var statuses = []struct {
	kind   error
	status int
}{
	{ErrBadRequest, http.StatusBadRequest},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrPreconditionFailed, http.StatusPreconditionFailed},
}

// Status maps an error to its HTTP status. Missing configuration, chain
// failures and unknown errors are all 500; the response detail names the
// kind.
func Status(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.kind) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the caller-facing message and the detail string for a
// response body.
func Message(err error) (message, detail string) {
	var e *Error
	if errors.As(err, &e) {
		message = e.Message
		detail = e.Kind.Error()
		if e.Err != nil {
			detail += ": " + e.Err.Error()
		}
		return message, detail
	}
	return http.StatusText(Status(err)), err.Error()
}
