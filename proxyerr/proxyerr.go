// Package proxyerr defines the four-category error taxonomy shared
// across the proxy and its HTTP/JSON mapping.
package proxyerr

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Category distinguishes the four error kinds the proxy can surface.
type Category string

// Recognized categories.
const (
	Config   Category = "config"
	Auth     Category = "auth"
	S3       Category = "s3"
	Internal Category = "internal"
)

// httpStatus maps a Category to its default HTTP status.
var httpStatus = map[Category]int{
	Config:   500,
	Auth:     401,
	S3:       502,
	Internal: 500,
}

// Context carries optional structured fields attached to an Error.
type Context struct {
	Bucket    string `json:"bucket,omitempty"`
	Key       string `json:"key,omitempty"`
	User      string `json:"user,omitempty"`
	Operation string `json:"operation,omitempty"`
	Details   string `json:"details,omitempty"`
}

// isEmpty reports whether every field of c is the zero value.
func (c Context) isEmpty() bool {
	return c == Context{}
}

// Error is the proxy's tagged error type: a Category, a message, an
// optional Context, an optional HTTP status override (used when an
// origin error carries an informative status), and the underlying
// cause for Unwrap/errors.Is support.
type Error struct {
	Category   Category
	Message    string
	Ctx        Context
	Status     int
	Cause      error
	RetryAfter string // forwarded verbatim from an origin 503, if present
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status to surface for this error: the
// per-instance override if set, else the category default.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return httpStatus[e.Category]
}

// New builds an Error of the given category, wrapping cause if present.
func New(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Cause: cause}
}

// Configf builds a Config error from a formatted message.
func Configf(format string, args ...any) *Error {
	return &Error{Category: Config, Message: fmt.Sprintf(format, args...)}
}

// Authf builds an Auth error from a formatted message.
func Authf(format string, args ...any) *Error {
	return &Error{Category: Auth, Message: fmt.Sprintf(format, args...)}
}

// WithContext returns a copy of e with ctx attached.
func (e *Error) WithContext(ctx Context) *Error {
	cp := *e
	cp.Ctx = ctx
	return &cp
}

// WithStatus returns a copy of e with an explicit HTTP status override,
// used to preserve an informative origin status (e.g. 503 + Retry-After).
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

// WithRetryAfter returns a copy of e carrying a Retry-After value to
// forward verbatim on the HTTP response.
func (e *Error) WithRetryAfter(value string) *Error {
	cp := *e
	cp.RetryAfter = value
	return &cp
}

// jsonBody is the error response wire shape.
type jsonBody struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Status    int      `json:"status"`
	Context   *Context `json:"context,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// ToJSON renders e as the proxy's error JSON body. requestID is
// typically a uuid.UUID.String() minted per-request by server middleware.
func (e *Error) ToJSON(requestID string) ([]byte, error) {

	body := jsonBody{
		Error:     string(e.Category),
		Message:   e.Error(),
		Status:    e.HTTPStatus(),
		RequestID: requestID,
	}
	if !e.Ctx.isEmpty() {
		ctx := e.Ctx
		body.Context = &ctx
	}

	out, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal proxy error")
	}
	return out, nil
}

// NewRequestID mints a request id for error responses and logging.
func NewRequestID() string {
	return uuid.NewString()
}

// As is a small helper mirroring errors.As for *Error, letting callers
// classify an arbitrary error without importing errors directly.
func As(err error) (*Error, bool) {
	var pe *Error
	ok := errors.As(err, &pe)
	return pe, ok
}
