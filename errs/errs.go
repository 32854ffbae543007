// Package errs provides structured error types and helpers for showgate services.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Source names the data source a failure originated from.
type Source string

const (
	// SourceContract marks failures reported by the on-chain contract client.
	SourceContract Source = "contract"
	// SourceBackend marks failures reported by the REST backend.
	SourceBackend Source = "backend"
	// SourceConfig marks failures in configuration resolution.
	SourceConfig Source = "config"
)

// Code identifies a failure category.
type Code string

const (
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeTimeout indicates the request exceeded its deadline.
	CodeTimeout Code = "timeout"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeDecode indicates a response payload that could not be decoded.
	CodeDecode Code = "decode"
	// CodeBackend indicates a backend-side failure.
	CodeBackend Code = "backend_error"
	// CodeUnavailable indicates the service is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the showgate stack.
type E struct {
	Source    Source
	Code      Code
	HTTP      int
	RequestID string
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the source and error code.
func New(source Source, code Code, opts ...Option) *E {
	e := &E{
		Source:    source,
		Code:      code,
		HTTP:      0,
		RequestID: "",
		Message:   "",
		cause:     nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRequestID captures the request identifier the failure was observed under.
func WithRequestID(id string) Option {
	trimmed := strings.TrimSpace(id)
	return func(e *E) {
		e.RequestID = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	source := strings.TrimSpace(string(e.Source))
	if source == "" {
		source = "unknown"
	}
	parts = append(parts, "source="+source)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RequestID != "" {
		parts = append(parts, "request_id="+e.RequestID)
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf extracts the failure category from an error chain, or "" when the
// chain carries no structured envelope.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether the error chain represents a missing resource.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// HTTPStatus maps a response status code onto the failure taxonomy.
func HTTPStatus(status int) Code {
	switch {
	case status == 404:
		return CodeNotFound
	case status == 408 || status == 504:
		return CodeTimeout
	case status == 429 || status == 503:
		return CodeUnavailable
	case status >= 400 && status < 500:
		return CodeInvalid
	case status >= 500:
		return CodeBackend
	default:
		return CodeBackend
	}
}
