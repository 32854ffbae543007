package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(SourceBackend, CodeNetwork,
		WithMessage("fetch shows"),
		WithHTTP(0),
		WithRequestID("req-123"),
		WithCause(cause),
	)

	msg := err.Error()
	for _, want := range []string{"source=backend", "code=network", `message="fetch shows"`, "request_id=req-123", `cause="connection refused"`} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error string %q missing %q", msg, want)
		}
	}
}

func TestNilError(t *testing.T) {
	var e *E
	if e.Error() != "<nil>" {
		t.Fatalf("nil receiver should format as <nil>, got %q", e.Error())
	}
	if e.Unwrap() != nil {
		t.Fatalf("nil receiver should unwrap to nil")
	}
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("boom")
	err := New(SourceContract, CodeUnavailable, WithCause(cause))
	wrapped := fmt.Errorf("outer: %w", err)

	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected errors.Is to reach the cause through the envelope")
	}
	if CodeOf(wrapped) != CodeUnavailable {
		t.Fatalf("expected CodeOf to find the envelope code, got %q", CodeOf(wrapped))
	}
}

func TestIsNotFound(t *testing.T) {
	err := New(SourceBackend, CodeNotFound, WithHTTP(http.StatusNotFound))
	if !IsNotFound(err) {
		t.Fatalf("expected not_found detection")
	}
	if IsNotFound(errors.New("plain")) {
		t.Fatalf("plain errors must not match not_found")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[int]Code{
		http.StatusNotFound:            CodeNotFound,
		http.StatusRequestTimeout:      CodeTimeout,
		http.StatusGatewayTimeout:      CodeTimeout,
		http.StatusTooManyRequests:     CodeUnavailable,
		http.StatusServiceUnavailable:  CodeUnavailable,
		http.StatusBadRequest:          CodeInvalid,
		http.StatusInternalServerError: CodeBackend,
	}
	for status, want := range cases {
		if got := HTTPStatus(status); got != want {
			t.Fatalf("status %d mapped to %q, want %q", status, got, want)
		}
	}
}
