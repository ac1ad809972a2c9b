package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "transient error", err: NewTransientError(errors.New("503"), 503), want: true},
		{name: "wrapped transient", err: fmt.Errorf("geocode: %w", NewTransientError(errors.New("429"), 429)), want: true},
		{name: "net timeout", err: timeoutErr{}, want: true},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, want: true},
		{name: "message heuristic", err: errors.New("dial tcp: i/o timeout"), want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "permanent", err: errors.New("invalid address"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("upstream")
	te := NewTransientError(inner, http.StatusBadGateway)
	if !errors.Is(te, inner) || te.Error() != "upstream" || te.StatusCode != 502 {
		t.Errorf("unexpected transient error: %+v", te)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 501} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("%d should not be transient", code)
		}
	}
}
