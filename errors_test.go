package aicore

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestErrorHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindInvalidRequest, http.StatusBadRequest},
		{KindInvalidMode, http.StatusBadRequest},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindProvider, http.StatusBadGateway},
		{KindCanceled, statusClientClosedRequest},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := (&Error{Kind: tc.kind}).HTTPStatus(); got != tc.want {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := timeoutError(45*time.Second, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout error should unwrap to its cause")
	}
}

func TestErrorRetriable(t *testing.T) {
	retriable := map[Kind]bool{
		KindInvalidRequest: false,
		KindInvalidMode:    false,
		KindRateLimited:    true,
		KindTimeout:        true,
		KindProvider:       false,
		KindCanceled:       false,
		KindInternal:       false,
	}
	for kind, want := range retriable {
		if got := (&Error{Kind: kind}).Retriable(); got != want {
			t.Errorf("%s: Retriable() = %v, want %v", kind, got, want)
		}
	}
}

func TestAsError(t *testing.T) {
	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("AsError should reject non-gateway errors")
	}
	e, ok := AsError(invalidRequest("bad input"))
	if !ok || e.Kind != KindInvalidRequest {
		t.Errorf("AsError = %+v, %v", e, ok)
	}
}

func TestRateLimitedCarriesQuota(t *testing.T) {
	reset := time.Now().Add(time.Minute)
	e := rateLimited(10, reset)
	if e.Limit != 10 || !e.ResetAt.Equal(reset) {
		t.Errorf("rateLimited = %+v", e)
	}
}
