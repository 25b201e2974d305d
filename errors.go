package aicore

import (
	"fmt"
	"net/http"
	"time"
)

// Kind is a stable machine-readable error category. Every failure the
// gateway returns carries exactly one Kind; clients use it to decide whether
// a retry makes sense.
type Kind string

// The error taxonomy.
const (
	// KindInvalidRequest — malformed input; never reaches the provider and
	// never consumes a rate-limit slot.
	KindInvalidRequest Kind = "INVALID_REQUEST"
	// KindInvalidMode — requested mode is outside the closed set.
	KindInvalidMode Kind = "INVALID_MODE"
	// KindRateLimited — caller exceeded their window quota; retriable after
	// ResetAt.
	KindRateLimited Kind = "RATE_LIMITED"
	// KindTimeout — provider did not respond within the bound.
	KindTimeout Kind = "TIMEOUT"
	// KindProvider — any other provider-side failure. The detailed cause is
	// recorded internally; callers see a generic message.
	KindProvider Kind = "PROVIDER_ERROR"
	// KindInternal — a defect in the gateway itself.
	KindInternal Kind = "INTERNAL_ERROR"
	// KindCanceled — the caller abandoned the request before the provider
	// finished. Never delivered over the wire (the client is gone); it exists
	// so aborts are accounted apart from provider faults.
	KindCanceled Kind = "CANCELED"
)

// statusClientClosedRequest is nginx's non-standard 499, the conventional
// code for a client that disconnected mid-request.
const statusClientClosedRequest = 499

// Error is the typed failure the gateway returns.
type Error struct {
	Kind    Kind
	Message string

	// Quota metadata, set for KindRateLimited.
	Limit   int
	ResetAt time.Time

	// cause is the internal detail (recorded in usage logs, never shown to
	// callers for provider faults).
	cause error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

// Unwrap exposes the internal cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Retriable reports whether the caller may retry the same request later
// without changing it.
func (e *Error) Retriable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTimeout
}

// HTTPStatus maps the kind to the transport status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest, KindInvalidMode:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindProvider:
		return http.StatusBadGateway
	case KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// AsError unwraps err into *Error when the gateway produced it.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

func invalidRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func invalidMode(mode string, cause error) *Error {
	return &Error{
		Kind:    KindInvalidMode,
		Message: fmt.Sprintf("unsupported operation mode %q", mode),
		cause:   cause,
	}
}

func rateLimited(limit int, resetAt time.Time) *Error {
	return &Error{
		Kind:    KindRateLimited,
		Message: "rate limit exceeded; retry after the window resets",
		Limit:   limit,
		ResetAt: resetAt,
	}
}

func timeoutError(bound time.Duration, cause error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("provider did not respond within %s", bound),
		cause:   cause,
	}
}

func canceledError(cause error) *Error {
	return &Error{
		Kind:    KindCanceled,
		Message: "request canceled before the provider responded",
		cause:   cause,
	}
}

func providerError(cause error) *Error {
	// The caller-facing message stays generic; the cause goes to the usage
	// record and logs only.
	return &Error{
		Kind:    KindProvider,
		Message: "the AI provider failed to process the request",
		cause:   cause,
	}
}

func internalError(cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "internal error",
		cause:   cause,
	}
}
