// Package ratelimit implements per-caller fixed-window rate limiting for the
// AI gateway. Every caller has at most one active window at a time; admitted
// calls increment a counter that resets when the window expires.
//
// The Store interface abstracts where the window table lives: Memory keeps it
// in-process (quota is then per instance), Redis shares it across instances.
package ratelimit

import (
	"context"
	"time"
)

// Policy is the process-wide limit configuration.
type Policy struct {
	// Limit is the maximum number of admitted calls per window.
	Limit int
	// Window is the fixed window length.
	Window time.Duration
}

// Default policy: 60 calls per hour per caller.
const (
	DefaultLimit  = 60
	DefaultWindow = time.Hour
)

// DefaultPolicy returns the default per-caller policy.
func DefaultPolicy() Policy {
	return Policy{Limit: DefaultLimit, Window: DefaultWindow}
}

// Decision is the outcome of an Admit call.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the caller's current window expires. Zero when the
	// caller has no active window.
	ResetAt time.Time
}

// Status is a read-only view of a caller's quota. It never consumes a slot.
type Status struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store maintains per-caller counting windows.
//
// Admit is the only mutating call on the hot path: it either starts a fresh
// window (count=1), increments the current one, or denies without
// incrementing. Status applies the same expiry check as Admit, so an expired
// window reports full remaining quota rather than a stale zero. Reset is an
// administrative override that drops the caller's entry unconditionally.
type Store interface {
	Admit(ctx context.Context, callerID string, p Policy) (Decision, error)
	Status(ctx context.Context, callerID string, p Policy) (Status, error)
	Reset(ctx context.Context, callerID string) error
}
