// Package usage defines the usage-accounting contract for AI invocations.
// Every request that reaches the completion provider produces exactly one
// Record, success or failure; the persistence backend is an external
// collaborator and a write failure is never fatal to the request.
package usage

import (
	"context"
	"time"
)

// Record describes one AI invocation attempt's outcome, cost, and timing.
type Record struct {
	ID           string
	CallerID     string
	Mode         string
	Provider     string
	StartedAt    time.Time
	DurationMs   int64
	Success      bool
	TokensUsed   int
	ErrorKind    string
	ErrorMessage string
	Metadata     map[string]string
}

// Recorder persists invocation records. Implementations must treat the sink
// as append-only.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Noop discards all records.
type Noop struct{}

func (Noop) Record(_ context.Context, _ Record) error { return nil }

// Query filters a List call. Zero values mean "no filter".
type Query struct {
	CallerID  string
	Mode      string
	ErrorKind string
	Limit     int
	Offset    int
}

// Result is a page of records plus the unpaged total.
type Result struct {
	Total int
	Data  []Record
}

// Lister is an optional Recorder extension for analytics reads.
type Lister interface {
	List(ctx context.Context, q Query) (Result, error)
}

// Purger is an optional Recorder extension for retention maintenance.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}
