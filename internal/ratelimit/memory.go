package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is one caller's active counting window. dead is set (under mu) when
// the entry is removed from the map; a caller holding a stale pointer must
// discard it and look the entry up again, or its increments would land on an
// orphan that no later Admit can see.
type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
	dead    bool
}

// Memory is an in-process Store. Entries are created lazily on first Admit
// and mutated under a per-caller lock so that concurrent calls from the same
// caller cannot overshoot the limit, while different callers never contend on
// anything but the map itself.
//
// Expiry is checked lazily on every Admit/Status; the optional sweeper only
// reclaims memory and is never required for correctness.
type Memory struct {
	mu      sync.RWMutex
	windows map[string]*window

	now func() time.Time // overridable in tests

	sweepOnce sync.Once
	stopSweep chan struct{}
}

// NewMemory creates an empty in-process window table.
func NewMemory() *Memory {
	return &Memory{
		windows:   make(map[string]*window),
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}
}

// Admit decides whether callerID may make one more call under p.
func (m *Memory) Admit(_ context.Context, callerID string, p Policy) (Decision, error) {
	for {
		w := m.window(callerID)

		w.mu.Lock()
		if w.dead {
			// The sweeper (or Reset) evicted this entry between our map lookup
			// and the lock. Counting here would be lost, so fetch the live one.
			w.mu.Unlock()
			continue
		}

		now := m.now()
		var d Decision
		switch {
		case !now.Before(w.resetAt):
			// No active window (fresh entry, or now >= resetAt): start a new one.
			w.count = 1
			w.resetAt = now.Add(p.Window)
			d = Decision{Allowed: true, Remaining: p.Limit - 1, ResetAt: w.resetAt}
		case w.count < p.Limit:
			w.count++
			d = Decision{Allowed: true, Remaining: p.Limit - w.count, ResetAt: w.resetAt}
		default:
			// Denied calls do not increment the count.
			d = Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
		}
		w.mu.Unlock()
		return d, nil
	}
}

// Status reports callerID's quota without consuming a slot.
func (m *Memory) Status(_ context.Context, callerID string, p Policy) (Status, error) {
	m.mu.RLock()
	w, ok := m.windows[callerID]
	m.mu.RUnlock()
	if !ok {
		return Status{Limit: p.Limit, Remaining: p.Limit}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := m.now()
	if w.dead || !now.Before(w.resetAt) {
		// Same expiry check as Admit: an evicted or expired window is full quota.
		return Status{Limit: p.Limit, Remaining: p.Limit}, nil
	}
	remaining := p.Limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Status{Limit: p.Limit, Remaining: remaining, ResetAt: w.resetAt}, nil
}

// Reset drops callerID's window unconditionally.
func (m *Memory) Reset(_ context.Context, callerID string) error {
	m.mu.Lock()
	if w, ok := m.windows[callerID]; ok {
		w.mu.Lock()
		w.dead = true
		w.mu.Unlock()
		delete(m.windows, callerID)
	}
	m.mu.Unlock()
	return nil
}

// window returns the entry for callerID, creating it if needed.
func (m *Memory) window(callerID string) *window {
	// Fast path — entry already exists.
	m.mu.RLock()
	w, ok := m.windows[callerID]
	m.mu.RUnlock()
	if ok {
		return w
	}

	// Slow path — create it, double-checking after acquiring the write lock.
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok = m.windows[callerID]; ok {
		return w
	}
	w = &window{}
	m.windows[callerID] = w
	return w
}

// StartSweeper launches a background goroutine that periodically evicts
// expired windows. Call Stop to terminate it. Running the sweeper is purely
// a memory optimization.
func (m *Memory) StartSweeper(interval time.Duration) {
	m.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-m.stopSweep:
					return
				case <-ticker.C:
					m.sweep()
				}
			}
		}()
	})
}

// Stop terminates the sweeper goroutine, if one was started.
func (m *Memory) Stop() {
	select {
	case <-m.stopSweep:
	default:
		close(m.stopSweep)
	}
}

func (m *Memory) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.windows {
		w.mu.Lock()
		if !w.resetAt.IsZero() && !now.Before(w.resetAt) {
			// Mark before the delete, while still holding the entry lock, so an
			// Admit racing with the eviction sees the tombstone and retries
			// instead of counting on the orphan.
			w.dead = true
			delete(m.windows, id)
		}
		w.mu.Unlock()
	}
}
