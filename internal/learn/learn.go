// Package learn implements the single-key capture filter the HTTP
// surface drives when an operator wants to map a new key: press
// start, press a key, inspect the captured code. It is grounded on
// original_source/src/webui/learn.rs.
package learn

import (
	"sync"
	"time"
)

// Timeout is the hard limit on how long a learning session stays
// open before it lapses into Timeout.
const Timeout = 3 * time.Second

// Status is the Filter's state.
type Status int

const (
	Idle Status = iota
	Learning
	Captured
	TimedOut
)

// Result is a point-in-time snapshot of the Filter's state.
type Result struct {
	Status      Status
	KeyCode     uint16
	RemainingMs *uint32
}

// Filter is protected by an internal mutex; critical sections are
// O(1) and hold the guard only for the event or snapshot operation,
// matching the concurrency model's Learn Filter discipline.
type Filter struct {
	mu sync.Mutex

	status       Status
	startedAt    time.Time
	capturedCode uint16
	consumedUp   *uint16
}

// New returns an idle Filter.
func New() *Filter {
	return &Filter{status: Idle}
}

// Start begins a new learning session, superseding any prior state.
func (f *Filter) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = Learning
	f.startedAt = time.Now()
	f.consumedUp = nil
}

// refreshTimeout lapses a learning session into TimedOut once the
// hard timeout elapses. Caller must hold f.mu.
func (f *Filter) refreshTimeout() {
	if f.status == Learning && time.Since(f.startedAt) >= Timeout {
		f.status = TimedOut
		f.consumedUp = nil
	}
}

// RefreshTimeout is the tick branch's poll of the learning deadline.
func (f *Filter) RefreshTimeout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTimeout()
}

// ConsumeEvent reports whether the Processor must swallow this event
// rather than hand it to the State Machine or passthrough. While
// Learning, every event is swallowed, and a press transitions to
// Captured while remembering its code so the paired release is also
// swallowed. While Captured, only that matching release is swallowed;
// everything else passes through so the operator can keep testing.
func (f *Filter) ConsumeEvent(keyCode uint16, value int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTimeout()

	switch f.status {
	case Learning:
		if value == 1 {
			f.status = Captured
			f.capturedCode = keyCode
			up := keyCode
			f.consumedUp = &up
		}
		return true
	case Captured:
		if f.consumedUp != nil && *f.consumedUp == keyCode && value == 0 {
			f.consumedUp = nil
			return true
		}
		return false
	default:
		return false
	}
}

// Snapshot returns the current learning state for GET
// /api/system/learn-result.
func (f *Filter) Snapshot() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTimeout()

	if f.status == Learning {
		remaining := Timeout - time.Since(f.startedAt)
		if remaining < 0 {
			remaining = 0
		}
		ms := uint32(remaining.Milliseconds())
		return Result{Status: Learning, RemainingMs: &ms}
	}

	r := Result{Status: f.status}
	if f.status == Captured {
		r.KeyCode = f.capturedCode
	}
	return r
}
