package testutil

import (
	"context"
	"sync"
	"time"
)

// Epoch is the fixed start time used by tests and scenarios.
var Epoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// FakeTime is a manually driven wall clock.
//
// Sleep never blocks: it records the duration and advances the clock, so
// retry delays and push waits run instantly while still being observable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeTime struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeTime creates a clock stopped at start. A zero start uses Epoch.
func NewFakeTime(start time.Time) *FakeTime {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeTime{now: start}
}

// Now returns the current fake time.
func (t *FakeTime) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Sleep records d and advances the clock by it.
// Returns ctx.Err() without advancing if ctx is already done.
func (t *FakeTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sleeps = append(t.sleeps, d)
	t.now = t.now.Add(d)
	return nil
}

// Advance moves the clock forward without recording a sleep.
func (t *FakeTime) Advance(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = t.now.Add(d)
}

// Sleeps returns every duration passed to Sleep, in order.
func (t *FakeTime) Sleeps() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.sleeps...)
}
