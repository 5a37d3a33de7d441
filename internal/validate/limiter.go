package validate

// limiter.go bounds the number of validation runs in flight. A run holds a
// whole dataset in memory, so callers queue for a slot for at most maxWait.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyRuns is returned when all run slots stay occupied for the whole
// wait timeout. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent validation runs, please try again later")

const (
	// DefaultMaxConcurrentRuns is the default limit for parallel runs.
	DefaultMaxConcurrentRuns = 2

	// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
	DefaultMaxWaitTime = 30 * time.Second
)

// RunLimiter is a weighted semaphore plus the bookkeeping needed to report
// usage and to wait for in-flight runs at shutdown.
type RunLimiter struct {
	slots   *semaphore.Weighted
	size    int
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewRunLimiter creates a limiter with maxConcurrent slots. Non-positive
// arguments select the defaults.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &RunLimiter{
		slots:   semaphore.NewWeighted(int64(maxConcurrent)),
		size:    maxConcurrent,
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire waits for a run slot. It fails with ErrTooManyRuns once maxWait
// passes, or with ctx's error if the caller gives up first. A nil return
// must be paired with Release.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
	l.track(1)
	return nil
}

// TryAcquire takes a slot only if one is free right now.
func (l *RunLimiter) TryAcquire() bool {
	if !l.slots.TryAcquire(1) {
		return false
	}
	l.track(1)
	return true
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *RunLimiter) Release() {
	l.track(-1)
	l.slots.Release(1)
}

func (l *RunLimiter) track(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	was := l.active
	l.active += delta
	switch {
	case was == 0 && l.active > 0:
		l.idle = make(chan struct{})
	case was > 0 && l.active == 0:
		close(l.idle)
	}
}

// ActiveCount returns the number of runs holding a slot.
func (l *RunLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *RunLimiter) MaxConcurrent() int { return l.size }

// Available returns the number of free slots.
func (l *RunLimiter) Available() int { return l.size - l.ActiveCount() }

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunLimiterStatus is a snapshot of slot usage.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current usage.
func (l *RunLimiter) Status() RunLimiterStatus {
	active := l.ActiveCount()
	return RunLimiterStatus{
		Active:        active,
		Available:     l.size - active,
		MaxConcurrent: l.size,
	}
}
