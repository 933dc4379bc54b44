// Package ratelimit gates outbound requests with a fixed number of permits
// per time window. Waiters are served in arrival order.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Unit is the time unit of a guest supplied rate limit period.
type Unit int32

const (
	UnitSeconds Unit = iota
	UnitMinutes
	UnitHours
)

// ErrInvalidUnit is returned for an unknown Unit.
var ErrInvalidUnit = errors.New("ratelimit: invalid unit")

// Duration converts period units to a time.Duration.
func (u Unit) Duration(period int32) (time.Duration, error) {
	var base time.Duration
	switch u {
	case UnitSeconds:
		base = time.Second
	case UnitMinutes:
		base = time.Minute
	case UnitHours:
		base = time.Hour
	default:
		return 0, ErrInvalidUnit
	}
	if period <= 0 {
		return 0, errors.New("ratelimit: period must be positive")
	}
	return time.Duration(period) * base, nil
}

// Limiter hands out at most permits acquisitions per window. Each permit is
// returned one window after it was taken. The zero value is unlimited.
type Limiter struct {
	sem     *semaphore.Weighted
	window  time.Duration
	permits int
	mu      sync.Mutex
}

// New creates a limiter. permits <= 0 means unlimited.
func New(permits int, window time.Duration) *Limiter {
	l := &Limiter{}
	l.Configure(permits, window)
	return l
}

// Configure replaces the budget. Permits already taken are returned to the
// budget they were taken from and do not count against the new one.
func (l *Limiter) Configure(permits int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if permits <= 0 || window <= 0 {
		l.sem, l.permits, l.window = nil, 0, 0
		return
	}
	l.sem = semaphore.NewWeighted(int64(permits))
	l.permits, l.window = permits, window
}

// Limit returns the current budget. Zero permits means unlimited.
func (l *Limiter) Limit() (permits int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.permits, l.window
}

// Acquire blocks until a permit is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	sem, window := l.sem, l.window
	l.mu.Unlock()

	if sem == nil {
		return ctx.Err()
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	time.AfterFunc(window, func() { sem.Release(1) })
	return nil
}
