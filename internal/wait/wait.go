// Package wait provides the bounded polling primitive used by every stage that
// waits on asynchronous state: browser controls becoming present or clickable,
// and export files appearing on disk.
//
// A Policy polls a predicate at a fixed interval until it reports success, returns
// an error, or the timeout elapses. Time is read through a Clock so the loop can be
// driven deterministically in tests with FakeClock.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the predicate did not hold before the deadline.
var ErrTimeout = errors.New("wait: timed out")

// Clock abstracts the passage of time for polling and settle delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

// Policy bounds a single wait point.
type Policy struct {
	Timeout  time.Duration
	Interval time.Duration
	Clock    Clock
}

// NewPolicy returns a policy using the real clock.
func NewPolicy(timeout, interval time.Duration) Policy {
	return Policy{Timeout: timeout, Interval: interval, Clock: RealClock()}
}

// WithClock returns a copy of p that reads time from c.
func (p Policy) WithClock(c Clock) Policy {
	p.Clock = c
	return p
}

// WithTimeout returns a copy of p with a different timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	p.Timeout = d
	return p
}

func (p Policy) clock() Clock {
	if p.Clock == nil {
		return RealClock()
	}
	return p.Clock
}

// Until polls cond until it returns true. A non-nil error from cond aborts the
// wait immediately and is returned unchanged. The predicate is always evaluated
// at least once, even with a zero timeout.
func (p Policy) Until(ctx context.Context, cond func(ctx context.Context) (bool, error)) error {
	_, err := For(ctx, p, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// For polls fn until it yields a value. It returns the value from the first
// successful poll, or an error wrapping ErrTimeout when the deadline passes.
func For[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	clock := p.clock()
	deadline := clock.Now().Add(p.Timeout)
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		attempts++
		v, ok, err := fn(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if ok {
			return v, nil
		}
		if !clock.Now().Before(deadline) {
			var zero T
			return zero, fmt.Errorf("%w after %s (%d attempts)", ErrTimeout, p.Timeout, attempts)
		}

		sleep := p.Interval
		if remaining := deadline.Sub(clock.Now()); remaining < sleep {
			sleep = remaining
		}
		clock.Sleep(sleep)
	}
}

// Settle blocks for d on the given clock. Settle delays follow UI actions that
// have no observable completion signal; they are not cancellable.
func Settle(c Clock, d time.Duration) {
	if d <= 0 {
		return
	}
	if c == nil {
		c = RealClock()
	}
	c.Sleep(d)
}
