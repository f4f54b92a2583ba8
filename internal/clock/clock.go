// Package clock abstracts time reads and timer scheduling so the alerting
// engine can run against virtual time in tests.
package clock

import "time"

// Timer is a handle to a pending callback. Stop cancels the callback if it
// has not fired yet and reports whether it was still pending.
type Timer interface {
	Stop() bool
}

// Clock provides the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f to run once after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// System is a Clock backed by the wall clock.
type System struct{}

// NewSystem returns the wall-clock Clock.
func NewSystem() System {
	return System{}
}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	return systemTimer{t: time.AfterFunc(d, f)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}
