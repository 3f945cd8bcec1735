// Package clock provides the system clock implementation of
// service.Clock, injected so the claim and completion engines' use of
// "now" stays testable.
package clock

import "time"

// System is a service.Clock backed by the wall clock.
type System struct{}

// New returns the system clock.
func New() System {
	return System{}
}

func (System) Now() time.Time {
	return time.Now()
}
