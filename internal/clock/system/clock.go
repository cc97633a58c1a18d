// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements resolver.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time. The monotonic reading is kept so durations
// measured between two calls ignore wall clock steps.
func (Clock) Now() time.Time {
	return time.Now()
}
