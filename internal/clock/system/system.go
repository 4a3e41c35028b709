// Package system provides crawler.Clock implementations.
package system

import "time"

// Clock reads the wall clock in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Posting ages are computed in UTC so a
// crawl gives the same day counts wherever it runs.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts a function to crawler.Clock.
type Func func() time.Time

// Now implements crawler.Clock.
func (f Func) Now() time.Time {
	return f()
}

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) Func {
	return func() time.Time { return t }
}
