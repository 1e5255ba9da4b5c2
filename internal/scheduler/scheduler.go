// Package scheduler provides the single-threaded cooperative execution model the
// plugin runs on: one loop goroutine executes host events and timer callbacks in
// order, so game state is never touched concurrently.
package scheduler

import "time"

// Clock reports the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the timer. Returns true if the timer was still pending.
	// A stopped timer never runs its callback, even if the firing was already queued.
	Stop() bool
	// Pending reports whether the timer may still fire.
	Pending() bool
}

// Scheduler schedules callbacks onto the owning loop.
// Callbacks always run on the loop goroutine.
type Scheduler interface {
	Clock
	// Once runs fn once after delay.
	Once(delay time.Duration, fn func()) Timer
	// Repeat runs fn every interval. count == 0 repeats until stopped.
	Repeat(interval time.Duration, count int, fn func()) Timer
}

// timer states
const (
	timerPending int32 = iota
	timerDone
	timerStopped
)
