// Package clock abstracts the timers used by the ingestion loop and the
// resize debounce so tests can drive them deterministically.
//
// Production code holds a Clock field set to Real(); tests use Fake()
// and call Advance to fire timers and tickers.
package clock

import "time"

// Clock is the subset of the time package the dashboard depends on.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the call. It reports false when the timer already fired
// or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker delivers periodic ticks. C has capacity 1; slow readers lose ticks.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }
