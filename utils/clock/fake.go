package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Safe for concurrent use.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order, without the clock lock held, so they may schedule or stop
// other timers.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	callback func()         // AfterFunc
	channel  chan time.Time // ticker
	interval time.Duration
	stopped  bool
	fired    bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	waiter := &fakeWaiter{deadline: c.current.Add(d), callback: f}
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if waiter.stopped || waiter.fired {
			return false
		}
		waiter.stopped = true
		return true
	}}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{deadline: c.current.Add(d), channel: channel, interval: d}
	c.waiters = append(c.waiters, waiter)
	return &Ticker{C: channel, stopFunc: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		waiter.stopped = true
	}}
}

// Advance moves the clock forward by d and fires every timer whose
// deadline falls inside the step. Tickers fire once per elapsed interval
// (dropping ticks the reader has not consumed).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)

	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		c.current = next.deadline
		if next.channel != nil {
			select {
			case next.channel <- c.current:
			default:
			}
			next.deadline = next.deadline.Add(next.interval)
			continue
		}
		next.fired = true
		callback := next.callback
		c.mu.Unlock()
		callback()
		c.mu.Lock()
	}

	c.current = target
	c.pruneLocked()
	c.mu.Unlock()
}

func (c *FakeClock) nextDueLocked(target time.Time) *fakeWaiter {
	var due []*fakeWaiter
	for _, w := range c.waiters {
		if w.stopped || w.fired || w.deadline.After(target) {
			continue
		}
		due = append(due, w)
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	return due[0]
}

func (c *FakeClock) pruneLocked() {
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			kept = append(kept, w)
		}
	}
	c.waiters = kept
}

// PendingTimers returns the number of AfterFunc timers and tickers that
// have neither fired nor been stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			count++
		}
	}
	return count
}
