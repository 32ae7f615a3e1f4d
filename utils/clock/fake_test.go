package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(150*time.Millisecond, func() { fired++ })

	c.Advance(149 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired early: %d", fired)
	}
	c.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("expected 1 call, got %d", fired)
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("one-shot timer fired again: %d", fired)
	}
	if c.PendingTimers() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.PendingTimers())
	}
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer should report true")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report false")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeCallbackCanScheduleTimers(t *testing.T) {
	c := Fake(epoch)
	var order []string
	c.AfterFunc(time.Second, func() {
		order = append(order, "first")
		c.AfterFunc(time.Second, func() { order = append(order, "second") })
	})

	c.Advance(3 * time.Second)
	if len(order) != 2 || order[1] != "second" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Advance(time.Second)
	select {
	case at := <-ticker.C:
		if !at.Equal(epoch.Add(time.Second)) {
			t.Fatalf("tick at %v", at)
		}
	default:
		t.Fatal("expected a tick")
	}

	select {
	case <-ticker.C:
		t.Fatal("unexpected extra tick")
	default:
	}

	ticker.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}
