package controller

import (
	"errors"
	"sync"
	"testing"
	"time"

	"accel-dashboard/utils/clock"
	"accel-dashboard/views"
)

type layoutChart struct {
	name    string
	mu      sync.Mutex
	layouts int
	err     error
	panics  bool
}

func (c *layoutChart) Name() string               { return c.name }
func (c *layoutChart) AppendPoint(float64)        {}
func (c *layoutChart) EvictOldestPoint()          {}
func (c *layoutChart) ReplaceAllPoints([]float64) {}
func (c *layoutChart) PointCount() int            { return 0 }
func (c *layoutChart) Redraw(bool) error          { return nil }
func (c *layoutChart) RecalculateLayout() error {
	if c.panics {
		panic("detached")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layouts++
	return c.err
}

func (c *layoutChart) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layouts
}

func newCoordinator(charts ...*layoutChart) (*ResizeCoordinator, *clock.FakeClock) {
	fake := clock.Fake(time.Unix(0, 0))
	list := make([]views.Chart, len(charts))
	for i, c := range charts {
		list[i] = c
	}
	return NewResizeCoordinator(list, 150*time.Millisecond, fake), fake
}

func TestResizeBurstCoalesces(t *testing.T) {
	chart := &layoutChart{name: "AX"}
	rc, fake := newCoordinator(chart)

	for i := 0; i < 10; i++ {
		rc.Notify()
		fake.Advance(20 * time.Millisecond)
	}
	if chart.count() != 0 {
		t.Fatalf("layout ran during the burst (%d times)", chart.count())
	}
	// The last event was 20ms ago.
	fake.Advance(129 * time.Millisecond)
	if chart.count() != 0 {
		t.Fatal("layout ran before the quiet period elapsed")
	}
	fake.Advance(time.Millisecond)
	if chart.count() != 1 {
		t.Fatalf("layout ran %d times, want 1", chart.count())
	}
	if events, passes := rc.Stats(); events != 10 || passes != 1 {
		t.Fatalf("stats = %d events, %d passes", events, passes)
	}
}

func TestResizeSpacedEvents(t *testing.T) {
	chart := &layoutChart{name: "AX"}
	rc, fake := newCoordinator(chart)

	for i := 0; i < 3; i++ {
		rc.Notify()
		fake.Advance(200 * time.Millisecond)
	}
	if chart.count() != 3 {
		t.Fatalf("layout ran %d times, want 3", chart.count())
	}
}

func TestResizeFailingChartIsIsolated(t *testing.T) {
	broken := &layoutChart{name: "AX", err: errors.New("no canvas")}
	panicky := &layoutChart{name: "AY", panics: true}
	healthy := &layoutChart{name: "AZ"}
	rc, fake := newCoordinator(broken, panicky, healthy)

	var results []LayoutResult
	rc.OnSettled = func(r []LayoutResult) { results = r }

	rc.Notify()
	fake.Advance(150 * time.Millisecond)

	if healthy.count() != 1 {
		t.Fatal("healthy chart was not recalculated")
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []bool{true, true, false} {
		if (results[i].Err != nil) != want {
			t.Fatalf("result %d (%s): err=%v", i, results[i].Chart, results[i].Err)
		}
	}
	var rerr *views.RenderError
	if !errors.As(results[1].Err, &rerr) || rerr.Op != "layout" {
		t.Fatalf("expected layout RenderError, got %v", results[1].Err)
	}
}

func TestResizeDisposeCancelsPending(t *testing.T) {
	chart := &layoutChart{name: "AX"}
	rc, fake := newCoordinator(chart)

	rc.Notify()
	rc.Dispose()
	rc.Notify()
	fake.Advance(time.Second)

	if chart.count() != 0 {
		t.Fatalf("layout ran %d times after dispose", chart.count())
	}
	if fake.PendingTimers() != 0 {
		t.Fatalf("%d timers still pending", fake.PendingTimers())
	}
}
