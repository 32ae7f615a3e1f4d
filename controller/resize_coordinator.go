package controller

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"accel-dashboard/utils"
	"accel-dashboard/utils/clock"
	"accel-dashboard/views"
)

// DefaultResizeQuiet is the quiet period after the last resize event
// before charts are re-laid out.
const DefaultResizeQuiet = 150 * time.Millisecond

// LayoutResult is the outcome of one chart's layout recalculation.
type LayoutResult struct {
	Chart string
	Err   error
}

// ResizeCoordinator debounces resize events and then asks every chart to
// recalculate its layout. A failing chart is logged and never prevents
// the others from being recalculated.
type ResizeCoordinator struct {
	charts []views.Chart
	quiet  time.Duration
	clock  clock.Clock
	log    *utils.Logger

	// OnSettled, when set, receives the per-chart results of each pass.
	OnSettled func([]LayoutResult)

	mu       sync.Mutex
	pending  *clock.Timer
	gen      uint64
	disposed bool

	events uint64
	passes uint64
}

// NewResizeCoordinator creates a coordinator. quiet <= 0 selects
// DefaultResizeQuiet and a nil clock selects the real clock.
func NewResizeCoordinator(charts []views.Chart, quiet time.Duration, clk clock.Clock) *ResizeCoordinator {
	if quiet <= 0 {
		quiet = DefaultResizeQuiet
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &ResizeCoordinator{
		charts: charts,
		quiet:  quiet,
		clock:  clk,
		log:    utils.L().With("resize"),
	}
}

// Notify records a resize event and restarts the quiet period.
func (rc *ResizeCoordinator) Notify() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.disposed {
		return
	}
	atomic.AddUint64(&rc.events, 1)
	if rc.pending != nil {
		rc.pending.Stop()
	}
	rc.gen++
	gen := rc.gen
	rc.pending = rc.clock.AfterFunc(rc.quiet, func() { rc.fire(gen) })
}

func (rc *ResizeCoordinator) fire(gen uint64) {
	rc.mu.Lock()
	// A stale timer may still run if Stop raced with expiry.
	if rc.disposed || rc.gen != gen {
		rc.mu.Unlock()
		return
	}
	rc.pending = nil
	rc.mu.Unlock()

	results := rc.RecalculateAll()
	if rc.OnSettled != nil {
		rc.OnSettled(results)
	}
}

// RecalculateAll runs one layout pass over every chart immediately.
func (rc *ResizeCoordinator) RecalculateAll() []LayoutResult {
	atomic.AddUint64(&rc.passes, 1)
	results := make([]LayoutResult, 0, len(rc.charts))
	var errs []error
	for _, c := range rc.charts {
		chart := c
		err := views.Isolate(chart.Name(), "layout", chart.RecalculateLayout)
		results = append(results, LayoutResult{Chart: chart.Name(), Err: err})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		rc.log.Warn("layout pass: %d/%d charts failed: %v", len(errs), len(rc.charts), err)
	} else {
		rc.log.Debug("layout pass: %d charts recalculated", len(rc.charts))
	}
	return results
}

// Dispose cancels any pending pass. Later events are ignored.
func (rc *ResizeCoordinator) Dispose() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.disposed = true
	if rc.pending != nil {
		rc.pending.Stop()
		rc.pending = nil
	}
}

// Stats returns the number of events received and passes run.
func (rc *ResizeCoordinator) Stats() (events, passes uint64) {
	return atomic.LoadUint64(&rc.events), atomic.LoadUint64(&rc.passes)
}
