package views

import (
	"errors"
	"fmt"

	"accel-dashboard/models"
	"accel-dashboard/services/window"
)

// Mode selects how a ViewAdapter patches its widgets.
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFullRefresh Mode = "full_refresh"
)

// Update is one store change handed to the view: what kind of payload
// caused it and the store state right after it.
type Update struct {
	Kind     models.PayloadKind
	Snapshot window.Snapshot
}

// ViewAdapter keeps the table and charts equal to (a tail of) the store.
// Render returns the joined per-chart RenderErrors; the table and the
// remaining charts are updated regardless.
type ViewAdapter interface {
	Mode() Mode
	Render(u Update) error
}

// Caps bounds what is displayed. Zero means "whole snapshot".
type Caps struct {
	TableRows   int
	ChartPoints int
}

// NewViewAdapter builds the adapter for mode.
func NewViewAdapter(mode Mode, table Table, charts []ChartBinding, caps Caps) (ViewAdapter, error) {
	switch mode {
	case ModeIncremental:
		return NewIncrementalAdapter(table, charts, caps), nil
	case ModeFullRefresh:
		return NewFullRefreshAdapter(table, charts, caps), nil
	}
	return nil, fmt.Errorf("unknown view mode %q", mode)
}

// ─── incremental ────────────────────────────────────────────────────────

// IncrementalAdapter appends the newest row/point per single update and
// evicts from the head past the caps. A snapshot update means the store
// was replaced wholesale, so it clears and rebuilds before continuing.
type IncrementalAdapter struct {
	table  Table
	charts []ChartBinding
	caps   Caps
}

func NewIncrementalAdapter(table Table, charts []ChartBinding, caps Caps) *IncrementalAdapter {
	return &IncrementalAdapter{table: table, charts: charts, caps: caps}
}

func (a *IncrementalAdapter) Mode() Mode { return ModeIncremental }

func (a *IncrementalAdapter) Render(u Update) error {
	if u.Kind == models.PayloadSnapshot {
		rebuild(a.table, a.charts, a.caps, u.Snapshot)
		return redrawAll(a.charts)
	}

	row, ok := u.Snapshot.Latest()
	if !ok {
		return nil
	}

	if a.table != nil {
		a.table.InsertRow(row)
		limit := capOr(a.caps.TableRows, u.Snapshot.Capacity)
		for a.table.RowCount() > limit {
			if err := a.table.DeleteRow(0); err != nil {
				break
			}
		}
	}

	limit := capOr(a.caps.ChartPoints, u.Snapshot.Capacity)
	for _, b := range a.charts {
		b.Chart.AppendPoint(row[channelIndex(b.Channel)])
		for b.Chart.PointCount() > limit {
			b.Chart.EvictOldestPoint()
		}
	}
	return redrawAll(a.charts)
}

// ─── full refresh ───────────────────────────────────────────────────────

// FullRefreshAdapter clears every widget and rebuilds it from the
// snapshot on each update.
type FullRefreshAdapter struct {
	table  Table
	charts []ChartBinding
	caps   Caps
}

func NewFullRefreshAdapter(table Table, charts []ChartBinding, caps Caps) *FullRefreshAdapter {
	return &FullRefreshAdapter{table: table, charts: charts, caps: caps}
}

func (a *FullRefreshAdapter) Mode() Mode { return ModeFullRefresh }

func (a *FullRefreshAdapter) Render(u Update) error {
	rebuild(a.table, a.charts, a.caps, u.Snapshot)
	return redrawAll(a.charts)
}

// ─── shared ─────────────────────────────────────────────────────────────

func rebuild(table Table, charts []ChartBinding, caps Caps, snap window.Snapshot) {
	if table != nil {
		table.ClearAllRows()
		for _, row := range snap.Tail(caps.TableRows).Rows() {
			table.InsertRow(row)
		}
	}
	points := snap.Tail(caps.ChartPoints)
	for _, b := range charts {
		b.Chart.ReplaceAllPoints(points.Series[b.Channel])
	}
}

func redrawAll(charts []ChartBinding) error {
	var errs []error
	for _, b := range charts {
		chart := b.Chart
		if err := Isolate(chart.Name(), "redraw", func() error { return chart.Redraw(true) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Isolate runs one chart operation, turning both returned errors and
// panics into a *RenderError.
func Isolate(chart, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RenderError{Chart: chart, Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if e := fn(); e != nil {
		return &RenderError{Chart: chart, Op: op, Err: e}
	}
	return nil
}

func capOr(limit, capacity int) int {
	if limit > 0 {
		return limit
	}
	if capacity > 0 {
		return capacity
	}
	return window.DefaultCapacity
}

func channelIndex(ch models.Channel) int {
	for i, c := range models.Channels {
		if c == ch {
			return i
		}
	}
	return 0
}
