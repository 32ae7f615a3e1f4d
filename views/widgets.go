package views

import (
	"fmt"

	"accel-dashboard/models"
)

// Chart is a line chart owned by the rendering layer.
type Chart interface {
	Name() string
	AppendPoint(value float64)
	EvictOldestPoint()
	ReplaceAllPoints(values []float64)
	PointCount() int
	RecalculateLayout() error
	Redraw(skipAnimation bool) error
}

// Table is the scrolling sample table. Rows are ordered like models.Channels.
type Table interface {
	InsertRow(cells []float64)
	DeleteRow(index int) error
	ClearAllRows()
	RowCount() int
}

// ChartBinding ties a chart to the channel it plots.
type ChartBinding struct {
	Channel models.Channel
	Chart   Chart
}

// RenderError reports a chart that failed to redraw or re-layout. It
// never stops the other charts or ingestion.
type RenderError struct {
	Chart string
	Op    string // redraw, layout
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("chart %s %s: %v", e.Chart, e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
