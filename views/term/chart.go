package term

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"accel-dashboard/views"
)

var levels = []rune(" ▁▂▃▄▅▆▇█")

var (
	chartBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))
	chartTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	chartAxis  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// ErrTooSmall is returned by RecalculateLayout when the terminal cannot
// fit a plot.
var ErrTooSmall = errors.New("terminal too small for chart")

// Chart is a block-character line plot of one channel.
type Chart struct {
	name   string
	layout *Layout
	notify func()

	mu       sync.Mutex
	points   []float64
	width    int
	height   int
	rendered string
}

var _ views.Chart = (*Chart)(nil)

// NewChart creates a chart sized from layout. notify, when set, is called
// after every successful redraw.
func NewChart(name string, layout *Layout, notify func()) *Chart {
	return &Chart{name: name, layout: layout, notify: notify, width: minChartWidth, height: minChartHeight}
}

func (c *Chart) Name() string { return c.name }

func (c *Chart) AppendPoint(value float64) {
	c.mu.Lock()
	c.points = append(c.points, value)
	c.mu.Unlock()
}

func (c *Chart) EvictOldestPoint() {
	c.mu.Lock()
	if len(c.points) > 0 {
		c.points = c.points[1:]
	}
	c.mu.Unlock()
}

func (c *Chart) ReplaceAllPoints(values []float64) {
	c.mu.Lock()
	c.points = append(c.points[:0:0], values...)
	c.mu.Unlock()
}

func (c *Chart) PointCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.points)
}

// Points returns a copy of the plotted values.
func (c *Chart) Points() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.points...)
}

// RecalculateLayout adopts the plot size from the shared layout and
// re-renders at that size.
func (c *Chart) RecalculateLayout() error {
	width, height := c.layout.ChartArea()
	if width < minChartWidth || height < minChartHeight {
		return fmt.Errorf("%w: %dx%d", ErrTooSmall, width, height)
	}
	c.mu.Lock()
	c.width, c.height = width, height
	c.rendered = c.renderLocked()
	c.mu.Unlock()
	if c.notify != nil {
		c.notify()
	}
	return nil
}

// Redraw re-renders the plot. There is no animation in a terminal, so
// skipAnimation is accepted and ignored.
func (c *Chart) Redraw(bool) error {
	c.mu.Lock()
	c.rendered = c.renderLocked()
	c.mu.Unlock()
	if c.notify != nil {
		c.notify()
	}
	return nil
}

// View returns the last rendered frame.
func (c *Chart) View() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rendered == "" {
		return c.renderLocked()
	}
	return c.rendered
}

func (c *Chart) renderLocked() string {
	lines := plot(c.points, c.width, c.height)
	title := chartTitle.Render(c.name)
	if n := len(c.points); n > 0 {
		title += chartAxis.Render(fmt.Sprintf(" %.3f", c.points[n-1]))
	}
	return chartBorder.Render(title + "\n" + strings.Join(lines, "\n"))
}

// plot renders the newest width points as height rows of block
// characters, top row first. A flat series sits on the bottom row.
func plot(points []float64, width, height int) []string {
	if len(points) > width {
		points = points[len(points)-width:]
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range points {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo

	cells := make([][]rune, height)
	for r := range cells {
		cells[r] = []rune(strings.Repeat(" ", width))
	}
	steps := float64(height*(len(levels)-1) - 1)
	for col, v := range points {
		level := 1
		if span > 0 {
			level = 1 + int(math.Round((v-lo)/span*steps))
		}
		for r := 0; r < height; r++ {
			fill := level - r*(len(levels)-1)
			if fill <= 0 {
				break
			}
			if fill > len(levels)-1 {
				fill = len(levels) - 1
			}
			cells[height-1-r][col] = levels[fill]
		}
	}

	out := make([]string, height)
	for r := range cells {
		out[r] = string(cells[r])
	}
	return out
}
