package term

import "sync"

const (
	minChartWidth  = 8
	minChartHeight = 2
	// Rows taken by borders, titles, the header and the status line.
	chromeRows = 7
)

// Layout is the terminal geometry shared by every widget. The model
// writes it on each window-size message; charts read it when the resize
// coordinator asks them to recalculate.
type Layout struct {
	mu     sync.RWMutex
	width  int
	height int
	charts int
}

// NewLayout creates a layout for a row of n charts above the table.
func NewLayout(charts int) *Layout {
	if charts < 1 {
		charts = 1
	}
	return &Layout{charts: charts}
}

func (l *Layout) SetSize(width, height int) {
	l.mu.Lock()
	l.width, l.height = width, height
	l.mu.Unlock()
}

func (l *Layout) Size() (width, height int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.width, l.height
}

// ChartArea returns the plot size of one chart, borders excluded. Charts
// share the width equally and take a third of the height.
func (l *Layout) ChartArea() (width, height int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	width = l.width/l.charts - 2
	height = l.height/3 - 3
	return width, height
}

// TableRows is how many data rows fit under the charts.
func (l *Layout) TableRows() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rows := l.height - l.height/3 - chromeRows
	if rows < 1 {
		return 1
	}
	return rows
}
