package term

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"accel-dashboard/models"
	"accel-dashboard/views"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
)

// Table holds the sample rows shown under the charts, oldest first.
type Table struct {
	layout *Layout

	mu   sync.Mutex
	rows [][]float64
}

var _ views.Table = (*Table)(nil)

func NewTable(layout *Layout) *Table {
	return &Table{layout: layout}
}

func (t *Table) InsertRow(cells []float64) {
	t.mu.Lock()
	t.rows = append(t.rows, append([]float64(nil), cells...))
	t.mu.Unlock()
}

func (t *Table) DeleteRow(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.rows) {
		return fmt.Errorf("delete row %d: out of range (rows=%d)", index, len(t.rows))
	}
	t.rows = append(t.rows[:index], t.rows[index+1:]...)
	return nil
}

func (t *Table) ClearAllRows() {
	t.mu.Lock()
	t.rows = nil
	t.mu.Unlock()
}

func (t *Table) RowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Rows returns a copy of every row.
func (t *Table) Rows() [][]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]float64, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// View renders the newest rows that fit the layout.
func (t *Table) View() string {
	t.mu.Lock()
	rows := t.rows
	if limit := t.layout.TableRows(); len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, len(r))
		for j, v := range r {
			cells[i][j] = strconv.FormatFloat(v, 'f', 3, 64)
		}
	}
	t.mu.Unlock()

	headers := make([]string, len(models.Channels))
	for i, ch := range models.Channels {
		headers[i] = ch.Label()
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
