package term

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPlot(t *testing.T) {
	tests := []struct {
		name   string
		points []float64
		width  int
		height int
		want   []string
	}{
		{
			name:   "empty",
			width:  3,
			height: 1,
			want:   []string{"   "},
		},
		{
			name:   "flat series sits on the bottom",
			points: []float64{5, 5, 5},
			width:  3,
			height: 2,
			want:   []string{"   ", "▁▁▁"},
		},
		{
			name:   "min and max",
			points: []float64{0, 1},
			width:  2,
			height: 1,
			want:   []string{"▁█"},
		},
		{
			name:   "keeps newest points",
			points: []float64{9, 9, 0, 1},
			width:  2,
			height: 2,
			want:   []string{" █", "▁█"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := plot(tt.points, tt.width, tt.height)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("plot = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChartRecalculateLayout(t *testing.T) {
	layout := NewLayout(3)
	chart := NewChart("AX", layout, nil)

	layout.SetSize(20, 6)
	if err := chart.RecalculateLayout(); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("expected ErrTooSmall, got %v", err)
	}

	layout.SetSize(120, 30)
	if err := chart.RecalculateLayout(); err != nil {
		t.Fatalf("RecalculateLayout: %v", err)
	}
	width, height := layout.ChartArea()
	if width != 38 || height != 7 {
		t.Fatalf("chart area = %dx%d, want 38x7", width, height)
	}
}

func TestChartRedrawNotifies(t *testing.T) {
	notifier := NewNotifier()
	chart := NewChart("AZ", NewLayout(1), notifier.Notify)
	chart.AppendPoint(1)
	chart.AppendPoint(2)
	chart.Redraw(true)
	chart.Redraw(true)

	select {
	case <-notifier.C():
	default:
		t.Fatal("expected a pending redraw signal")
	}
	select {
	case <-notifier.C():
		t.Fatal("redraw signals should coalesce")
	default:
	}
	if !strings.Contains(chart.View(), "AZ") {
		t.Fatalf("view missing title: %q", chart.View())
	}
}

func TestChartPointOps(t *testing.T) {
	chart := NewChart("AY", NewLayout(1), nil)
	chart.ReplaceAllPoints([]float64{1, 2, 3})
	chart.EvictOldestPoint()
	chart.AppendPoint(4)
	got := chart.Points()
	if len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Fatalf("points = %v", got)
	}
}

func TestTableRows(t *testing.T) {
	layout := NewLayout(1)
	layout.SetSize(80, 20)
	table := NewTable(layout)
	table.InsertRow([]float64{1, 2, 3, 0})
	table.InsertRow([]float64{4, 5, 6, 7})
	if err := table.DeleteRow(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if err := table.DeleteRow(0); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if rows := table.Rows(); len(rows) != 1 || rows[0][3] != 7 {
		t.Fatalf("rows = %v", rows)
	}
	view := table.View()
	for _, want := range []string{"AX", "EMG", "4.000", "7.000"} {
		if !strings.Contains(view, want) {
			t.Fatalf("table view missing %q:\n%s", want, view)
		}
	}
}

type fakeSession struct {
	resizes int
	path    string
	err     error
}

func (s *fakeSession) Resize() { s.resizes++ }
func (s *fakeSession) ExportReport(context.Context) (string, error) {
	return s.path, s.err
}
func (s *fakeSession) Status() string { return "samples 0/50" }

func newTestModel(session *fakeSession) Model {
	layout := NewLayout(2)
	charts := []*Chart{NewChart("AX", layout, nil), NewChart("AY", layout, nil)}
	return NewModel(session, layout, charts, NewTable(layout), nil)
}

func TestModelResizeNotifiesSession(t *testing.T) {
	session := &fakeSession{}
	model := newTestModel(session)

	if view := model.View(); !strings.Contains(view, "waiting") {
		t.Fatalf("expected placeholder before the first size message, got %q", view)
	}

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	updated, _ = updated.Update(tea.WindowSizeMsg{Width: 90, Height: 30})
	model = updated.(Model)

	if session.resizes != 2 {
		t.Fatalf("session.Resize called %d times, want 2", session.resizes)
	}
	if w, h := model.layout.Size(); w != 90 || h != 30 {
		t.Fatalf("layout = %dx%d", w, h)
	}
	view := model.View()
	for _, want := range []string{"Accelerometer", "AX", "AY", "samples 0/50"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func TestModelQuit(t *testing.T) {
	model := newTestModel(&fakeSession{})
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		_, command := model.Update(key)
		if command == nil {
			t.Fatalf("%s should return a command", key)
		}
		if _, isQuit := command().(tea.QuitMsg); !isQuit {
			t.Fatalf("%s: expected QuitMsg", key)
		}
	}
}

func TestModelExport(t *testing.T) {
	session := &fakeSession{path: "reports/report.html"}
	model := newTestModel(session)

	updated, command := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	if command == nil {
		t.Fatal("e should start an export")
	}
	updated, _ = updated.Update(command())
	if got := updated.(Model).message; got != "report saved to reports/report.html" {
		t.Fatalf("message = %q", got)
	}

	session.err = errors.New("hub unreachable")
	updated, command = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	updated, _ = updated.Update(command())
	model = updated.(Model)
	if !model.failed || !strings.Contains(model.message, "hub unreachable") {
		t.Fatalf("message = %q failed=%v", model.message, model.failed)
	}
}

func TestModelRelistensForRedraw(t *testing.T) {
	notifier := NewNotifier()
	layout := NewLayout(1)
	model := NewModel(&fakeSession{}, layout, nil, NewTable(layout), notifier.C())

	command := model.Init()
	notifier.Notify()
	if _, ok := command().(redrawMsg); !ok {
		t.Fatal("expected redrawMsg")
	}
	if _, command = model.Update(redrawMsg{}); command == nil {
		t.Fatal("redraw should re-arm the listener")
	}
}
