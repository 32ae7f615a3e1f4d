package term

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const exportTimeout = 30 * time.Second

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Session is the part of the dashboard session the terminal UI drives.
type Session interface {
	Resize()
	ExportReport(ctx context.Context) (string, error)
	Status() string
}

// Notifier coalesces redraw signals into at most one pending wake-up.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify never blocks.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *Notifier) C() <-chan struct{} { return n.ch }

type redrawMsg struct{}

type exportDoneMsg struct {
	path string
	err  error
}

// Model is the bubbletea program for the dashboard. Widgets are mutated
// by the ingestion path; the model only renders them.
type Model struct {
	session Session
	layout  *Layout
	charts  []*Chart
	table   *Table
	redraw  <-chan struct{}

	width   int
	height  int
	message string
	failed  bool
}

func NewModel(session Session, layout *Layout, charts []*Chart, table *Table, redraw <-chan struct{}) Model {
	return Model{
		session: session,
		layout:  layout,
		charts:  charts,
		table:   table,
		redraw:  redraw,
	}
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return waitForRedraw(model.redraw)
}

// waitForRedraw blocks until a widget signals new content.
func waitForRedraw(channel <-chan struct{}) tea.Cmd {
	if channel == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-channel; !ok {
			return nil
		}
		return redrawMsg{}
	}
}

func exportReport(session Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		path, err := session.ExportReport(ctx)
		return exportDoneMsg{path: path, err: err}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch message.String() {
		case "q", "ctrl+c":
			return model, tea.Quit
		case "e":
			model.message = "exporting report..."
			model.failed = false
			return model, exportReport(model.session)
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.layout.SetSize(message.Width, message.Height)
		model.session.Resize()

	case redrawMsg:
		return model, waitForRedraw(model.redraw)

	case exportDoneMsg:
		if message.err != nil {
			model.message = fmt.Sprintf("export failed: %v", message.err)
			model.failed = true
		} else {
			model.message = "report saved to " + message.path
			model.failed = false
		}
	}
	return model, nil
}

// View implements tea.Model.
func (model Model) View() string {
	if model.width == 0 {
		return "waiting for terminal size..."
	}

	chartViews := make([]string, len(model.charts))
	for i, c := range model.charts {
		chartViews[i] = c.View()
	}

	status := statusStyle.Render(model.session.Status() + "  [e] export  [q] quit")
	if model.message != "" {
		style := statusStyle
		if model.failed {
			style = errorStyle
		}
		status += "\n" + style.Render(model.message)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Accelerometer"),
		lipgloss.JoinHorizontal(lipgloss.Top, chartViews...),
		model.table.View(),
		status,
	)
}
