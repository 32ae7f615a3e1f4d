package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"accel-dashboard/controller"
	"accel-dashboard/models"
	"accel-dashboard/utils"
	"accel-dashboard/views"
	"accel-dashboard/views/term"
)

func main() {
	// ── CLI flags ────────────────────────────────────────────────────
	configPath := pflag.StringP("config", "c", "config/dashboard.yaml", "path to dashboard.yaml")
	transportMode := pflag.String("transport", "", "push or pull (overrides transport.mode)")
	viewMode := pflag.String("view", "", "incremental or full_refresh (overrides dashboard.view.mode)")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error (overrides log.level)")
	logFile := pflag.String("log-file", "", "log file (overrides log.file; default dashboard.log)")
	pflag.Parse()

	cfg, err := utils.LoadDashboardConfig(*configPath)
	if err != nil {
		fail(err)
	}
	if *transportMode != "" {
		cfg.Transport.Mode = *transportMode
	}
	if *viewMode != "" {
		cfg.Dashboard.View.Mode = *viewMode
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	cfg.Log.File = logFilePath(*logFile, cfg.Log.File)
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	// ── Logger (file only) ───────────────────────────────────────────
	level, _ := utils.ParseLogLevel(cfg.Log.Level)
	logger := utils.InitLogger(utils.LogOptions{Level: level, FilePath: cfg.Log.File, Quiet: true})
	defer logger.Close()

	// ── Widgets ──────────────────────────────────────────────────────
	channels := cfg.Dashboard.View.Channels
	layout := term.NewLayout(len(channels))
	notifier := term.NewNotifier()
	table := term.NewTable(layout)
	charts := make([]*term.Chart, 0, len(channels))
	bindings := make([]views.ChartBinding, 0, len(channels))
	for _, name := range channels {
		ch := models.Channel(name)
		chart := term.NewChart(ch.Label(), layout, notifier.Notify)
		charts = append(charts, chart)
		bindings = append(bindings, views.ChartBinding{Channel: ch, Chart: chart})
	}

	// ── Session ──────────────────────────────────────────────────────
	session, err := controller.NewDashboardSession(cfg, controller.Collaborators{
		Table:  table,
		Charts: bindings,
	})
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		fail(err)
	}

	model := term.NewModel(session, layout, charts, table, notifier.C())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()

	if err := session.Dispose(); err != nil {
		utils.L().Warn("dispose: %v", err)
	}
	if runErr != nil && ctx.Err() == nil {
		fail(runErr)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "accel-dashboard:", err)
	os.Exit(1)
}

// logFilePath picks the flag over the config; the terminal belongs to the
// UI, so there is always a file.
func logFilePath(flag, configured string) string {
	switch {
	case flag != "":
		return flag
	case configured != "":
		return configured
	}
	return "dashboard.log"
}
