package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDashboardConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadDashboardConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadDashboardConfig: %v", err)
	}
	if cfg.Dashboard.WindowCapacity != 50 {
		t.Fatalf("window capacity = %d, want 50", cfg.Dashboard.WindowCapacity)
	}
	if cfg.ResizeQuiet() != 150*time.Millisecond {
		t.Fatalf("resize quiet = %v", cfg.ResizeQuiet())
	}
	if cfg.PullInterval() != 500*time.Millisecond {
		t.Fatalf("pull interval = %v", cfg.PullInterval())
	}
	if cfg.Transport.Mode != TransportPush || cfg.Transport.PushVia != PushViaWebSocket {
		t.Fatalf("transport = %s/%s", cfg.Transport.Mode, cfg.Transport.PushVia)
	}
	if cfg.Transport.WebSocket.Event != "nuevos_datos" {
		t.Fatalf("event = %q", cfg.Transport.WebSocket.Event)
	}
	if got := strings.Join(cfg.Dashboard.View.Channels, ","); got != "ax,ay,az" {
		t.Fatalf("channels = %s", got)
	}
}

func TestLoadDashboardConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
dashboard:
  window_capacity: 20
  view:
    mode: full_refresh
    table_rows: 40
    chart_points: 10
transport:
  mode: pull
  encoding: cbor
  pull:
    url: http://hub:5000/history
    interval_ms: 250
`)
	cfg, err := LoadDashboardConfig(path)
	if err != nil {
		t.Fatalf("LoadDashboardConfig: %v", err)
	}
	v := cfg.Dashboard.View
	if v.Mode != ViewFullRefresh {
		t.Fatalf("view mode = %q", v.Mode)
	}
	// Rows above the window capacity are clamped to it.
	if v.TableRows != 20 || v.ChartPoints != 10 {
		t.Fatalf("table_rows=%d chart_points=%d", v.TableRows, v.ChartPoints)
	}
	if cfg.PullInterval() != 250*time.Millisecond || cfg.Transport.Pull.URL != "http://hub:5000/history" {
		t.Fatalf("pull = %+v", cfg.Transport.Pull)
	}
}

func TestDashboardConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DashboardConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*DashboardConfig) {}},
		{
			name:    "unknown transport mode",
			mutate:  func(c *DashboardConfig) { c.Transport.Mode = "poll" },
			wantErr: "transport.mode",
		},
		{
			name:    "unknown push_via",
			mutate:  func(c *DashboardConfig) { c.Transport.PushVia = "sse" },
			wantErr: "transport.push_via",
		},
		{
			name:    "mqtt without broker",
			mutate:  func(c *DashboardConfig) { c.Transport.PushVia = PushViaMQTT },
			wantErr: "broker and topic",
		},
		{
			name:    "cbor over websocket",
			mutate:  func(c *DashboardConfig) { c.Transport.Encoding = "cbor" },
			wantErr: "cbor is not supported",
		},
		{
			name: "cbor over mqtt",
			mutate: func(c *DashboardConfig) {
				c.Transport.PushVia = PushViaMQTT
				c.Transport.MQTT.Broker = "tcp://localhost:1883"
				c.Transport.MQTT.Topic = "accel"
				c.Transport.Encoding = "cbor"
			},
		},
		{
			name:    "unknown view mode",
			mutate:  func(c *DashboardConfig) { c.Dashboard.View.Mode = "diff" },
			wantErr: "dashboard.view.mode",
		},
		{
			name:    "unknown channel",
			mutate:  func(c *DashboardConfig) { c.Dashboard.View.Channels = []string{"ax", "gyro"} },
			wantErr: `unknown channel "gyro"`,
		},
		{
			name:    "bad log level",
			mutate:  func(c *DashboardConfig) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg DashboardConfig
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDashboardConfigRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "dashboard: [not, a, map")
	if _, err := LoadDashboardConfig(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadHubConfig(t *testing.T) {
	cfg, err := LoadHubConfig("")
	if err != nil {
		t.Fatalf("LoadHubConfig: %v", err)
	}
	if cfg.Hub.Listen != ":5000" || cfg.Hub.Event != "nuevos_datos" || cfg.Hub.WindowCapacity != 50 {
		t.Fatalf("hub defaults = %+v", cfg.Hub)
	}

	path := writeConfig(t, `
mqtt:
  enabled: true
`)
	if _, err := LoadHubConfig(path); err == nil || !strings.Contains(err.Error(), "broker and topic") {
		t.Fatalf("expected mqtt validation error, got %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug":   DEBUG,
		"":        INFO,
		"WARNING": WARN,
		" error ": ERROR,
	} {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLogLevel("trace"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestReportName(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if got := ReportName("report", ts, "png"); got != "report_20240501_123000.png" {
		t.Fatalf("ReportName = %q", got)
	}
	if got := ClockLabel(ts); got != "12:30:00" {
		t.Fatalf("ClockLabel = %q", got)
	}
}
