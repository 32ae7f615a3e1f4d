package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ─── Shared blocks ──────────────────────────────────────────────────────

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type WebSocketConfig struct {
	URL         string `yaml:"url"`
	Event       string `yaml:"event"`
	ReconnectMs int    `yaml:"reconnect_ms"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"` // hub bridge only
	Broker   string `yaml:"broker"`  // tcp://host:1883, ssl://host:8883
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
	Encoding string `yaml:"encoding"`
}

type PullConfig struct {
	URL        string `yaml:"url"`
	IntervalMs int    `yaml:"interval_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// ─── Dashboard ──────────────────────────────────────────────────────────

const (
	TransportPush = "push"
	TransportPull = "pull"

	PushViaWebSocket = "websocket"
	PushViaMQTT      = "mqtt"

	ViewIncremental = "incremental"
	ViewFullRefresh = "full_refresh"
)

type ViewConfig struct {
	Mode        string   `yaml:"mode"`
	TableRows   int      `yaml:"table_rows"`   // K, rows shown in the table
	ChartPoints int      `yaml:"chart_points"` // points kept per chart
	Channels    []string `yaml:"channels"`     // one chart per entry
}

type ResizeConfig struct {
	QuietMs int `yaml:"quiet_ms"`
}

type TransportConfig struct {
	Mode      string          `yaml:"mode"`
	PushVia   string          `yaml:"push_via"`
	Encoding  string          `yaml:"encoding"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Pull      PullConfig      `yaml:"pull"`
}

type ExportConfig struct {
	ReportURL string `yaml:"report_url"`
	OutputDir string `yaml:"output_dir"`
}

// DashboardConfig is the top-level structure for dashboard.yaml.
type DashboardConfig struct {
	Dashboard struct {
		WindowCapacity int          `yaml:"window_capacity"`
		View           ViewConfig   `yaml:"view"`
		Resize         ResizeConfig `yaml:"resize"`
	} `yaml:"dashboard"`
	Transport TransportConfig `yaml:"transport"`
	Export    ExportConfig    `yaml:"export"`
	Log       LogConfig       `yaml:"log"`
}

// ApplyDefaults fills every unset field: a 50-sample window, a 150 ms
// resize debounce and the "nuevos_datos" socket event.
func (c *DashboardConfig) ApplyDefaults() {
	d := &c.Dashboard
	if d.WindowCapacity <= 0 {
		d.WindowCapacity = 50
	}
	if d.View.Mode == "" {
		d.View.Mode = ViewIncremental
	}
	if d.View.TableRows <= 0 || d.View.TableRows > d.WindowCapacity {
		d.View.TableRows = d.WindowCapacity
	}
	if d.View.ChartPoints <= 0 || d.View.ChartPoints > d.WindowCapacity {
		d.View.ChartPoints = d.WindowCapacity
	}
	if len(d.View.Channels) == 0 {
		d.View.Channels = []string{"ax", "ay", "az"}
	}
	if d.Resize.QuietMs <= 0 {
		d.Resize.QuietMs = 150
	}

	t := &c.Transport
	if t.Mode == "" {
		t.Mode = TransportPush
	}
	if t.PushVia == "" {
		t.PushVia = PushViaWebSocket
	}
	if t.Encoding == "" {
		t.Encoding = "json"
	}
	if t.WebSocket.URL == "" {
		t.WebSocket.URL = "ws://localhost:5000/ws"
	}
	if t.WebSocket.Event == "" {
		t.WebSocket.Event = "nuevos_datos"
	}
	if t.WebSocket.ReconnectMs <= 0 {
		t.WebSocket.ReconnectMs = 2000
	}
	if t.Pull.URL == "" {
		t.Pull.URL = "http://localhost:5000/history"
	}
	if t.Pull.IntervalMs <= 0 {
		t.Pull.IntervalMs = 500
	}
	if t.Pull.TimeoutMs <= 0 {
		t.Pull.TimeoutMs = 2000
	}
	if c.Export.ReportURL == "" {
		c.Export.ReportURL = "http://localhost:5000/report"
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "reports"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations that would mix transport disciplines or
// name unknown modes.
func (c *DashboardConfig) Validate() error {
	var errs []error
	switch c.Transport.Mode {
	case TransportPush:
		switch c.Transport.PushVia {
		case PushViaWebSocket:
		case PushViaMQTT:
			if c.Transport.MQTT.Broker == "" || c.Transport.MQTT.Topic == "" {
				errs = append(errs, errors.New("transport.mqtt: broker and topic are required for push_via=mqtt"))
			}
		default:
			errs = append(errs, fmt.Errorf("transport.push_via: unknown value %q", c.Transport.PushVia))
		}
	case TransportPull:
	default:
		errs = append(errs, fmt.Errorf("transport.mode: unknown value %q (want push or pull)", c.Transport.Mode))
	}
	switch c.Transport.Encoding {
	case "json":
	case "cbor":
		// WebSocket envelopes are JSON text frames.
		if c.Transport.Mode == TransportPush && c.Transport.PushVia == PushViaWebSocket {
			errs = append(errs, errors.New("transport.encoding: cbor is not supported with push_via=websocket"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.encoding: unknown value %q", c.Transport.Encoding))
	}
	switch c.Dashboard.View.Mode {
	case ViewIncremental, ViewFullRefresh:
	default:
		errs = append(errs, fmt.Errorf("dashboard.view.mode: unknown value %q", c.Dashboard.View.Mode))
	}
	for _, ch := range c.Dashboard.View.Channels {
		switch ch {
		case "ax", "ay", "az", "emg":
		default:
			errs = append(errs, fmt.Errorf("dashboard.view.channels: unknown channel %q", ch))
		}
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

func (c *DashboardConfig) PullInterval() time.Duration {
	return time.Duration(c.Transport.Pull.IntervalMs) * time.Millisecond
}

func (c *DashboardConfig) ResizeQuiet() time.Duration {
	return time.Duration(c.Dashboard.Resize.QuietMs) * time.Millisecond
}

// ─── Hub ────────────────────────────────────────────────────────────────

type SimulationConfig struct {
	Enabled bool `yaml:"enabled"`
	RateHz  int  `yaml:"rate_hz"`
	EMG     bool `yaml:"emg"`
}

// HubConfig is the top-level structure for hub.yaml.
type HubConfig struct {
	Hub struct {
		Listen         string `yaml:"listen"`
		WindowCapacity int    `yaml:"window_capacity"`
		Event          string `yaml:"event"`
		MaxClients     int    `yaml:"max_clients"`
		MaxBodyKB      int    `yaml:"max_body_kb"`
	} `yaml:"hub"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Simulation SimulationConfig `yaml:"simulation"`
	Log        LogConfig        `yaml:"log"`
}

func (c *HubConfig) ApplyDefaults() {
	h := &c.Hub
	if h.Listen == "" {
		h.Listen = ":5000"
	}
	if h.WindowCapacity <= 0 {
		h.WindowCapacity = 50
	}
	if h.Event == "" {
		h.Event = "nuevos_datos"
	}
	if h.MaxClients <= 0 {
		h.MaxClients = 100
	}
	if h.MaxBodyKB <= 0 {
		h.MaxBodyKB = 256
	}
	if c.MQTT.Encoding == "" {
		c.MQTT.Encoding = "json"
	}
	if c.Simulation.RateHz <= 0 {
		c.Simulation.RateHz = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *HubConfig) Validate() error {
	var errs []error
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		errs = append(errs, errors.New("mqtt: broker and topic are required when enabled"))
	}
	switch c.MQTT.Encoding {
	case "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("mqtt.encoding: unknown value %q", c.MQTT.Encoding))
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// ─── Loaders ────────────────────────────────────────────────────────────

// LoadDashboardConfig reads dashboard.yaml. A missing file yields the defaults.
func LoadDashboardConfig(path string) (*DashboardConfig, error) {
	var cfg DashboardConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, fmt.Errorf("dashboard config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dashboard config: %w", err)
	}
	return &cfg, nil
}

// LoadHubConfig reads hub.yaml. A missing file yields the defaults.
func LoadHubConfig(path string) (*HubConfig, error) {
	var cfg HubConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, fmt.Errorf("hub config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hub config: %w", err)
	}
	return &cfg, nil
}

func loadYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
