package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"accel-dashboard/models"
	"accel-dashboard/services/transport"
	"accel-dashboard/services/window"
	"accel-dashboard/utils"
	"accel-dashboard/utils/clock"
	"accel-dashboard/views"
)

const maxReportBytes = 16 << 20

// Collaborators are the pieces a session does not build itself. A nil
// Subscriber or Fetcher is built from the transport config.
type Collaborators struct {
	Table  views.Table
	Charts []views.ChartBinding

	Subscriber transport.Subscriber
	Fetcher    transport.Fetcher
	Clock      clock.Clock
	HTTPClient *http.Client // report downloads
}

// SessionStats is what the status line shows.
type SessionStats struct {
	ID           string
	Mode         string
	View         views.Mode
	Samples      int
	Capacity     int
	Ingestion    IngestionStats
	ResizeEvents uint64
	ResizePasses uint64
}

// DashboardSession owns everything one running dashboard needs: the
// store, the view adapter, the ingestion controller and the resize
// coordinator. Create it with NewDashboardSession and release it with
// Dispose.
type DashboardSession struct {
	id     string
	cfg    *utils.DashboardConfig
	store  *window.SeriesStore
	view   views.ViewAdapter
	ingest *IngestionController
	resize *ResizeCoordinator
	clock  clock.Clock
	client *http.Client
	log    *utils.Logger

	disposeOnce sync.Once
	disposeErr  error
}

// NewDashboardSession wires a session from cfg. cfg must already have
// defaults applied.
func NewDashboardSession(cfg *utils.DashboardConfig, collab Collaborators) (*DashboardSession, error) {
	if cfg == nil {
		return nil, errors.New("session: nil config")
	}
	if collab.Clock == nil {
		collab.Clock = clock.Real()
	}
	if collab.HTTPClient == nil {
		collab.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	d := &cfg.Dashboard
	store := window.NewSeriesStore(d.WindowCapacity)
	view, err := views.NewViewAdapter(views.Mode(d.View.Mode), collab.Table, collab.Charts, views.Caps{
		TableRows:   d.View.TableRows,
		ChartPoints: d.View.ChartPoints,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	opts, err := ingestionOptions(cfg, collab)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	ingest, err := NewIngestionController(store, view, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	charts := make([]views.Chart, len(collab.Charts))
	for i, b := range collab.Charts {
		charts[i] = b.Chart
	}

	s := &DashboardSession{
		id:     uuid.NewString(),
		cfg:    cfg,
		store:  store,
		view:   view,
		ingest: ingest,
		resize: NewResizeCoordinator(charts, cfg.ResizeQuiet(), collab.Clock),
		clock:  collab.Clock,
		client: collab.HTTPClient,
	}
	s.log = utils.L().With("session")
	s.log.Info("session %s created  transport=%s view=%s window=%d charts=%d",
		s.id, cfg.Transport.Mode, view.Mode(), d.WindowCapacity, len(charts))
	return s, nil
}

func ingestionOptions(cfg *utils.DashboardConfig, collab Collaborators) (IngestionOptions, error) {
	t := cfg.Transport
	opts := IngestionOptions{
		Mode:     t.Mode,
		Encoding: models.Encoding(t.Encoding),
		Clock:    collab.Clock,
	}
	switch t.Mode {
	case utils.TransportPush:
		opts.Subscriber = collab.Subscriber
		if opts.Subscriber != nil {
			break
		}
		switch t.PushVia {
		case utils.PushViaMQTT:
			opts.Subscriber = &transport.MQTTSubscriber{
				Broker:   t.MQTT.Broker,
				Topic:    t.MQTT.Topic,
				Username: t.MQTT.Username,
				Password: t.MQTT.Password,
				QoS:      t.MQTT.QoS,
			}
		default:
			opts.Subscriber = &transport.WebSocketSubscriber{
				URL:       t.WebSocket.URL,
				Event:     t.WebSocket.Event,
				Reconnect: time.Duration(t.WebSocket.ReconnectMs) * time.Millisecond,
			}
			opts.Encoding = models.EncodingJSON
		}
	case utils.TransportPull:
		opts.Interval = cfg.PullInterval()
		opts.Fetcher = collab.Fetcher
		if opts.Fetcher == nil {
			opts.Fetcher = transport.NewHTTPFetcher(t.Pull.URL,
				time.Duration(t.Pull.TimeoutMs)*time.Millisecond, opts.Encoding)
		}
	default:
		return opts, fmt.Errorf("unknown transport mode %q", t.Mode)
	}
	return opts, nil
}

func (s *DashboardSession) ID() string { return s.id }

// Start opens the transport subscription.
func (s *DashboardSession) Start(ctx context.Context) error {
	return s.ingest.Start(ctx)
}

// OnApplied registers fn to run after every applied payload. Call
// before Start.
func (s *DashboardSession) OnApplied(fn func(window.Snapshot)) {
	s.ingest.OnApplied = fn
}

// Resize forwards one window resize event to the debouncer.
func (s *DashboardSession) Resize() { s.resize.Notify() }

// Snapshot returns the current store contents.
func (s *DashboardSession) Snapshot() window.Snapshot { return s.store.Snapshot() }

func (s *DashboardSession) Stats() SessionStats {
	events, passes := s.resize.Stats()
	return SessionStats{
		ID:           s.id,
		Mode:         s.cfg.Transport.Mode,
		View:         s.view.Mode(),
		Samples:      s.store.Len(),
		Capacity:     s.store.Capacity(),
		Ingestion:    s.ingest.Stats(),
		ResizeEvents: events,
		ResizePasses: passes,
	}
}

// Status is a one-line summary for the terminal UI.
func (s *DashboardSession) Status() string {
	st := s.Stats()
	in := st.Ingestion
	return fmt.Sprintf("%s/%s  samples %d/%d  applied %d  dropped %d",
		st.Mode, st.View, st.Samples, st.Capacity, in.Applied,
		in.DecodeErrors+in.FetchErrors+in.SkippedTicks)
}

// Dispose closes the subscription, abandons any in-flight pull and
// cancels a pending resize. Safe to call more than once.
func (s *DashboardSession) Dispose() error {
	s.disposeOnce.Do(func() {
		s.resize.Dispose()
		s.disposeErr = s.ingest.Stop()
		st := s.Stats()
		s.log.Info("session %s disposed  samples=%d applied=%d resize_passes=%d",
			s.id, st.Samples, st.Ingestion.Applied, st.ResizePasses)
	})
	return s.disposeErr
}

// ExportReport downloads the server-generated report into the export
// directory and returns the file path.
func (s *DashboardSession) ExportReport(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Export.ReportURL, nil)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", &transport.Error{Op: "export", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &transport.Error{Op: "export", Err: fmt.Errorf("GET %s: %s", s.cfg.Export.ReportURL, resp.Status)}
	}

	if err := os.MkdirAll(s.cfg.Export.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("export: create output dir: %w", err)
	}
	name := utils.ReportName("report", s.clock.Now(), reportExt(resp.Header.Get("Content-Type")))
	path := filepath.Join(s.cfg.Export.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	n, err := s.WriteReport(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("export: %w", err)
	}
	s.log.Info("report saved  path=%s bytes=%d", path, n)
	return path, nil
}

// WriteReport copies a report body to dst, bounded in size.
func (s *DashboardSession) WriteReport(dst io.Writer, body io.Reader) (int64, error) {
	n, err := io.Copy(dst, io.LimitReader(body, maxReportBytes+1))
	if err != nil {
		return n, err
	}
	if n > maxReportBytes {
		return n, fmt.Errorf("report exceeds %d bytes", maxReportBytes)
	}
	return n, nil
}

func reportExt(contentType string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "image/png":
		return "png"
	case "text/csv":
		return "csv"
	}
	return "html"
}
