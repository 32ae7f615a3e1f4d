package hub

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"accel-dashboard/models"
	"accel-dashboard/services/window"
	"accel-dashboard/utils"
	"accel-dashboard/utils/clock"
	"accel-dashboard/views"
)

//go:embed static
var staticFiles embed.FS

const (
	reportWidth  = 1024
	reportHeight = 480
)

// Server is the device-facing telemetry hub. Devices POST samples to
// /update; dashboards read /data and /history or subscribe on /ws.
type Server struct {
	cfg         *utils.HubConfig
	store       *window.SeriesStore
	broadcaster *Broadcaster
	metrics     *Metrics
	clock       clock.Clock
	log         *utils.Logger

	mu     sync.RWMutex
	latest models.Sample
}

func NewServer(cfg *utils.HubConfig, clk clock.Clock) *Server {
	if clk == nil {
		clk = clock.Real()
	}
	metrics := NewMetrics()
	return &Server{
		cfg:         cfg,
		store:       window.NewSeriesStore(cfg.Hub.WindowCapacity),
		broadcaster: NewBroadcaster(cfg.Hub.MaxClients, metrics),
		metrics:     metrics,
		clock:       clk,
		log:         utils.L().With("hub"),
	}
}

// Ingest stores one sample and pushes it to every WebSocket client.
// source labels the update in metrics (http, mqtt, simulation).
func (s *Server) Ingest(sample models.Sample, source string) {
	if sample.Timestamp == nil {
		sample.Timestamp = utils.ClockLabel(s.clock.Now())
	}
	s.mu.Lock()
	s.latest = sample
	snap := s.store.IngestOne(sample)
	s.mu.Unlock()

	s.metrics.updates.WithLabelValues(source).Inc()
	s.metrics.windowSamples.Set(float64(snap.Len))

	if err := s.broadcaster.Publish(s.cfg.Hub.Event, sample); err != nil {
		s.log.Warn("broadcast: %v", err)
	}
}

// IngestPayload decodes a raw device payload and ingests it. A snapshot
// payload is ingested sample by sample, oldest first.
func (s *Server) IngestPayload(data []byte, enc models.Encoding, source string) error {
	p, err := models.DecodePayload(data, enc)
	if err != nil {
		s.metrics.decodeFailures.Inc()
		return err
	}
	switch p.Kind {
	case models.PayloadSingle:
		s.Ingest(p.Sample, source)
	case models.PayloadSnapshot:
		for _, sample := range p.Samples {
			s.Ingest(sample, source)
		}
	}
	return nil
}

// Latest returns the most recent sample, zeros before the first update.
func (s *Server) Latest() models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Snapshot returns the window; it never lags the sample Latest reports.
func (s *Server) Snapshot() window.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Snapshot()
}

func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the hub's routes wrapped in permissive CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /update", s.handleUpdate)
	mux.HandleFunc("GET /data", s.handleData)
	mux.Handle("GET /history", gzhttp.GzipHandler(http.HandlerFunc(s.handleHistory)))
	mux.Handle("GET /ws", s.broadcaster)
	mux.Handle("GET /report", gzhttp.GzipHandler(http.HandlerFunc(s.handleReportHTML)))
	mux.HandleFunc("GET /report.png", s.handleReportPNG)
	mux.Handle("GET /export.csv", gzhttp.GzipHandler(http.HandlerFunc(s.handleExportCSV)))
	mux.Handle("GET /metrics", s.metrics.Handler())

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("GET /", http.FileServerFS(static))
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Hub.MaxBodyKB) * 1024
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if int64(len(body)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("body exceeds %d bytes", limit))
		return
	}

	enc := models.EncodingFromContentType(r.Header.Get("Content-Type"))
	if err := s.IngestPayload(body, enc, "http"); err != nil {
		s.log.Debug("update rejected from %s: %v", r.RemoteAddr, err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeEncoded(w, http.StatusOK, map[string]string{"status": "ok"}, models.EncodingJSON)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	writeEncoded(w, http.StatusOK, s.Latest(), acceptEncoding(r))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeEncoded(w, http.StatusOK, s.Snapshot().Samples(), acceptEncoding(r))
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := RenderHTMLReport(&buf, s.Snapshot(), s.reportTitle()); err != nil {
		s.reportError(w, err)
		return
	}
	s.metrics.reports.WithLabelValues("html").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleReportPNG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := RenderPNGReport(&buf, s.Snapshot(), s.reportTitle(), reportWidth, reportHeight); err != nil {
		s.reportError(w, err)
		return
	}
	s.metrics.reports.WithLabelValues("png").Inc()
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := views.WriteCSV(&buf, s.Snapshot().Samples()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.reports.WithLabelValues("csv").Inc()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+utils.ReportName("window", s.clock.Now(), "csv")+`"`)
	w.Write(buf.Bytes())
}

func (s *Server) reportTitle() string {
	return "Accelerometer report " + s.clock.Now().Format("2006-01-02 15:04:05")
}

func (s *Server) reportError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotEnoughSamples) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.log.Error("report: %v", err)
	writeError(w, http.StatusInternalServerError, err)
}

func acceptEncoding(r *http.Request) models.Encoding {
	return models.EncodingFromContentType(r.Header.Get("Accept"))
}

func writeEncoded(w http.ResponseWriter, status int, v any, enc models.Encoding) {
	body, err := models.Encode(v, enc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeEncoded(w, status, map[string]string{"status": "error", "error": err.Error()}, models.EncodingJSON)
}

// Run serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Hub.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.cfg.Hub.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("hub listen: %w", err)
	case <-ctx.Done():
	}

	s.broadcaster.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	s.log.Info("hub stopped")
	return nil
}
