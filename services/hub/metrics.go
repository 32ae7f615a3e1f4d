package hub

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the hub's Prometheus instruments, kept on a private
// registry so several hubs (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	updates        *prometheus.CounterVec
	decodeFailures prometheus.Counter
	broadcasts     prometheus.Counter
	broadcastDrops prometheus.Counter
	clients        prometheus.Gauge
	windowSamples  prometheus.Gauge
	reports        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accelhub_updates_total",
			Help: "Samples accepted, by source",
		}, []string{"source"}),
		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "accelhub_decode_failures_total",
			Help: "Payloads rejected at decode",
		}),
		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "accelhub_broadcasts_total",
			Help: "Envelopes queued to WebSocket clients",
		}),
		broadcastDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "accelhub_broadcast_drops_total",
			Help: "Envelopes dropped because a client was too slow",
		}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "accelhub_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		windowSamples: factory.NewGauge(prometheus.GaugeOpts{
			Name: "accelhub_window_samples",
			Help: "Samples currently held in the rolling window",
		}),
		reports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accelhub_reports_total",
			Help: "Reports rendered, by format",
		}, []string{"format"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is the hub's private registry; runtime collectors are added
// to it at startup.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
