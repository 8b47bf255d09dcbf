// Package metrics exposes generator and tutor activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects quantlab metrics in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	bookTicks     prometheus.Counter
	bookMid       prometheus.Gauge
	bookSpread    prometheus.Gauge
	generations   *prometheus.CounterVec
	tutorRequests *prometheus.CounterVec
	tutorLatency  *prometheus.HistogramVec
	streamClients *prometheus.GaugeVec
}

// New creates a recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		bookTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "quantlab_orderbook_ticks_total",
			Help: "Total number of order book regenerations",
		}),
		bookMid: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quantlab_orderbook_mid_price",
			Help: "Mid price of the latest order book snapshot",
		}),
		bookSpread: factory.NewGauge(prometheus.GaugeOpts{
			Name: "quantlab_orderbook_spread",
			Help: "Spread of the latest order book snapshot",
		}),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_generations_total",
				Help: "Total number of generated datasets by kind",
			},
			[]string{"kind"},
		),
		tutorRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlab_tutor_requests_total",
				Help: "Total number of tutor requests by language and outcome",
			},
			[]string{"lang", "outcome"},
		),
		tutorLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantlab_tutor_request_duration_seconds",
				Help:    "Duration of tutor model calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"lang"},
		),
		streamClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantlab_stream_clients",
				Help: "Connected streaming clients by transport",
			},
			[]string{"transport"},
		),
	}
}

// RecordBookTick records one order book regeneration.
func (r *Recorder) RecordBookTick(midPrice, spread float64) {
	r.bookTicks.Inc()
	r.bookMid.Set(midPrice)
	r.bookSpread.Set(spread)
}

// RecordGeneration counts a generated dataset ("series" or "frontier").
func (r *Recorder) RecordGeneration(kind string) {
	r.generations.WithLabelValues(kind).Inc()
}

// RecordTutorRequest records a tutor call outcome and its latency.
func (r *Recorder) RecordTutorRequest(lang string, outcome string, seconds float64) {
	r.tutorRequests.WithLabelValues(lang, outcome).Inc()
	r.tutorLatency.WithLabelValues(lang).Observe(seconds)
}

// StreamOpened increments the connected client gauge for transport.
func (r *Recorder) StreamOpened(transport string) {
	r.streamClients.WithLabelValues(transport).Inc()
}

// StreamClosed decrements the connected client gauge for transport.
func (r *Recorder) StreamClosed(transport string) {
	r.streamClients.WithLabelValues(transport).Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
