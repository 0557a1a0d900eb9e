package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messages     *prometheus.CounterVec
	admissions   *prometheus.CounterVec
	alerts       *prometheus.CounterVec
	suppressions *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	viewers      prometheus.Gauge
	symbols      prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingscan_messages_total",
				Help: "Total number of aggregate messages processed",
			},
			[]string{"symbol"},
		),
		admissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingscan_admissions_total",
				Help: "Total number of symbols admitted to full evaluation",
			},
			[]string{"symbol"},
		),
		alerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingscan_alerts_total",
				Help: "Total number of alerts broadcast",
			},
			[]string{"symbol"},
		),
		suppressions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingscan_suppressions_total",
				Help: "Alerts suppressed, by reason",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swingscan_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swingscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		viewers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "swingscan_viewers",
				Help: "Number of connected alert viewers",
			},
		),
		symbols: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "swingscan_tracked_symbols",
				Help: "Number of symbols currently held in the state store",
			},
		),
	}
}

// RecordMessage records one processed aggregate message.
func (r *Recorder) RecordMessage(symbol string) {
	r.messages.WithLabelValues(symbol).Inc()
}

// RecordAdmission records a symbol admitted to full scoring.
func (r *Recorder) RecordAdmission(symbol string) {
	r.admissions.WithLabelValues(symbol).Inc()
}

// RecordAlert records a broadcast alert.
func (r *Recorder) RecordAlert(symbol string) {
	r.alerts.WithLabelValues(symbol).Inc()
}

// RecordSuppression records a suppressed alert by reason.
func (r *Recorder) RecordSuppression(reason string) {
	r.suppressions.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetViewerCount records the number of connected viewers.
func (r *Recorder) SetViewerCount(n int) {
	r.viewers.Set(float64(n))
}

// SetTrackedSymbols records the state store population.
func (r *Recorder) SetTrackedSymbols(n int) {
	r.symbols.Set(float64(n))
}
