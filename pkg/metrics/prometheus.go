package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	operations      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	anomalies       prometheus.Counter
	recommendations *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder's collectors with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_operations_total",
				Help: "Total number of core operations by outcome status",
			},
			[]string{"op", "status"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		anomalies: f.NewCounter(
			prometheus.CounterOpts{
				Name: "stockpulse_anomalies_detected_total",
				Help: "Total number of anomalous transactions reported",
			},
		),
		recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_recommendations_total",
				Help: "Inventory recommendations by status",
			},
			[]string{"status"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_ensemble_fallbacks_total",
				Help: "Ensemble forecasts served by a single model",
			},
			[]string{"model"},
		),
	}
}

// RecordOperation records one finished operation and its latency.
func (r *Recorder) RecordOperation(op, status string, seconds float64) {
	r.operations.WithLabelValues(op, status).Inc()
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordAnomalies(n int) {
	r.anomalies.Add(float64(n))
}

func (r *Recorder) RecordRecommendation(status string) {
	r.recommendations.WithLabelValues(status).Inc()
}

// RecordFallback records which model served an ensemble request alone.
func (r *Recorder) RecordFallback(model string) {
	r.fallbacks.WithLabelValues(model).Inc()
}
