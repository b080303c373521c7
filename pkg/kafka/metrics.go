package kafka

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type consumerMetrics struct {
	depth    *prometheus.GaugeVec
	messages *prometheus.CounterVec
	retries  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) (*consumerMetrics, error) {
	m := &consumerMetrics{
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpulse_kafka_consumer_queue_depth",
				Help: "Messages fetched and waiting for a worker",
			},
			[]string{"topic"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_kafka_consumer_messages_total",
				Help: "Consumed messages by result (ok, dead_letter, redeliver)",
			},
			[]string{"topic", "result"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_kafka_consumer_retries_total",
				Help: "Handler retries",
			},
			[]string{"topic"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_kafka_consumer_handle_seconds",
				Help:    "Handling time per message, retries included",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"topic"},
		),
	}
	var err error
	if m.depth, err = register(reg, m.depth); err != nil {
		return nil, err
	}
	if m.messages, err = register(reg, m.messages); err != nil {
		return nil, err
	}
	if m.retries, err = register(reg, m.retries); err != nil {
		return nil, err
	}
	if m.latency, err = register(reg, m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
