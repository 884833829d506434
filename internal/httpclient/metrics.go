package httpclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for inspection traffic.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// registers with the default registerer. Clients sharing a registerer share
// the underlying collectors, so constructing several clients with metrics
// enabled is fine.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		requestsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aidefense_client_requests_total",
				Help: "Total number of inspection requests by endpoint and outcome",
			},
			[]string{"endpoint", "status"},
		)),
		requestDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aidefense_client_request_duration_seconds",
				Help:    "Inspection request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)),
		retriesTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aidefense_client_retries_total",
				Help: "Total number of retried inspection requests by endpoint",
			},
			[]string{"endpoint"},
		)),
	}
}

// register adds c to reg, reusing the collector already registered under the
// same descriptor when another client got there first.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		return dup.ExistingCollector.(C)
	}
	panic(err)
}

// RecordRequest records one completed attempt. status is the numeric HTTP
// status, or "error" when no response was received.
func (m *Metrics) RecordRequest(endpoint, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (m *Metrics) RecordRetry(endpoint string) {
	m.retriesTotal.WithLabelValues(endpoint).Inc()
}
