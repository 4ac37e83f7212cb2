// Package metrics provides Prometheus metrics for orgwarden.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the registered Prometheus collectors.
type Metrics struct {
	ExternalCalls        *prometheus.CounterVec
	ExternalCallDuration *prometheus.HistogramVec
	DomainEvents         *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ExternalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgwarden",
			Name:      "external_calls_total",
			Help:      "Calls to external collaborators by system, operation and outcome.",
		}, []string{"system", "operation", "outcome"}),
		ExternalCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orgwarden",
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to external collaborators.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"system", "operation"}),
		DomainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgwarden",
			Name:      "domain_events_total",
			Help:      "Domain events published on the in-process bus.",
		}, []string{"event"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgwarden",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orgwarden",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		m.ExternalCalls, m.ExternalCallDuration, m.DomainEvents, m.HTTPRequests, m.HTTPDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// ObserveExternalCall records one call to an external system.
func (m *Metrics) ObserveExternalCall(system, operation string, start time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.ExternalCalls.WithLabelValues(system, operation, outcome).Inc()
	m.ExternalCallDuration.WithLabelValues(system, operation).Observe(time.Since(start).Seconds())
}

// RecordEvent counts a published domain event.
func (m *Metrics) RecordEvent(name string) {
	m.DomainEvents.WithLabelValues(name).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
