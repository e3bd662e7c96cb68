// Package metrics holds the Prometheus collectors of the interview service.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mockly"

type Metrics struct {
	generationDuration *prometheus.HistogramVec
	transitions        *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	eventsPublished    *prometheus.CounterVec
	captureSessions    prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg. Collectors that are
// already registered are reused, so building twice against one registry is fine.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Latency of generative-text calls by operation and outcome.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"op", "outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "interview",
				Name:      "transitions_total",
				Help:      "Lifecycle transitions applied, by event.",
			},
			[]string{"event"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served, by route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Lifecycle events handed to a sink, by sink and outcome.",
			},
			[]string{"sink", "outcome"},
		),
		captureSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "capture",
				Name:      "sessions_active",
				Help:      "Answer capture sessions currently open.",
			},
		),
	}

	m.generationDuration = register(reg, m.generationDuration)
	m.transitions = register(reg, m.transitions)
	m.httpRequests = register(reg, m.httpRequests)
	m.httpDuration = register(reg, m.httpDuration)
	m.eventsPublished = register(reg, m.eventsPublished)
	m.captureSessions = register(reg, m.captureSessions)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObserveGeneration(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.generationDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (m *Metrics) IncTransition(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) IncEvent(sink string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "dropped"
	}
	m.eventsPublished.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) SetCaptureSessions(n int) {
	if m == nil {
		return
	}
	m.captureSessions.Set(float64(n))
}
