package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.IncTransition("start")
	m.IncTransition("start")
	m.IncEvent("sse", false)
	m.ObserveGeneration("questions", errors.New("boom"), time.Second)
	m.SetCaptureSessions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("sse", "dropped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.captureSessions))
	assert.Equal(t, 1, testutil.CollectAndCount(m.generationDuration))
}

func TestMustNewMetricsTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.IncTransition("complete")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.transitions.WithLabelValues("complete")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTransition("start")
		m.ObserveRequest("GET", "/", "200", time.Millisecond)
		m.SetCaptureSessions(1)
	})
}
