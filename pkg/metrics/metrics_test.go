package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopRecorder(t *testing.T) {
	r := Nop()
	require.NotNil(t, r)

	// All observations are accepted and discarded.
	r.ObserveAttempt("a", 1, true)
	r.ObserveValidationLayer("a", "schema", "schema", false)
	r.ObserveToolExecution("a", "lookup", true, time.Millisecond)
	r.ObserveRun("a", "success", 2, time.Second)
}

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveAttempt("extractor", 1, false)
	r.ObserveAttempt("extractor", 2, true)
	r.ObserveValidationLayer("extractor", "schema", "schema", true)
	r.ObserveValidationLayer("extractor", "min_length", "custom", false)
	r.ObserveToolExecution("extractor", "lookup", false, 5*time.Millisecond)
	r.ObserveRun("extractor", "success", 2, 100*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.attemptsTotal.WithLabelValues("extractor", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.attemptsTotal.WithLabelValues("extractor", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.validationTotal.WithLabelValues("extractor", "schema", "schema", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.validationTotal.WithLabelValues("extractor", "min_length", "custom", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.toolTotal.WithLabelValues("extractor", "lookup", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.runsTotal.WithLabelValues("extractor", "success")))
}

func TestPrometheusRecorderSeparateRegistries(t *testing.T) {
	// Two recorders with private registries must not collide.
	a := NewPrometheusRecorder(prometheus.NewRegistry())
	b := NewPrometheusRecorder(prometheus.NewRegistry())
	a.ObserveRun("x", "success", 1, time.Second)
	b.ObserveRun("x", "exhausted", 3, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(a.runsTotal.WithLabelValues("x", "success")))
	assert.Equal(t, float64(0), testutil.ToFloat64(a.runsTotal.WithLabelValues("x", "exhausted")))
}
