package metrics_test

import (
	"testing"

	"github.com/UnknownOlympus/compass/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	require.NotNil(t, m)

	m.Readings.WithLabelValues("accepted").Inc()
	m.Readings.WithLabelValues("accepted").Inc()
	m.Errors.WithLabelValues("timeout").Inc()
	m.Retries.Inc()
	m.ActiveSessions.Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Readings.WithLabelValues("accepted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Retries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveSessions), 0)

	t.Run("registering twice panics", func(t *testing.T) {
		assert.Panics(t, func() { metrics.NewMetrics(reg) })
	})
}
