package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ClassificationRequests.Inc()
	m.MessagesProcessed.WithLabelValues("move", "Success").Add(2)
	m.HistorySize.Set(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassificationRequests))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesProcessed.WithLabelValues("move", "Success")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.HistorySize))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewNopIsIndependent(t *testing.T) {
	a, b := NewNop(), NewNop()
	a.SchedulerRuns.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SchedulerRuns))
}
