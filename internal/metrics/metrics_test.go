package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusvm/clusterqueue/pkg/types"
)

func TestNewCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	require.NotNil(t, c)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["queue_jobs_submitted_total"])
	assert.True(t, names["queue_jobs_finished_total"])
	assert.True(t, names["queue_depth"])
}

func TestCollector_JobSubmitted(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.JobSubmitted()
	c.JobSubmitted()

	assert.Equal(t, float64(2), counterValue(t, reg, "queue_jobs_submitted_total", nil))
}

func TestCollector_JobFinished_LabelsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.JobFinished(types.OpSuccess)
	c.JobFinished(types.OpSuccess)
	c.JobFinished(types.OpError)

	assert.Equal(t, float64(2), counterValue(t, reg, "queue_jobs_finished_total", map[string]string{"status": "SUCCESS"}))
	assert.Equal(t, float64(1), counterValue(t, reg, "queue_jobs_finished_total", map[string]string{"status": "ERROR"}))
}

func TestCollector_QueueDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.QueueDepth(7)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "queue_depth" {
			continue
		}
		require.Len(t, f.GetMetric(), 1)
		assert.Equal(t, float64(7), f.GetMetric()[0].GetGauge().GetValue())
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	if len(want) == 0 {
		return len(m.GetLabel()) == 0
	}
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
