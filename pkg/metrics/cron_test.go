package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsExportsPerJobSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("invoice-expiry", 250*time.Millisecond)
	m.IncSuccess("invoice-expiry")
	m.IncSuccess("invoice-expiry")
	m.IncFailure("outbox-retention")

	families, err := reg.Gather()
	require.NoError(t, err)

	require.Equal(t, float64(2), counterValue(t, families, "job_success_total", "invoice-expiry"))
	require.Equal(t, float64(1), counterValue(t, families, "job_failure_total", "outbox-retention"))

	histogram := findMetric(t, families, "job_duration_seconds", "invoice-expiry")
	require.InDelta(t, 0.25, histogram.GetHistogram().GetSampleSum(), 0.001)
}

func TestCronJobMetricsEmptyJobNameFallsBack(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncSuccess("")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(1), counterValue(t, families, "job_success_total", "unknown"))
}

func TestCronJobMetricsNilRegistererIsNoOp(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.ObserveDuration("job", time.Second)
	m.IncSuccess("job")
	m.IncFailure("job")

	var nilMetrics *CronJobMetrics
	nilMetrics.IncSuccess("job")
}

func counterValue(t *testing.T, families []*dto.MetricFamily, name, job string) float64 {
	t.Helper()
	return findMetric(t, families, name, job).GetCounter().GetValue()
}

func findMetric(t *testing.T, families []*dto.MetricFamily, name, job string) *dto.Metric {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric
				}
			}
		}
	}
	t.Fatalf("no %s series for job %s", name, job)
	return nil
}
