package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/lokabekas/lokabekas-backend/pkg/logger"
	"github.com/lokabekas/lokabekas-backend/pkg/metrics"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type stubLock struct {
	acquired bool
	releases int
}

func (l *stubLock) Acquire(context.Context) (bool, error) { return l.acquired, nil }
func (l *stubLock) Release(context.Context) error {
	l.releases++
	return nil
}

func TestRunCycleRunsJobsInOrder(t *testing.T) {
	first := &recordingJob{name: "first"}
	failing := &recordingJob{name: "failing", err: errors.New("boom")}
	last := &recordingJob{name: "last"}
	lock := &stubLock{acquired: true}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(first, failing, last),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	require.Equal(t, 1, first.runs)
	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, last.runs, "a failing job must not stop later jobs")
	require.Equal(t, 1, lock.releases)
}

func TestRunCycleSkipsWithoutLock(t *testing.T) {
	job := &recordingJob{name: "job"}
	lock := &stubLock{acquired: false}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.releases)
}

func TestRunCycleRecordsJobOutcomes(t *testing.T) {
	passing := &recordingJob{name: "passing"}
	failing := &recordingJob{name: "failing", err: errors.New("boom")}
	reg := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(passing, failing),
		Lock:     &stubLock{acquired: true},
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	require.NoError(t, svc.runCycle(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, float64(1), jobCounter(t, families, "job_success_total", "passing"))
	require.Equal(t, float64(1), jobCounter(t, families, "job_failure_total", "failing"))
}

func jobCounter(t *testing.T, families []*dto.MetricFamily, name, job string) float64 {
	t.Helper()
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("no %s series for job %s", name, job)
	return 0
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &stubLock{}})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}
