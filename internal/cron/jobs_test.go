package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubExpirer struct {
	batches []int
	calls   int
	limits  []int
}

func (s *stubExpirer) ExpireDue(_ context.Context, limit int) (int, error) {
	s.limits = append(s.limits, limit)
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	n := s.batches[s.calls]
	s.calls++
	return n, nil
}

func TestInvoiceExpiryJobDrainsBatches(t *testing.T) {
	expirer := &stubExpirer{batches: []int{2, 2, 1}}
	job, err := NewInvoiceExpiryJob(testLogger(), expirer, 2)
	require.NoError(t, err)
	require.Equal(t, "invoice-expiry", job.Name())

	require.NoError(t, job.Run(context.Background()))
	// Two full batches force a third call that comes back short.
	require.Equal(t, []int{2, 2, 2}, expirer.limits)
}

type stubPruner struct {
	batches []int64
	calls   int
	cutoffs []time.Time
	err     error
}

func (s *stubPruner) DeletePublishedBefore(cutoff time.Time, _ int) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	if s.err != nil {
		return 0, s.err
	}
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	n := s.batches[s.calls]
	s.calls++
	return n, nil
}

func TestOutboxRetentionJobUsesRetentionCutoff(t *testing.T) {
	pruner := &stubPruner{batches: []int64{3}}
	job, err := NewOutboxRetentionJob(testLogger(), pruner, 30, 500)
	require.NoError(t, err)

	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	job.(*outboxRetentionJob).now = func() time.Time { return fixed }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, pruner.cutoffs, 1)
	require.Equal(t, fixed.AddDate(0, 0, -30), pruner.cutoffs[0])
}

func TestOutboxRetentionJobPropagatesErrors(t *testing.T) {
	pruner := &stubPruner{err: errors.New("db down")}
	job, err := NewOutboxRetentionJob(testLogger(), pruner, 30, 500)
	require.NoError(t, err)

	require.Error(t, job.Run(context.Background()))
}
