package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

type publishedEventPruner interface {
	DeletePublishedBefore(cutoff time.Time, limit int) (int64, error)
}

// NewOutboxRetentionJob builds the job that prunes published outbox
// events once they pass the retention window.
func NewOutboxRetentionJob(logg *logger.Logger, repo publishedEventPruner, retentionDays, batchSize int) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &outboxRetentionJob{
		logg:          logg,
		repo:          repo,
		retentionDays: retentionDays,
		batchSize:     batchSize,
		now:           time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg          *logger.Logger
	repo          publishedEventPruner
	retentionDays int
	batchSize     int
	now           func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)
	var total int64
	for {
		deleted, err := j.repo.DeletePublishedBefore(cutoff, j.batchSize)
		if err != nil {
			return fmt.Errorf("pruning outbox events: %w", err)
		}
		total += deleted
		if deleted < int64(j.batchSize) {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "deleted", total), "outbox retention sweep complete")
	return nil
}
