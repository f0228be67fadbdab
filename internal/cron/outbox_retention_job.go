package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

const day = 24 * time.Hour

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
	CountPending(ctx context.Context) (int64, error)
}

// OutboxRetentionJobParams configure outbox pruning.
type OutboxRetentionJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Outbox outboxPruner
	Config config.OutboxConfig
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	outbox      outboxPruner
	keep        time.Duration
	deadLetters int
	now         func() time.Time
}

// NewOutboxRetentionJob prunes delivered notifications and rows that
// exhausted their publish attempts once they age past the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Config.RetentionDays <= 0 {
		return nil, fmt.Errorf("outbox retention days must be positive")
	}
	if params.Config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("outbox max attempts must be positive")
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		outbox:      params.Outbox,
		keep:        time.Duration(params.Config.RetentionDays) * day,
		deadLetters: params.Config.MaxAttempts,
		now:         time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.outbox.DeletePublishedBefore(ctx, tx, cutoff, j.deadLetters)
		return err
	})
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	pending, err := j.outbox.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending outbox rows: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"deleted": deleted,
		"pending": pending,
	}), "outbox.retention_complete")
	return nil
}
