package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	defaultChannelPrefix  = "bistro:events"
	publishConcurrency    = 8
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// broker is the redis pub/sub surface the publisher needs.
type broker interface {
	Ping(context.Context) error
	Publish(ctx context.Context, channel string, message any) (int64, error)
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

// nonRetryableError marks events that will never publish, such as a payload
// that no longer decodes.
type nonRetryableError struct {
	err error
}

func (e nonRetryableError) Error() string { return e.err.Error() }

func (e nonRetryableError) Unwrap() error { return e.err }

// brokerMessage is what subscribers receive on <prefix>:<event_type>.
type brokerMessage struct {
	OutboxID      string                 `json:"outboxId"`
	EventType     string                 `json:"eventType"`
	AggregateType string                 `json:"aggregateType"`
	AggregateID   string                 `json:"aggregateId"`
	Envelope      outbox.PayloadEnvelope `json:"envelope"`
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Broker     broker
	Repository outboxRepository
	Metrics    *metrics.OutboxMetrics
}

type Service struct {
	logg          *logger.Logger
	db            dbClient
	repo          outboxRepository
	broker        broker
	metrics       *metrics.OutboxMetrics
	batchSize     int
	maxAttempts   int
	channelPrefix string
	pollInterval  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Broker == nil {
		return nil, errors.New("broker client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}

	cfg := params.Config.Outbox
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := cfg.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	prefix := strings.TrimSuffix(strings.TrimSpace(cfg.ChannelPrefix), ":")
	if prefix == "" {
		prefix = defaultChannelPrefix
	}

	return &Service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repository,
		broker:        params.Broker,
		metrics:       params.Metrics,
		batchSize:     batch,
		maxAttempts:   maxAttempts,
		channelPrefix: prefix,
		pollInterval:  time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	return pingDependency(ctx, s.logg, "redis", s.broker.Ping)
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch claims a batch, publishes it concurrently and records every
// outcome inside the claiming transaction.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		outcomes := make([]error, len(events))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(publishConcurrency)
		for i := range events {
			g.Go(func() error {
				outcomes[i] = s.publish(gctx, events[i])
				return nil
			})
		}
		_ = g.Wait()

		for i, event := range events {
			if err := s.record(ctx, tx, event, outcomes[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, publishErr error) error {
	fields := s.eventFields(event)
	eventType := string(event.EventType)
	if publishErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox.event_published")
		return nil
	}

	s.metrics.IncFailed(eventType)
	nextAttempt := event.AttemptCount + 1
	fields["attempt_count"] = nextAttempt
	fields["error"] = publishErr.Error()

	var nonRetry nonRetryableError
	terminal := errors.As(publishErr, &nonRetry)
	if terminal {
		fields["terminal_reason"] = "non_retryable"
	} else if nextAttempt >= s.maxAttempts {
		terminal = true
		fields["terminal_reason"] = "max_attempts"
	}
	if terminal {
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.event_abandoned")
		if err := s.repo.MarkTerminalTx(tx, event.ID, publishErr, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		return nil
	}

	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.publish_failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent) error {
	if !event.EventType.IsValid() {
		return nonRetryableError{err: fmt.Errorf("unknown event type %q", event.EventType)}
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nonRetryableError{err: fmt.Errorf("decode envelope: %w", err)}
	}
	body, err := json.Marshal(brokerMessage{
		OutboxID:      event.ID.String(),
		EventType:     string(event.EventType),
		AggregateType: string(event.AggregateType),
		AggregateID:   event.AggregateID,
		Envelope:      envelope,
	})
	if err != nil {
		return nonRetryableError{err: fmt.Errorf("encode message: %w", err)}
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	// zero receivers is not a failure; the event is fire and forget
	_, err = s.broker.Publish(publishCtx, s.channelFor(event), string(body))
	return err
}

func (s *Service) channelFor(event models.OutboxEvent) string {
	return s.channelPrefix + ":" + string(event.EventType)
}

func (s *Service) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"channel":        s.channelFor(event),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
