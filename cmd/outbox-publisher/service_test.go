package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newEvent(t, enums.EventMenuItemBlocked, "1"),
			newEvent(t, enums.EventMenuItemLowStock, "2"),
		},
	}
	broker := &fakeBroker{failFor: map[string]error{"1": errors.New("transient")}}
	service := newTestService(t, repo, broker, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second event published, got %v", repo.published)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("transient failures must stay retryable")
	}
}

func TestServicePublishesToEventChannel(t *testing.T) {
	event := newEvent(t, enums.EventMenuItemAvailable, "9")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	broker := &fakeBroker{}
	service := newTestService(t, repo, broker, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(broker.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(broker.sent))
	}
	sent := broker.sent[0]
	if sent.channel != "bistro:test:menu_item_available" {
		t.Fatalf("unexpected channel %q", sent.channel)
	}
	var msg brokerMessage
	if err := json.Unmarshal([]byte(sent.body), &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.OutboxID != event.ID.String() || msg.AggregateID != "9" || msg.EventType != "menu_item_available" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Envelope.EventID != "evt-9" {
		t.Fatalf("envelope not forwarded: %+v", msg.Envelope)
	}
}

func TestServiceParksUndecodablePayload(t *testing.T) {
	event := newEvent(t, enums.EventMenuItemBlocked, "4")
	event.Payload = json.RawMessage(`not json`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	broker := &fakeBroker{}
	service := newTestService(t, repo, broker, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected terminal mark, got %v", repo.terminal)
	}
	if len(broker.sent) != 0 {
		t.Fatalf("undecodable events must not reach the broker")
	}
}

func TestServiceParksAfterMaxAttempts(t *testing.T) {
	event := newEvent(t, enums.EventMenuItemLowStock, "5")
	event.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	broker := &fakeBroker{failFor: map[string]error{"5": errors.New("broker down")}}
	service := newTestService(t, repo, broker, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
		ChannelPrefix:  "bistro:test",
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark after max attempts, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal events are not marked failed again")
	}
}

func TestServiceCountsOutcomes(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newEvent(t, enums.EventMenuItemBlocked, "1"),
			newEvent(t, enums.EventMenuItemBlocked, "2"),
			newEvent(t, enums.EventMenuItemBlocked, "3"),
		},
	}
	broker := &fakeBroker{failFor: map[string]error{"2": errors.New("transient")}}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, broker, nil)
	service.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	expected := `
# HELP bistro_outbox_published_total Outbox events delivered to the broker.
# TYPE bistro_outbox_published_total counter
bistro_outbox_published_total{event_type="menu_item_blocked"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "bistro_outbox_published_total"); err != nil {
		t.Fatalf("unexpected published counter: %v", err)
	}
}

func TestServiceReportsEmptyBatch(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeBroker{}, nil)
	processed, err := service.processBatch(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle batch, processed=%v err=%v", processed, err)
	}
}

func TestNewServiceDefaults(t *testing.T) {
	service, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         &fakeDB{},
		Broker:     &fakeBroker{},
		Repository: &fakeRepo{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if service.batchSize != defaultBatchSize || service.maxAttempts != defaultMaxAttempts {
		t.Fatalf("defaults not applied: %+v", service)
	}
	if service.channelPrefix != defaultChannelPrefix {
		t.Fatalf("unexpected prefix %q", service.channelPrefix)
	}
	if _, err := NewService(ServiceParams{Config: &config.Config{}}); err == nil {
		t.Fatal("expected missing logger to fail")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(time.Second, time.Second, 3*time.Second); got != 2*time.Second {
		t.Fatalf("expected doubling, got %s", got)
	}
	if got := nextBackoff(2*time.Second, time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, broker broker, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
		ChannelPrefix:  "bistro:test:",
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: outboxCfg},
		Logger:     logg,
		DB:         &fakeDB{},
		Broker:     broker,
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func newEvent(tb testing.TB, eventType enums.OutboxEventType, aggregateID string) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    "evt-" + aggregateID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"menuItemId":` + aggregateID + `}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateMenuItem,
		AggregateID:   aggregateID,
		Payload:       payload,
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type sentMessage struct {
	channel string
	body    string
}

// fakeBroker fails publishes by aggregate id; calls arrive concurrently.
type fakeBroker struct {
	mu      sync.Mutex
	failFor map[string]error
	sent    []sentMessage
}

func (f *fakeBroker) Ping(context.Context) error {
	return nil
}

func (f *fakeBroker) Publish(_ context.Context, channel string, message any) (int64, error) {
	body := message.(string)
	var msg brokerMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[msg.AggregateID]; ok {
		return 0, err
	}
	f.sent = append(f.sent, sentMessage{channel: channel, body: body})
	return 1, nil
}
