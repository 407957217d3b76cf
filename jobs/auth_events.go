package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/student-sections/sections-api/internal/jobs"
	"github.com/student-sections/sections-api/internal/shared"
)

// EventStore persists and expires auth events.
type EventStore interface {
	Record(ctx context.Context, event shared.AuthEvent) error
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuthEventsJob handles the audit trail tasks.
type AuthEventsJob struct {
	store     EventStore
	retention time.Duration
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
	now       func() time.Time
}

// NewAuthEventsJob constructs the job. A non-positive retention disables purging.
func NewAuthEventsJob(store EventStore, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuthEventsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthEventsJob{store: store, retention: retention, logger: logger, metrics: metrics, now: time.Now}
}

// Handle processes TaskAuthEvent tasks.
func (j *AuthEventsJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskAuthEvent)
	defer func() { err = tracker.End(err) }()

	var event shared.AuthEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return fmt.Errorf("decode auth event: %v: %w", err, asynq.SkipRetry)
	}
	if event.Kind == "" {
		return fmt.Errorf("auth event without kind: %w", asynq.SkipRetry)
	}
	if err := j.store.Record(ctx, event); err != nil {
		j.logger.Error("record auth event", slog.String("kind", event.Kind), slog.Any("error", err))
		return err
	}
	j.metrics.AddEvent(event.Kind)
	return nil
}

// HandlePurge processes TaskAuthEventsPurge tasks.
func (j *AuthEventsJob) HandlePurge(ctx context.Context, task *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskAuthEventsPurge)
	defer func() { err = tracker.End(err) }()

	retention := j.retention
	if len(task.Payload()) > 0 {
		var payload PurgePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode purge payload: %v: %w", err, asynq.SkipRetry)
		}
		if payload.Retention > 0 {
			retention = payload.Retention
		}
	}
	if retention <= 0 {
		j.logger.Info("auth event purge disabled")
		return nil
	}

	cutoff := j.now().UTC().Add(-retention)
	removed, err := j.store.Purge(ctx, cutoff)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		j.logger.Error("purge auth events", slog.Any("error", err))
		return err
	}
	j.metrics.AddPurged(removed)
	j.logger.Info("auth events purged", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return nil
}
