package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/student-sections/sections-api/jobs"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Close() error
}

var errCLINotConfigured = errors.New("worker cli: not configured")

// JobsCLI backs the one-shot worker commands.
type JobsCLI struct {
	client    enqueuer
	inspector queueInspector
}

// NewJobsCLI opens a client and an inspector on redisOpts.
func NewJobsCLI(redisOpts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(redisOpts), inspector: asynq.NewInspector(redisOpts)}
}

// Close closes both connections and reports the first failure.
func (c *JobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// TriggerPurge enqueues an immediate retention run with the worker's
// configured retention.
func (c *JobsCLI) TriggerPurge(ctx context.Context) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errCLINotConfigured
	}
	task, err := jobs.NewAuthEventsPurgeTask(jobs.PurgePayload{})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(0))
}

// QueueStats is the depth of the default queue by task state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reads the default queue's counters.
func (c *JobsCLI) InspectQueue(context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errCLINotConfigured
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, fmt.Errorf("worker cli: queue info: %w", err)
	}
	if info == nil {
		return QueueStats{Queue: jobs.QueueDefault}, nil
	}
	return QueueStats{
		Queue:     jobs.QueueDefault,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
	}, nil
}

func writeStats(w io.Writer, s QueueStats) error {
	_, err := fmt.Fprintf(w, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	return err
}
