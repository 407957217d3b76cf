package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/student-sections/sections-api/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthEvent persists one auth event to the audit trail.
	TaskAuthEvent = "auth.event"
	// TaskAuthEventsPurge deletes audit events past retention.
	TaskAuthEventsPurge = "auth.events.purge"
)

// PurgePayload optionally overrides the configured retention.
type PurgePayload struct {
	Retention time.Duration `json:"retention,omitempty"`
}

// NewAuthEventTask constructs an Asynq task carrying event.
func NewAuthEventTask(event shared.AuthEvent) (*asynq.Task, error) {
	if event.Kind == "" {
		return nil, fmt.Errorf("jobs: auth event requires kind")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthEvent, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// NewAuthEventsPurgeTask constructs the retention task.
func NewAuthEventsPurgeTask(payload PurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthEventsPurge, data, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}
