package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/student-sections/sections-api/internal/platform/httpx"
	"github.com/student-sections/sections-api/internal/shared"
)

// Worker consumes the default queue and, when cron entries exist, runs the scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler routes one task type.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration enqueues Task on every tick of Spec (UTC).
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig configures NewWorker. Concurrency defaults to 5.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// AuthEventHandlers returns the handlers that serve the audit trail tasks.
func AuthEventHandlers(job *AuthEventsJob) []TaskHandler {
	return []TaskHandler{
		{Type: TaskAuthEvent, Handler: job.Handle},
		{Type: TaskAuthEventsPurge, Handler: job.HandlePurge},
	}
}

// NewWorker builds the server, routes cfg.Handlers and registers cron entries.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			return nil, fmt.Errorf("jobs: incomplete handler registration %q", h.Type)
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	w := &Worker{
		server: asynq.NewServer(cfg.RedisOpts, asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{QueueDefault: 1},
			Logger:      newAsynqLogger(cfg.Logger),
		}),
		mux:    mux,
		logger: cfg.Logger,
	}
	if len(cfg.Cron) == 0 {
		return w, nil
	}

	w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(cfg.Logger),
	})
	for _, entry := range cfg.Cron {
		if entry.Spec == "" || entry.Task == nil {
			return nil, errors.New("jobs: cron entry needs a spec and a task")
		}
		id, err := w.scheduler.Register(entry.Spec, entry.Task, entry.Options...)
		if err != nil {
			return nil, fmt.Errorf("jobs: register cron %q for %s: %w", entry.Spec, entry.Task.Type(), err)
		}
		cfg.Logger.Debug("cron registered", slog.String("task", entry.Task.Type()), slog.String("spec", entry.Spec), slog.String("entry", id))
	}
	return w, nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return errors.New("jobs: worker not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs: start server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("jobs: start scheduler: %w", err)
		}
	}

	<-ctx.Done()
	w.logger.Info("worker draining")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}

// Client enqueues audit tasks. It satisfies the auth event publisher port.
type Client struct {
	enqueuer *asynq.Client
}

// NewClient connects lazily to the Redis behind redisOpts.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{enqueuer: asynq.NewClient(redisOpts)}
}

// Publish enqueues event for persistence by the worker.
func (c *Client) Publish(ctx context.Context, event shared.AuthEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	task, err := NewAuthEventTask(event)
	if err != nil {
		return err
	}
	if _, err := c.enqueuer.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return fmt.Errorf("jobs: enqueue %s: %w", event.Kind, err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.enqueuer.Close()
}

// QueueInspector reports queue depth.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler serves the queue health endpoint.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler returns a Handler. A nil inspector reports an empty queue.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes registers GET /health.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Failed  int    `json:"failed"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := queueHealth{Queue: QueueDefault}
	if h.inspector != nil {
		info, err := h.inspector.GetQueueInfo(QueueDefault)
		if err != nil {
			h.logger.Warn("jobs health", slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue unreachable")
			return
		}
		if info != nil {
			status = queueHealth{Queue: info.Queue, Pending: info.Pending, Failed: info.Failed}
		}
	}
	httpx.JSON(w, http.StatusOK, status)
}
