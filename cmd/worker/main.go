package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/student-sections/sections-api/internal/app"
	jobmetrics "github.com/student-sections/sections-api/internal/jobs"
	"github.com/student-sections/sections-api/internal/platform/db"
	"github.com/student-sections/sections-api/internal/shared"
	"github.com/student-sections/sections-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 {
		if err := runCommand(ctx, redisOpts, os.Args[1:]); err != nil {
			logger.Error("worker command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	eventsJob := jobs.NewAuthEventsJob(shared.NewAuditLogger(pool), cfg.AuditRetention, logger, jobmetrics.NewMetrics(nil))
	purgeTask, err := jobs.NewAuthEventsPurgeTask(jobs.PurgePayload{})
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    jobs.AuthEventHandlers(eventsJob),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AuditPurgeCron, Task: purgeTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.Unique(time.Hour)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("purge_cron", cfg.AuditPurgeCron), slog.Duration("retention", cfg.AuditRetention))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, redisOpts asynq.RedisClientOpt, args []string) error {
	c := NewJobsCLI(redisOpts)
	defer func() { _ = c.Close() }()

	switch args[0] {
	case "purge":
		info, err := c.TriggerPurge(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "enqueued %s id=%s\n", info.Type, info.ID)
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		return writeStats(os.Stdout, stats)
	default:
		return fmt.Errorf("unknown command %q (want purge or stats)", args[0])
	}
	return nil
}
