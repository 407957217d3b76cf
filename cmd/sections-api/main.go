package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/student-sections/sections-api/internal/app"
	"github.com/student-sections/sections-api/internal/auth"
	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/observability"
	"github.com/student-sections/sections-api/internal/platform/cache"
	"github.com/student-sections/sections-api/internal/platform/db"
	"github.com/student-sections/sections-api/internal/rbac"
	"github.com/student-sections/sections-api/internal/roles"
	"github.com/student-sections/sections-api/internal/users"
	"github.com/student-sections/sections-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sections-api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.AppName,
		Version:     cfg.AppVersion,
		Environment: cfg.AppEnv,
		Stdout:      cfg.OTelTracesStdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	signer, err := cfg.Signer()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	hasher := authority.NewHasher(authority.DefaultHasherParams())
	permissions := authority.DefaultPermissions()

	userRepo := users.NewRepository(dbpool)
	tokenAuthority, err := authority.New(authority.Config{
		Signer:      signer,
		TTL:         cfg.AccessTokenTTL(),
		Issuer:      cfg.JWTIssuer,
		Hasher:      hasher,
		Permissions: permissions,
		Revocations: authority.NewRedisRevocationList(redisClient),
		Observer:    metrics,
	}, users.NewPrincipalStore(userRepo))
	if err != nil {
		return err
	}

	userService := users.NewService(userRepo, hasher, tokenAuthority)
	roleService := roles.NewService(roles.NewRepository(dbpool), permissions)
	if err := app.Bootstrap(ctx, cfg, logger, roleService, userService); err != nil {
		return err
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	rbacMiddleware := rbac.Middleware{Authority: tokenAuthority, Logger: logger}
	authService := auth.NewService(logger, tokenAuthority, userService, jobClient)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        auth.NewHandler(logger, authService, rbacMiddleware, cfg.LoginRateLimit),
		UsersHandler:       users.NewHandler(logger, userService, rbacMiddleware),
		RolesHandler:       roles.NewHandler(logger, roleService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(permissions, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
		HealthChecks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("version", cfg.AppVersion))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
