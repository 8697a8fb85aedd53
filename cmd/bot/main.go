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

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/sigmapips-bot/internal/api"
	"github.com/Proton-105/sigmapips-bot/internal/bot"
	"github.com/Proton-105/sigmapips-bot/internal/chart"
	apperrors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/internal/health"
	"github.com/Proton-105/sigmapips-bot/internal/idempotency"
	"github.com/Proton-105/sigmapips-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/sigmapips-bot/internal/jobs/handlers"
	"github.com/Proton-105/sigmapips-bot/internal/lifecycle"
	"github.com/Proton-105/sigmapips-bot/internal/preferences"
	"github.com/Proton-105/sigmapips-bot/internal/subscribers"
	"github.com/Proton-105/sigmapips-bot/pkg/config"
	"github.com/Proton-105/sigmapips-bot/pkg/graceful"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
	"github.com/Proton-105/sigmapips-bot/pkg/redis"
)

const sentryFlushTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("sigmapips bot exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return err
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	log, level := logger.New(*cfg)
	slog.SetDefault(log)
	config.Watch(v, log, func(lc config.LoggerConfig) {
		level.Set(logger.ParseLevel(lc.Level))
		log.Info("log level updated", slog.String("level", level.Level().String()))
	})

	log.Info("starting sigmapips bot",
		slog.String("bot_mode", cfg.Bot.Mode),
		slog.String("http_port", cfg.Server.Port),
		slog.Bool("jobs_enabled", cfg.Jobs.Enabled),
	)

	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	rdb, err := redis.New(ctx, cfg.Redis)
	switch {
	case err == nil:
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	case cfg.Jobs.Enabled:
		return err
	default:
		log.Warn("redis unavailable, callback de-duplication disabled", slog.Any("error", err))
	}

	opts := bot.Options{}
	if charts := chart.NewClient(cfg.Chart, log); charts != nil {
		opts.Charts = charts
	}
	if rdb != nil && cfg.Idempotency.Enabled {
		opts.Idempotency = idempotency.NewManager(idempotency.NewRedisStore(rdb, log), log)
	}
	var prefStore *preferences.RedisStore
	if rdb != nil && cfg.Preferences.Enabled {
		prefStore = preferences.NewRedisStore(rdb, log)
		opts.Preferences = prefStore
	}

	b, err := bot.New(*cfg, log, opts)
	if err != nil {
		return err
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))
	shutdown.Register("telegram", func(context.Context) error {
		b.Stop()
		return nil
	})

	var broadcaster *subscribers.Broadcaster
	if cfg.Subscribers.Enabled {
		var matcher subscribers.Matcher
		switch {
		case cfg.Subscribers.MatcherURL != "":
			matcher = subscribers.NewHTTPMatcher(cfg.Subscribers, log)
		case prefStore != nil:
			matcher = subscribers.NewPreferenceMatcher(prefStore, preferences.NewCatalog(cfg.Preferences))
		default:
			log.Warn("subscriber fan-out enabled without a matcher url or preference store, disabled")
		}
		if matcher != nil {
			broadcaster = subscribers.NewBroadcaster(matcher, b.Sender(), log)
		}
	}

	var queue api.Enqueuer
	if cfg.Jobs.Enabled {
		redisOpt := asynqRedisOpt(rdb)

		manager := jobs.NewManager(redisOpt, log)
		queue = manager
		shutdown.Register("jobs_client", func(context.Context) error { return manager.Close() })

		worker := jobs.NewWorker(redisOpt, jobs.DefaultQueues, cfg.Jobs.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeSignalDeliver, jobhandlers.NewSignalDeliveryHandler(b.Sender(), log))
		if broadcaster != nil {
			worker.RegisterHandler(jobs.TaskTypeSignalBroadcast, jobhandlers.NewSignalBroadcastHandler(broadcaster, log))
		}
		shutdown.Register("jobs_worker", func(context.Context) error {
			worker.Shutdown()
			return nil
		})

		go func() {
			if err := worker.Run(); err != nil {
				log.Error("jobs worker stopped", slog.Any("error", err))
				stop()
			}
		}()
	}

	processHealth := lifecycle.NewProcessHealth(checker, log)
	apiOpts := api.Options{
		Queue:   queue,
		Checker: checker,
		Health:  processHealth,
	}
	if broadcaster != nil {
		apiOpts.Broadcaster = broadcaster
	}
	apiServer := api.NewServer(b.Sender(), errHandler, log, apiOpts)
	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe(ctx)
	}()

	go b.Start()

	var serveErr error
	httpStopped := false
	select {
	case <-ctx.Done():
	case serveErr = <-httpErr:
		httpStopped = true
		if serveErr != nil {
			log.Error("http server failed", slog.Any("error", serveErr))
		}
		stop()
	}

	processHealth.Drain()
	log.Info("sigmapips bot shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := shutdown.Execute(shutdownCtx)

	if !httpStopped {
		select {
		case serveErr = <-httpErr:
		case <-shutdownCtx.Done():
		}
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		shutdownErr = errors.Join(shutdownErr, serveErr)
	}

	return shutdownErr
}

func asynqRedisOpt(rdb *goredis.Client) asynq.RedisConnOpt {
	o := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
		PoolSize: o.PoolSize,
	}
}
