package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/postflowhq/postflow/internal/storage/postgres"
	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/config"
	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/httpapi"
	"github.com/postflowhq/postflow/pkg/httpserver"
	"github.com/postflowhq/postflow/pkg/jobs"
	"github.com/postflowhq/postflow/pkg/logger"
	"github.com/postflowhq/postflow/pkg/pg"
	"github.com/postflowhq/postflow/pkg/ratelimit"
	"github.com/postflowhq/postflow/pkg/redis"
	"github.com/postflowhq/postflow/pkg/scheduler"
)

type appConfig struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	PlatformsFile string `env:"PLATFORMS_FILE" envDefault:"platforms.yaml"`
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`

	OrgJobLimit       int           `env:"ORG_JOB_LIMIT" envDefault:"25"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"5"`
	WorkerInterval    time.Duration `env:"WORKER_INTERVAL" envDefault:"5s"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`

	PublishCron        string        `env:"PUBLISH_CRON" envDefault:"* * * * *"`
	PublishConcurrency int           `env:"PUBLISH_CONCURRENCY" envDefault:"4"`
	PublishMaxAttempts int           `env:"PUBLISH_MAX_ATTEMPTS" envDefault:"3"`
	DispatchTimeout    time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"30s"`

	RequestRateLimit  int           `env:"REQUEST_RATE_LIMIT" envDefault:"120"`
	RequestRateWindow time.Duration `env:"REQUEST_RATE_WINDOW" envDefault:"1m"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, job worker, and publish scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	_ = config.LoadEnv()

	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return fmt.Errorf("failed to load logger config: %w", err)
	}
	log := logger.NewFromConfig(logCfg)

	var appCfg appConfig
	if err := config.Load(&appCfg); err != nil {
		return fmt.Errorf("failed to load app config: %w", err)
	}

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return fmt.Errorf("failed to load postgres config: %w", err)
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	jobStore := postgres.NewJobStore(pool)
	contentStore := postgres.NewContentStore(pool)
	logStore := postgres.NewPublogStore(pool)
	accounts := postgres.NewAccountSource(pool)

	var configSource autopilot.Source = postgres.NewAutopilotSource(pool)
	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	healthchecks := []func(context.Context) error{pg.Healthcheck(pool)}

	if appCfg.RedisEnabled {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return fmt.Errorf("failed to load redis config: %w", err)
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = client.Close() }()

		configSource, err = autopilot.NewCachedSource(configSource, client)
		if err != nil {
			return fmt.Errorf("failed to build cached autopilot source: %w", err)
		}
		limiterStore, err = ratelimit.NewRedisStore(client, "postflow:ratelimit")
		if err != nil {
			return fmt.Errorf("failed to build redis rate limit store: %w", err)
		}
		healthchecks = append(healthchecks, redis.Healthcheck(client))
	}

	registry, err := buildRegistry(appCfg.PlatformsFile)
	if err != nil {
		return err
	}

	queue, err := jobs.NewQueue(jobStore,
		jobs.WithOrgJobLimit(appCfg.OrgJobLimit),
		jobs.WithQueueLogger(log))
	if err != nil {
		return fmt.Errorf("failed to build job queue: %w", err)
	}
	if err := queue.RegisterType(content.PublishJobType, content.ValidatePublishJobPayload); err != nil {
		return fmt.Errorf("failed to register job types: %w", err)
	}

	sched, err := scheduler.New(contentStore, logStore, configSource, accounts, registry,
		scheduler.WithMaxAttempts(appCfg.PublishMaxAttempts),
		scheduler.WithConcurrency(appCfg.PublishConcurrency),
		scheduler.WithDispatchTimeout(appCfg.DispatchTimeout),
		scheduler.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}

	manager, err := content.NewManager(contentStore, configSource, accounts, queue,
		content.WithDispatcher(sched),
		content.WithManagerLogger(log))
	if err != nil {
		return fmt.Errorf("failed to build content manager: %w", err)
	}

	worker, err := jobs.NewWorker(jobStore,
		jobs.WithPullInterval(appCfg.WorkerInterval),
		jobs.WithTaskTimeout(appCfg.JobTimeout),
		jobs.WithMaxConcurrent(appCfg.WorkerConcurrency),
		jobs.WithWorkerLogger(log))
	if err != nil {
		return fmt.Errorf("failed to build job worker: %w", err)
	}
	if err := worker.RegisterHandler(scheduler.NewPublishJobHandler(sched, contentStore)); err != nil {
		return fmt.Errorf("failed to register job handlers: %w", err)
	}

	limiter, err := ratelimit.NewSlidingWindow(limiterStore, appCfg.RequestRateLimit, appCfg.RequestRateWindow)
	if err != nil {
		return fmt.Errorf("failed to build request rate limiter: %w", err)
	}

	api, err := httpapi.NewServer(queue, manager, logStore,
		httpapi.WithRequestLimiter(limiter),
		httpapi.WithServerLogger(log))
	if err != nil {
		return fmt.Errorf("failed to build API server: %w", err)
	}

	srv := httpserver.New(
		httpserver.WithAddr(appCfg.HTTPAddr),
		httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/healthz", httpserver.HealthCheckHandler(gctx, log, healthchecks...))
	mux.Handle("/", api.Router())

	g.Go(func() error {
		return srv.Run(gctx, mux)
	})

	g.Go(worker.Run(gctx))

	g.Go(func() error {
		c := cron.New()
		_, err := c.AddFunc(appCfg.PublishCron, func() {
			if err := sched.Tick(gctx); err != nil {
				log.ErrorContext(gctx, "publish tick failed", logger.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid publish cron expression %q: %w", appCfg.PublishCron, err)
		}
		c.Start()
		<-gctx.Done()
		<-c.Stop().Done()
		return gctx.Err()
	})

	log.InfoContext(ctx, "postflowd started",
		"addr", appCfg.HTTPAddr,
		"publish_cron", appCfg.PublishCron)

	return g.Wait()
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_ = config.LoadEnv()

		var logCfg logger.Config
		if err := config.Load(&logCfg); err != nil {
			return fmt.Errorf("failed to load logger config: %w", err)
		}
		log := logger.NewFromConfig(logCfg)

		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return fmt.Errorf("failed to load postgres config: %w", err)
		}

		pool, err := pg.Connect(cmd.Context(), pgCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		return pg.Migrate(cmd.Context(), pool, pgCfg, log)
	},
}
