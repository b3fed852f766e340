package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/linkorbit/internal/adapter/httpserver"
	"github.com/pscheid92/linkorbit/internal/adapter/memory"
	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
	"github.com/pscheid92/linkorbit/internal/adapter/postgres"
	"github.com/pscheid92/linkorbit/internal/adapter/redis"
	"github.com/pscheid92/linkorbit/internal/app"
	"github.com/pscheid92/linkorbit/internal/broadcast"
	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/pscheid92/linkorbit/internal/platform/config"
	"github.com/pscheid92/linkorbit/internal/platform/logging"
	"github.com/pscheid92/linkorbit/internal/platform/version"
	"github.com/pscheid92/linkorbit/internal/rotation"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

type appMetrics struct {
	rotation *metrics.RotationMetrics
	action   *metrics.ActionMetrics
	stream   *metrics.StreamMetrics
	outbox   *metrics.OutboxMetrics
	redis    *metrics.RedisMetrics
	database *metrics.DatabaseMetrics
}

func setupMetrics(reg prometheus.Registerer) appMetrics {
	return appMetrics{
		rotation: metrics.NewRotationMetrics(reg),
		action:   metrics.NewActionMetrics(reg),
		stream:   metrics.NewStreamMetrics(reg),
		outbox:   metrics.NewOutboxMetrics(reg),
		redis:    metrics.NewRedisMetrics(reg),
		database: metrics.NewDatabaseMetrics(reg),
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(ctx context.Context, cfg *config.Config, dbMetrics *metrics.DatabaseMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, dbMetrics)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

// setupRedis returns nil when no REDIS_URL is configured.
func setupRedis(ctx context.Context, cfg *config.Config, redisMetrics *metrics.RedisMetrics) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, redisMetrics)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// resumeRotationIDs continues numbering after the persisted log so rotation
// IDs stay unique across restarts.
func resumeRotationIDs(ctx context.Context, state *rotation.State, rotations *postgres.RotationRepo) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	last, err := rotations.LastRotationID(ctx)
	if err != nil {
		slog.Error("Failed to read last rotation id", "error", err)
		os.Exit(1)
	}
	state.ResumeAfter(last)
	slog.Info("Resuming rotation ids", "last", last)
}

func policyFromConfig(cfg *config.Config) app.Policy {
	return app.Policy{
		RotationDuration: cfg.RotationDuration,
		MaxRemaining:     cfg.MaxRemaining,
		RevealInterval:   cfg.RevealInterval,
		SatelliteCount:   cfg.SatelliteCount,
		UpvoteBonus:      cfg.UpvoteBonus,
		DownvotePenalty:  cfg.DownvotePenalty,
		ReactCooldown:    cfg.ReactCooldown,
		SkipThreshold:    cfg.SkipThreshold,
		SkipScope:        app.SkipScope(cfg.SkipScope),
		Weights: app.PoolWeights{
			Fresh:    cfg.PoolWeightFresh,
			Rerun:    cfg.PoolWeightRerun,
			Wildcard: cfg.PoolWeightWildcard,
		},
		FatigueLookback:      cfg.FatigueLookback,
		NominationScoreBoost: cfg.NominationScoreBoost,
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	m := setupMetrics(registry)

	pool := setupDB(ctx, cfg, m.database)
	defer pool.Close()

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}

	var cooldown domain.CooldownStore = memory.NewCooldownStore(clock)
	if redisClient := setupRedis(ctx, cfg, m.redis); redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		cooldown = redis.NewCooldownStore(redisClient)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		slog.Info("REDIS_URL not set, using in-memory reaction cooldowns")
	}

	policy := policyFromConfig(cfg)
	state := rotation.NewState(cfg.RecentActionsSize)
	hub := broadcast.NewHub(cfg.StreamQueueSize, cfg.MaxViewers, state.SetViewerCount, m.stream)
	outbox := app.NewOutbox(postgres.NewSink(pool), cfg.OutboxSize, m.outbox)

	rotations := postgres.NewRotationRepo(pool)
	resumeRotationIDs(ctx, state, rotations)

	engine := app.NewSelectionEngine(postgres.NewCandidateRepo(pool), policy, nil, m.rotation)
	if err := engine.LoadHistory(ctx, rotations); err != nil {
		slog.Warn("Starting with an empty fatigue window", "error", err)
	}

	scheduler := app.NewScheduler(state, engine, hub, outbox, clock, cfg.TickInterval, m.rotation)
	actions := app.NewActionProcessor(state, cooldown, hub, outbox, policy, clock, m.action)

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Actions:      actions,
		State:        state,
		Hub:          hub,
		Scheduler:    scheduler,
		Outbox:       outbox,
		Metrics:      metrics.Handler(registry),
		HealthChecks: healthChecks,
		Clock:        clock,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return outbox.Run(gctx) })
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		// Closing the hub ends open streams so Shutdown does not wait on them.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
