package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/replenish/internal/messaging"
	"github.com/odyssey-erp/replenish/internal/observability"
	"github.com/odyssey-erp/replenish/internal/platform/cache"
	"github.com/odyssey-erp/replenish/internal/platform/db"
	"github.com/odyssey-erp/replenish/internal/replenishment"
	"github.com/odyssey-erp/replenish/internal/shared"
)

// Runtime holds the long lived collaborators shared by the API and worker.
type Runtime struct {
	Service      *replenishment.Service
	Metrics      *observability.Metrics
	Pool         *pgxpool.Pool
	Redis        *redis.Client
	Idempotency  *shared.IdempotencyStore
	HealthChecks map[string]HealthCheck

	closers []func()
}

// Bootstrap connects the configured backends and builds the replenishment
// service on top of them.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Metrics:      observability.NewMetrics(),
		HealthChecks: map[string]HealthCheck{},
	}
	catalog := replenishment.DemoCatalog()
	if !cfg.SeedDemo {
		catalog = replenishment.Catalog{}
	}

	var repo replenishment.RepositoryPort
	var audit replenishment.AuditPort
	switch cfg.StoreBackend {
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)
		pgRepo := replenishment.NewRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		if err := pgRepo.Seed(ctx, catalog); err != nil {
			rt.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		repo = pgRepo
		audit = shared.NewAuditLogger(pool)
		rt.HealthChecks["postgres"] = func(r *http.Request) error { return pool.Ping(r.Context()) }
	default:
		repo = replenishment.NewMemoryRepository(catalog)
	}

	var counter replenishment.Counter = replenishment.NewMemoryCounter(catalog.Counters())
	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Redis = client
		rt.closers = append(rt.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
		rt.Idempotency = shared.NewIdempotencyStore(client, cfg.IdempotencyTTL)
		rt.HealthChecks["redis"] = func(r *http.Request) error { return client.Ping(r.Context()).Err() }
		if cfg.IDCounter == "redis" {
			redisCounter := replenishment.NewRedisCounter(client, "")
			if err := redisCounter.Init(ctx, catalog.Counters()); err != nil {
				rt.Close()
				return nil, err
			}
			counter = redisCounter
		}
	}

	serviceCfg := replenishment.ServiceConfig{
		IDs:     replenishment.NewSequenceGenerator(counter, nil),
		Metrics: rt.Metrics,
		Audit:   audit,
		Logger:  logger,
	}
	if cfg.KafkaEnabled() {
		publisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, cfg.KafkaReminderTopic)
		rt.closers = append(rt.closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka close", slog.Any("error", err))
			}
		})
		serviceCfg.Events = publisher
	}
	rt.Service = replenishment.NewService(repo, serviceCfg)
	return rt, nil
}

// Close releases backends in reverse order of creation.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
