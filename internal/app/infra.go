package app

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/config"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/infrastructure/persistence/memory"
	"github.com/campus-hub/study-match/internal/infrastructure/persistence/postgres"
	rediscache "github.com/campus-hub/study-match/internal/infrastructure/persistence/redis"
	"github.com/campus-hub/study-match/pkg/logger"
)

// Infra holds the store and cache connections of a binary.
type Infra struct {
	Repos Repositories

	// DB is nil when the in-memory store is in use.
	DB *postgres.Connection

	// Cache and Leaderboard are nil when Redis is disabled or unreachable.
	Cache       *rediscache.Cache
	Leaderboard *rediscache.LeaderboardCache

	guarded reputation.LeaderboardCache
	log     *logger.Logger
}

// Open connects the store selected by cfg and, if enabled, the leaderboard cache.
// An unreachable Redis is logged and skipped; the store serves the leaderboard.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infra, error) {
	log = log.With(logger.Component("bootstrap"))
	infra := &Infra{log: log}

	if cfg.UseMemoryStore() {
		log.Warn("DATABASE_URL is empty, using the in-memory store")
		infra.Repos = MemoryRepositories(memory.New())
	} else {
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Database.URL
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
		pgCfg.MinConns = int32(cfg.Database.MinConns)
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

		log.Info("connecting to database...")
		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		infra.DB = conn

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}
		infra.Repos = PostgresRepositories(postgres.NewStore(conn))
	}

	if cfg.Redis.Disabled || !cfg.Features.IsEnabled(config.FeatureLeaderboardCache, nil) {
		log.Info("leaderboard cache disabled")
		return infra, nil
	}

	redisCfg := rediscache.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.KeyPrefix = cfg.Redis.KeyPrefix
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	cache, err := rediscache.NewCache(ctx, redisCfg)
	if err != nil {
		log.Warn("failed to connect to Redis, leaderboard served from the store", logger.Err(err))
		return infra, nil
	}
	infra.Cache = cache
	infra.Leaderboard = rediscache.NewLeaderboardCache(cache, log)
	infra.guarded = GuardLeaderboard(infra.Leaderboard, newLeaderboardBreaker(log))
	log.Info("Redis connection established", logger.String("addr", redisCfg.Addr()))
	return infra, nil
}

// LeaderboardCache returns the breaker-guarded cache, or nil when disabled.
func (i *Infra) LeaderboardCache() reputation.LeaderboardCache {
	if i.guarded == nil {
		return nil
	}
	return i.guarded
}

// Close releases the connections in reverse order of opening.
func (i *Infra) Close() {
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			i.log.Warn("closing Redis", logger.Err(err))
		}
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
