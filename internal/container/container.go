package container

import (
	"context"
	"fmt"
	"time"

	"votecore/internal/config"
	"votecore/internal/middleware"
	"votecore/internal/repository"
	"votecore/internal/service"
	"votecore/internal/service/auth"
	"votecore/pkg/database"
	"votecore/pkg/logger"
	"votecore/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *database.PostgresDB
	RedisClient *redis.Client

	Repository  repository.PollRepository
	ResultCache service.ResultCache
	TaskQueue   service.TaskQueue

	Auth        service.AuthService
	Aggregator  *service.Aggregator
	Results     *service.ResultService
	Voting      *service.VotingService
	Refresher   *service.Refresher
	RateLimiter *middleware.RateLimiter
}

// New creates a new dependency injection container. Postgres is required
// when DATABASE_URL is set; Redis is optional and falls back to in-process
// adapters when it is missing or unreachable.
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		c.Repository = repository.NewPostgresPollRepository(db)
		logger.Info("Using Postgres poll repository")
	} else {
		c.Repository = repository.NewMemoryPollRepository()
		logger.Warn("DATABASE_URL not configured, using in-memory poll repository")
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding with in-process cache")
		} else {
			c.RedisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding with in-process cache")
	}

	var locker service.RefreshLocker
	if c.RedisClient != nil {
		c.ResultCache = service.NewRedisResultCache(c.RedisClient, logger.Logger)
		c.TaskQueue = service.NewRedisTaskQueue(c.RedisClient, logger)
		locker = redis.NewLocker(c.RedisClient)
	} else {
		c.ResultCache = service.NewMemoryResultCache(time.Minute)
		c.TaskQueue = service.NewLocalTaskQueue(cfg.TaskQueueSize, logger)
	}

	c.Auth = auth.NewService(cfg.JWTSecret, logger)
	c.Aggregator = service.NewAggregator(c.Repository)
	c.Results = service.NewResultService(c.Repository, c.Aggregator, c.ResultCache, cfg.ResultCacheTTL, logger)
	c.Voting = service.NewVotingService(c.Repository, c.Results, c.TaskQueue, logger)
	c.Refresher = service.NewRefresher(c.Repository, c.Aggregator, c.ResultCache, locker, service.RefresherConfig{
		TTL:       cfg.ResultCacheTTL,
		Interval:  cfg.RefreshInterval,
		Reconcile: cfg.ReconcileOnRefresh,
	}, logger)

	if cfg.VoteRateLimit > 0 {
		c.RateLimiter = middleware.NewRateLimiter(cfg.VoteRateLimit, cfg.VoteRateBurst)
	}

	return c, nil
}

// Start launches the background refresher and the refresh queue consumer
func (c *Container) Start(ctx context.Context) error {
	if err := c.TaskQueue.Start(ctx, service.RefreshHandler(c.Refresher)); err != nil {
		return fmt.Errorf("failed to start refresh queue: %w", err)
	}
	if err := c.Refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start refresher: %w", err)
	}
	return nil
}

// Close stops background work and releases connections
func (c *Container) Close(ctx context.Context) {
	if err := c.Refresher.Stop(ctx); err != nil {
		c.Logger.WithError(err).Error("Failed to stop refresher")
	}
	if err := c.TaskQueue.Stop(ctx); err != nil {
		c.Logger.WithError(err).Error("Failed to stop refresh queue")
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close Redis client")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}

// Health pings every configured backend and reports per-component status
func (c *Container) Health(ctx context.Context) (map[string]string, bool) {
	status := map[string]string{}
	healthy := true

	if c.HasDatabase() {
		if err := c.DB.Health(ctx); err != nil {
			status["database"] = "unhealthy"
			healthy = false
		} else {
			status["database"] = "healthy"
		}
	} else {
		status["database"] = "memory"
	}

	if c.HasRedis() {
		if err := c.RedisClient.Health(ctx); err != nil {
			status["redis"] = "unhealthy"
			healthy = false
		} else {
			status["redis"] = "healthy"
		}
	} else {
		status["redis"] = "disabled"
	}

	return status, healthy
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// HasDatabase returns true if the Postgres repository is in use
func (c *Container) HasDatabase() bool {
	return c.DB != nil
}
