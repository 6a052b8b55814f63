package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-service/cmd/api/infrastructure"
	"student-service/internal/adapter/cache"
	"student-service/internal/adapter/db/postgres"
	ginhandler "student-service/internal/adapter/gin/handler"
	ginrouter "student-service/internal/adapter/gin/router"
	grpcadapter "student-service/internal/adapter/grpc"
	"student-service/internal/adapter/ratelimit"
	"student-service/internal/adapter/repository/cached"
	"student-service/internal/config"
	domain "student-service/internal/domain/student"
	"student-service/internal/usecase/student"
	redisclient "student-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	DB             *gorm.DB
	RedisClient    *redisclient.Client
	StudentUC      student.Usecase
	RateLimiter    *ratelimit.Limiter
	StudentHandler *ginhandler.StudentHandler
	HealthHandler  *ginhandler.HealthHandler
	GRPCHealth     *grpcadapter.HealthService
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	c := &Container{Config: cfg, Logger: l, DB: db}

	rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	c.RedisClient = rdb

	photos, err := infrastructure.NewPhotoStore(ctx, cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	// Repository, decorated with the cache when Redis is available
	var repo student.Repository = postgres.NewStudentRepoPG(db, l)
	if rdb != nil {
		studentCache := cache.NewRedisStudentCache(
			rdb.Client,
			time.Duration(cfg.Redis.CacheTTL)*time.Second,
			l,
		)
		repo = cached.NewStudentRepository(repo, studentCache, l)
	}

	c.StudentUC = student.New(repo, photos, l, student.Options{
		FilterMode:             domain.ParseFilterMode(cfg.Student.SearchFilterMode),
		RequirePastDateOfBirth: cfg.Student.RequirePastDateOfBirth,
		MaxPhotoBytes:          cfg.Storage.PhotoMaxBytes,
	})

	limiterConfig := ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}
	if rdb != nil {
		c.RateLimiter = ratelimit.New(rdb.Client, limiterConfig, l)
	} else {
		c.RateLimiter = ratelimit.New(nil, limiterConfig, l)
	}

	c.StudentHandler = ginhandler.NewStudentHandler(c.StudentUC, l, ginrouter.APIStudentPath)

	httpChecks := map[string]ginhandler.HealthCheck{"database": infrastructure.PingDatabase(db)}
	grpcChecks := map[string]grpcadapter.Check{"database": infrastructure.PingDatabase(db)}
	if rdb != nil {
		httpChecks["redis"] = rdb.HealthCheck
		grpcChecks["redis"] = rdb.HealthCheck
	}
	c.HealthHandler = ginhandler.NewHealthHandler(cfg.Logger.ServiceName, httpChecks)
	c.GRPCHealth = grpcadapter.NewHealthService(cfg.Logger.ServiceName, grpcChecks, l)

	return c, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close errors: %v", errs)
	}

	return nil
}
