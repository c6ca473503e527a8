// Package app wires the lead search components from environment config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/api"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/engine"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/interfaces/youtube"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/monitoring"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/provider"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/results"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/store"
)

type App struct {
	Logger   *logrus.Logger
	DB       *gorm.DB
	Store    *store.TaskStore
	Provider provider.SearchProvider
	Engine   *engine.Engine
	Results  *results.Service
	Metrics  *monitoring.MetricsCollector

	redis *goredis.Client
}

// Build opens the database, builds the YouTube client (behind the Redis
// statistics cache when REDIS_URL is set) and assembles the engine.
// An unreachable Redis is logged and the cache skipped.
func Build(ctx context.Context, logger *logrus.Logger) (*App, error) {
	dbConfig, err := db.NewDBConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create database config: %w", err)
	}

	ytConfig, err := youtube.NewYouTubeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube config: %w", err)
	}
	ytConfig.Logger = logger

	cacheConfig, err := provider.NewCacheConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create cache config: %w", err)
	}

	return build(ctx, logger, dbConfig, ytConfig, cacheConfig)
}

func build(ctx context.Context, logger *logrus.Logger, dbConfig *db.DBConfig, ytConfig *youtube.YouTubeConfig, cacheConfig *provider.CacheConfig) (*App, error) {
	gormDB, err := db.SetupDatabase(logger, dbConfig)
	if err != nil {
		return nil, err
	}

	ytClient, err := youtube.NewYouTubeClient(ytConfig)
	if err != nil {
		db.Close(gormDB)
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}

	a := &App{
		Logger:   logger,
		DB:       gormDB,
		Store:    store.NewTaskStore(logger, gormDB),
		Provider: ytClient,
		Metrics:  monitoring.NewMetricsCollector(),
	}

	if cacheConfig.Enabled() {
		client, err := provider.NewRedisClient(ctx, cacheConfig.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Statistics cache unavailable, continuing without it")
		} else {
			a.redis = client
			a.Provider = provider.NewCachedProvider(ytClient, client, cacheConfig.TTL, logger)
			logger.WithField("ttl", cacheConfig.TTL.String()).Info("Statistics cache enabled")
		}
	}

	a.Engine, err = engine.New(engine.Config{
		Store:    a.Store,
		Provider: a.Provider,
		Metrics:  a.Metrics,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.Results = results.NewService(a.Store)

	return a, nil
}

// Router returns the HTTP API served by this app
func (a *App) Router() *gin.Engine {
	handler := api.NewHandler(a.Engine, a.Results, a.Store, a.Logger)
	return api.NewRouter(handler, a.Metrics, a.Logger)
}

// Close releases the database pool and the Redis client
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.Close(a.DB))
	}
	return errors.Join(errs...)
}
