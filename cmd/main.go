package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rryowa/krychek/internal/api"
	"github.com/rryowa/krychek/internal/controller"
	"github.com/rryowa/krychek/internal/metrics"
	"github.com/rryowa/krychek/internal/migrations"
	"github.com/rryowa/krychek/internal/service"
	"github.com/rryowa/krychek/internal/spotify"
	"github.com/rryowa/krychek/internal/storage"
	"github.com/rryowa/krychek/internal/storage/memory"
	"github.com/rryowa/krychek/internal/storage/postgres"
	"github.com/rryowa/krychek/internal/storage/redis"
	"github.com/rryowa/krychek/internal/util"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	serverCfg := util.NewServerConfig()
	sessionCfg := util.NewSessionConfig()
	spotifyCfg := util.NewSpotifyConfig()
	refreshCfg := util.NewRefreshConfig()
	rateCfg := util.NewRateLimiterConfig()

	for _, cfg := range []any{serverCfg, sessionCfg, spotifyCfg, refreshCfg, rateCfg} {
		if err := util.ValidateConfig(cfg); err != nil {
			logger.Fatal(zap.Error(err))
		}
	}

	var cleanupFuncs []func()

	var (
		sessions  storage.SessionRepository
		admission storage.AdmissionStore
		users     storage.UserRepository
	)

	if redisCfg := util.NewRedisConfig(); redisCfg != nil {
		redisClient, redisCleanup, err := util.NewRedisClient(ctx, logger, redisCfg)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		cleanupFuncs = append(cleanupFuncs, redisCleanup)
		sessions = redis.NewSessionRepository(redisClient)
		admission = redis.NewAdmissionStore(redisClient)
	} else {
		logger.Warn("REDIS_ADDR is not set, sessions and rate limits are kept in memory")
		sessions = memory.NewSessionRepository(logger)
		admission = memory.NewAdmissionStore(rateCfg.SweepInterval, time.Now())
	}

	if dbCfg := util.NewDBConfig(); dbCfg != nil {
		db, dbCleanup, err := util.NewDBConnection(logger, dbCfg)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		if err := migrations.RunMigrations(db, logger); err != nil {
			logger.Fatal(zap.Error(err))
		}
		cleanupFuncs = append(cleanupFuncs, dbCleanup)
		users = postgres.NewStorage(db)
	} else {
		logger.Warn("DATABASE_URL is not set, the user directory is kept in memory")
		users = memory.NewUserRepository()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	oauthClient := spotify.NewOAuthClient(spotifyCfg, logger)
	spotifyClient := spotify.NewClient(spotifyCfg, appMetrics, logger)

	tokenManager := service.NewTokenManager(oauthClient, refreshCfg, appMetrics, logger)
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	sessionService := service.NewSessionService(
		sessionCfg,
		sessions,
		users,
		tokenManager,
		oauthClient,
		spotifyClient,
		webhookService,
		logger,
	)
	admissionController := service.NewAdmissionController(admission, rateCfg, appMetrics, logger)

	ctrl := controller.NewController(logger, sessionService, spotifyClient, sessionCfg)

	apiServer := api.NewAPI(ctrl, admissionController, registry, logger, serverCfg, cleanupFuncs)
	apiServer.Run(ctx)
}
