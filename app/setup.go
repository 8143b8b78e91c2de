package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahilchouksey/edu-materials-api/api"
	"github.com/sahilchouksey/edu-materials-api/config"
	"github.com/sahilchouksey/edu-materials-api/database"
	"github.com/sahilchouksey/edu-materials-api/router"
	"github.com/sahilchouksey/edu-materials-api/services"
	"github.com/sahilchouksey/edu-materials-api/services/cron"
	"github.com/sahilchouksey/edu-materials-api/services/notify"
	"github.com/sahilchouksey/edu-materials-api/services/storage"
	"github.com/sahilchouksey/edu-materials-api/utils/auth"
	"github.com/sahilchouksey/edu-materials-api/utils/cache"
	"github.com/sahilchouksey/edu-materials-api/utils/logger"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"go.uber.org/zap"
)

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	log, err := logger.New(env.GoEnv)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Initialize GORM database connection
	store, err := database.StartGORM(env, log)
	if err != nil {
		log.Error("check whether Postgres is running (make docker-up or make db-up)", zap.Error(err))
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Error("failed to run migrations", zap.Error(err))
		return err
	}
	db := store.DB()

	// Redis is optional: without it brute force protection and
	// cross-instance notification dedupe are off
	redisCache, err := cache.NewRedisCache(env.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, brute force protection disabled", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	mailer := services.NewEmailService(env, log)
	if !mailer.IsConfigured() {
		log.Warn("SMTP is not configured, emails will be recorded as failed")
	}

	var avatars storage.AvatarStore
	if env.SpacesConfigured() {
		spaces, err := storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: env.SpacesAccessKey,
			SecretKey: env.SpacesSecretKey,
			Bucket:    env.SpacesBucket,
			Region:    env.SpacesRegion,
			Endpoint:  env.SpacesEndpoint,
			CDNURL:    env.SpacesCDNURL,
		})
		if err != nil {
			log.Warn("avatar storage disabled", zap.Error(err))
		} else {
			avatars = spaces
		}
	}

	// Notification worker pool
	var dispatchOpts []notify.Option
	if redisCache != nil {
		dispatchOpts = append(dispatchOpts, notify.WithDeduper(redisCache))
	}
	dispatcher := notify.NewDispatcher(db, mailer, services.NewSubscriptionService(db), log.Named("notify"), notify.Config{
		Workers:  env.NotifyWorkers,
		Cooldown: env.NotifyCooldown,
		AppURL:   env.AppURL,
	}, dispatchOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Cron jobs (enabled unless CRON_ENABLED=false)
	if env.CronEnabled {
		cronManager := cron.NewCronManager(db, log.Named("cron"), dispatcher, mailer, cron.Config{
			InactiveUserDays: env.InactiveUserDays,
		})
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warn("failed to start cron jobs", zap.Error(err))
		} else {
			defer cronManager.Stop()
		}
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWTSecret,
		Expiry:        env.JWTAccessTTL,
		RefreshExpiry: env.JWTRefreshTTL,
		Issuer:        env.JWTIssuer,
	})

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", env.Port), log)
	app := server.GetEngine()

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.AllowedOrigins,
		RateLimitRequests: env.RateLimitRequests,
		RateLimitWindow:   time.Minute,
	})

	router.SetupRoutes(app, router.Deps{
		DB:         db,
		Log:        log,
		JWT:        jwtManager,
		Health:     store,
		Cache:      redisCache,
		Dispatcher: dispatcher,
		Mailer:     mailer,
		Avatars:    avatars,
	})

	// Shut down on SIGINT/SIGTERM so deferred cleanup runs
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	return server.Run()
}
