package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/lifeline-ict/notify-engine/internal/config"
	"github.com/lifeline-ict/notify-engine/internal/domain"
	"github.com/lifeline-ict/notify-engine/internal/handler"
	"github.com/lifeline-ict/notify-engine/internal/infra/postgresql"
	"github.com/lifeline-ict/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/lifeline-ict/notify-engine/internal/infra/redis"
	"github.com/lifeline-ict/notify-engine/internal/observability"
	"github.com/lifeline-ict/notify-engine/internal/provider"
	"github.com/lifeline-ict/notify-engine/internal/repository"
	"github.com/lifeline-ict/notify-engine/internal/service"
	"github.com/lifeline-ict/notify-engine/internal/templates"
	"github.com/lifeline-ict/notify-engine/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.API.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	if cfg.RedisEnabled() {
		rdb, err = infraredis.NewRedis(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
	}

	renderer, err := templates.NewRenderer()
	if err != nil {
		logger.Fatal("template renderer initialization failed", zap.Error(err))
	}

	emailChannel, err := provider.NewSMTPChannel(provider.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		UseTLS:    cfg.SMTP.UseTLS,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
		Timeout:   cfg.SendTimeout(),
	}, renderer)
	if err != nil {
		logger.Fatal("email channel initialization failed", zap.Error(err))
	}

	smsChannel := provider.NewSMSChannel(provider.SMSConfig{
		AccountSID:  cfg.SMS.AccountSID,
		AuthToken:   cfg.SMS.AuthToken,
		FromNumber:  cfg.SMS.FromNumber,
		APIBaseURL:  cfg.SMS.APIBaseURL,
		CountryCode: cfg.SMS.CountryCode,
		Timeout:     cfg.SendTimeout(),
	}, renderer)
	if !smsChannel.Available() {
		logger.Warn("sms channel disabled, sms sends will be recorded as failed")
	}

	records := repository.NewGormNotificationRepo(db)

	notificationService, err := service.NewNotificationService(records, map[domain.Channel]provider.Channel{
		domain.ChannelEmail: emailChannel,
		domain.ChannelSMS:   smsChannel,
	}, logger)
	if err != nil {
		logger.Fatal("notification service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	notificationService.SetMetrics(metrics)

	if rdb != nil {
		limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.Redis.RateLimitPerSec)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
		notificationService.SetRateLimiter(limiter)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		logger.Info("notify-engine api started", zap.Int("port", cfg.API.Port))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("api server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
