package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/subineru/redmine-stakeholder/internal/config"
	"github.com/subineru/redmine-stakeholder/internal/db"
	"github.com/subineru/redmine-stakeholder/internal/events"
	apphttp "github.com/subineru/redmine-stakeholder/internal/http"
	"github.com/subineru/redmine-stakeholder/internal/http/handlers"
	"github.com/subineru/redmine-stakeholder/internal/ratelimit"
	"github.com/subineru/redmine-stakeholder/internal/repositories"
	"github.com/subineru/redmine-stakeholder/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	projectRepo := repositories.NewProjectRepo(pool)
	stakeholderRepo := repositories.NewStakeholderRepo(pool)
	historyRepo := repositories.NewHistoryRepo(pool, cfg.HistoryPageSize)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)

	// In-process consumer: mirrors lifecycle events into the logs so an
	// operator can tail what downstream subscribers see.
	subscriber := events.NewRedisSubscriber(rdb, log)
	if err := subscriber.Subscribe(ctx, events.StreamStakeholders, func(e events.Event) {
		log.Info("stakeholder event",
			zap.String("type", e.Type),
			zap.Any("payload", e.Payload))
	}); err != nil {
		log.Warn("event feed subscription failed", zap.Error(err))
	}

	// Services
	inlineLimiter := ratelimit.NewRedisLimiter(rdb, cfg.InlineUpdateLimit, cfg.InlineUpdateWindow, log)
	stakeholderService := services.NewStakeholderService(
		stakeholderRepo, historyRepo, projectRepo, inlineLimiter, publisher, log)

	// Handlers
	projectHandler := handlers.NewProjectHandler(projectRepo, log)
	stakeholderHandler := handlers.NewStakeholderHandler(stakeholderService, log)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, projectHandler, stakeholderHandler)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
