package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/subineru/redmine-stakeholder/internal/config"
	"github.com/subineru/redmine-stakeholder/internal/http/handlers"
	"github.com/subineru/redmine-stakeholder/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	projectHandler *handlers.ProjectHandler,
	stakeholderHandler *handlers.StakeholderHandler,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.GlobalRateLimit, cfg.GlobalRateWindow))
	api.Use(middleware.AuthMiddleware(cfg, log))

	// Project administration (platform admins only). The admin gate goes on
	// each route: Group("") would register it as Use middleware on the whole
	// /api/v1 prefix and lock members out of the stakeholder routes.
	adminOnly := middleware.AdminMiddleware(cfg)
	api.Post("/projects", adminOnly, projectHandler.Create)
	api.Post("/projects/:projectID/members", adminOnly, projectHandler.AddMember)

	// Stakeholders (project-scoped; per-endpoint authorization happens in
	// the service against project membership)
	api.Get("/projects/:projectID/stakeholders", stakeholderHandler.List)
	api.Get("/projects/:projectID/stakeholders/analytics", stakeholderHandler.Analytics)
	api.Post("/projects/:projectID/stakeholders", stakeholderHandler.Create)
	api.Get("/projects/:projectID/stakeholders/:id", stakeholderHandler.Get)
	api.Put("/projects/:projectID/stakeholders/:id", stakeholderHandler.Update)
	api.Patch("/projects/:projectID/stakeholders/:id/inline", stakeholderHandler.InlineUpdate)
	api.Delete("/projects/:projectID/stakeholders/:id", stakeholderHandler.Destroy)
	api.Get("/projects/:projectID/stakeholders/:id/history", stakeholderHandler.History)
}
