package main

import (
	"time"

	"spamguard/internal/handlers"
	"spamguard/internal/metrics"
	"spamguard/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewApp wires the handlers into a Fiber app. The API routes are served both
// at the root and under /api.
func NewApp(accounts *services.AccountService, classify *services.ClassifyService, resource *services.ClassificationResource, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "spamguard",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	authHandler := handlers.NewAuthHandler(accounts, log)
	classifyHandler := handlers.NewClassifyHandler(classify, log)
	for _, router := range []fiber.Router{app, app.Group("/api")} {
		authHandler.RegisterRoutes(router)
		classifyHandler.RegisterRoutes(router)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"model":  resource.ModelName,
			"device": resource.Device.String(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return app
}
