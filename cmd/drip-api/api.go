// Package main provides the drip API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/driphq/drip/pkg/engine"
	"github.com/driphq/drip/pkg/persistence"
	"github.com/driphq/drip/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	engine   *engine.Engine
	persist  persistence.Persistence
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, eng *engine.Engine, persist persistence.Persistence) *API {
	return &API{
		logger:   logger,
		engine:   eng,
		persist:  persist,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.persist, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Drip API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	a.logger.InfoContext(ctx, "Starting API server", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
