// Package main provides the PostX API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/xjanova/postxagent/pkg/eventbus"
	"github.com/xjanova/postxagent/pkg/persistence"
	"github.com/xjanova/postxagent/pkg/tasks"
	"github.com/xjanova/postxagent/pkg/teaching"
	"github.com/xjanova/postxagent/pkg/web"
	"github.com/xjanova/postxagent/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	queue       *tasks.Queue
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	queue *tasks.Queue,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		queue:       queue,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflows := workflow.NewRepository(a.persistence)
	teachingService := teaching.NewService(a.persistence, workflows, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(workflows, teachingService, a.queue, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("PostX API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/import", handlers.ImportWorkflow)
	w.Get("/active/:platform/:taskType", handlers.GetActiveWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeactivateWorkflow)
	w.Get("/:id/export", handlers.ExportWorkflow)

	s := app.Group("/sessions")
	s.Get("/", handlers.GetSessions)
	s.Post("/", handlers.StartSession)
	s.Get("/:id", handlers.GetSession)
	s.Post("/:id/recording", handlers.BeginRecording)
	s.Post("/:id/pause", handlers.PauseSession)
	s.Post("/:id/steps", handlers.RecordStep)
	s.Post("/:id/review", handlers.ReviewSession)
	s.Post("/:id/complete", handlers.CompleteSession)
	s.Delete("/:id", handlers.CancelSession)

	app.Post("/tasks", handlers.EnqueueTask)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
