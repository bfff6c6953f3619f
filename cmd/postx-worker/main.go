package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"

	"github.com/xjanova/postxagent/pkg/cmd"
	"github.com/xjanova/postxagent/pkg/log"
	"github.com/xjanova/postxagent/pkg/otelhelper"
	"github.com/xjanova/postxagent/pkg/tasks"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "postx-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume posting tasks and execute workflows against browser sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file path, postgres:// or redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "queue-url",
				Usage:    "Redis URL for the posting task queue",
				Required: true,
				Sources:  cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:     "browser-url",
				Usage:    "Base URL of the browser automation sidecar",
				Required: true,
				Sources:  cli.EnvVars("BROWSER_URL"),
			},
			&cli.StringFlag{
				Name:    "prune-schedule",
				Usage:   "Cron schedule for pruning stale teaching sessions",
				Value:   "@hourly",
				Sources: cli.EnvVars("PRUNE_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("postx-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing PostX Worker")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "postx-worker", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			queue, err := tasks.NewQueue(ctx, command.String("queue-url"), "", "", workerID, logger)
			if err != nil {
				return err
			}

			var tracer trace.Tracer

			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "postx-worker")
				if err != nil {
					return err
				}
			}

			worker := NewWorker(
				workerID,
				persistence,
				eventBus,
				queue,
				command.String("browser-url"),
				command.String("prune-schedule"),
				tracer,
				logger,
			)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
