package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/xjanova/postxagent/pkg/automation"
	"github.com/xjanova/postxagent/pkg/browser/remote"
	"github.com/xjanova/postxagent/pkg/eventbus"
	"github.com/xjanova/postxagent/pkg/healing"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
	"github.com/xjanova/postxagent/pkg/selector"
	"github.com/xjanova/postxagent/pkg/tasks"
	"github.com/xjanova/postxagent/pkg/teaching"
	"github.com/xjanova/postxagent/pkg/workflow"
)

// staleSessionAge is how long an unfinished teaching session survives before
// the prune job discards it.
const staleSessionAge = 24 * time.Hour

// Worker consumes posting tasks, opens a browser session per task and runs
// the matching active workflow. It also hosts the periodic maintenance jobs.
type Worker struct {
	id            string
	logger        *slog.Logger
	queue         *tasks.Queue
	sessions      *remote.Sessions
	executor      *workflow.Executor
	teaching      *teaching.Service
	pruneSchedule string
	cron          *cron.Cron
}

func NewWorker(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	queue *tasks.Queue,
	browserURL string,
	pruneSchedule string,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Worker {
	resolver := selector.NewResolver(selector.NewMatcherRegistry(), selector.DefaultConfidenceFloor, logger)
	repo := workflow.NewRepository(store)

	cfg := workflow.DefaultConfig()
	cfg.WorkerID = id

	executor := workflow.NewExecutor(
		automation.NewExecutor(resolver, logger),
		repo,
		eventBus,
		healing.NewRecoverer(resolver, logger),
		tracer,
		logger,
		cfg,
	)

	return &Worker{
		id:            id,
		logger:        logger.With("module", "postx-worker"),
		queue:         queue,
		sessions:      remote.NewSessions(browserURL, logger),
		executor:      executor,
		teaching:      teaching.NewService(store, repo, eventBus, logger),
		pruneSchedule: pruneSchedule,
		cron:          cron.New(),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "worker_id", w.id)

	_, err := w.cron.AddFunc(w.pruneSchedule, func() {
		pruned, err := w.teaching.PruneStale(ctx, staleSessionAge)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to prune stale sessions", "error", err)

			return
		}

		if pruned > 0 {
			w.logger.InfoContext(ctx, "Pruned stale teaching sessions", "count", pruned)
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	defer w.cron.Stop()

	w.queue.Start(ctx, w.handleTask)

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return w.queue.Stop(ctx)
}

// handleTask runs one posting task end to end. A completed or failed run is
// a definitive outcome and acknowledges the task; only infrastructure
// failures (sidecar down, store unreachable) surface as errors for
// redelivery.
func (w *Worker) handleTask(ctx context.Context, task tasks.PostTask) error {
	logger := w.logger.With(
		"task_id", task.ID,
		"platform", task.Platform,
		"task_type", task.TaskType,
	)
	logger.InfoContext(ctx, "Processing posting task")

	page, closeSession, err := w.sessions.Open(ctx, task.Platform)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeSession(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close browser session", "error", err)
		}
	}()

	vars := credentialsFor(task.Platform).Merge(task.Variables)

	result, err := w.executor.RunActive(ctx, page, task.Platform, task.TaskType, vars)
	if err != nil {
		if persistence.IsNoActiveWorkflow(err) {
			// Nothing will ever execute this task; drop it instead of
			// redelivering forever.
			logger.WarnContext(ctx, "No active workflow for task, dropping", "error", err)

			return nil
		}

		return err
	}

	logger.InfoContext(ctx, "Posting task finished",
		"execution_id", result.ID,
		"status", result.Status,
		"duration_ms", result.Duration().Milliseconds())

	return nil
}

// credentialsFor loads the platform's credential variables from the
// environment, e.g. POSTX_FACEBOOK_USERNAME / POSTX_FACEBOOK_PASSWORD.
// Values are handed to the run as variables and are never persisted.
func credentialsFor(platform string) models.Variables {
	key := strings.ToUpper(strings.ReplaceAll(platform, "-", "_"))
	vars := models.Variables{}

	if username := os.Getenv("POSTX_" + key + "_USERNAME"); username != "" {
		vars["credentials.username"] = models.StringValue(username)
	}

	if password := os.Getenv("POSTX_" + key + "_PASSWORD"); password != "" {
		vars["credentials.password"] = models.StringValue(password)
	}

	return vars
}
