package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xjanova/postxagent/pkg/automation"
	"github.com/xjanova/postxagent/pkg/browser"
	"github.com/xjanova/postxagent/pkg/eventbus"
	"github.com/xjanova/postxagent/pkg/events"
	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/otelhelper"
	"github.com/xjanova/postxagent/pkg/selector"
)

// Config carries the tunables of the execution engine.
type Config struct {
	// ConfidenceSmoothing is the weight kept from the previous confidence
	// score when folding in a run outcome.
	ConfidenceSmoothing float64

	// VisualConfidenceFloor is the minimum confidence a visual or smart
	// match must report to be accepted.
	VisualConfidenceFloor float64

	// WorkerID tags published events with the worker that ran the workflow.
	WorkerID string
}

func DefaultConfig() Config {
	return Config{
		ConfidenceSmoothing:   0.8,
		VisualConfidenceFloor: selector.DefaultConfidenceFloor,
	}
}

// Healer is the recovery hook consulted when a step's selectors all fail. It
// returns a replacement selector already confirmed to match on the live page.
type Healer interface {
	Recover(ctx context.Context, page browser.Page, step *models.Step) (*models.ElementSelector, error)
}

// Executor drives a full workflow run: ordered steps, cancellation at step
// boundaries, optional-step tolerance, self-healing and statistics feedback.
type Executor struct {
	steps  *automation.Executor
	repo   *Repository
	bus    eventbus.EventPublisher
	healer Healer
	tracer trace.Tracer
	logger *slog.Logger
	cfg    Config
}

func NewExecutor(
	steps *automation.Executor,
	repo *Repository,
	bus eventbus.EventPublisher,
	healer Healer,
	tracer trace.Tracer,
	logger *slog.Logger,
	cfg Config,
) *Executor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("workflow")
	}

	return &Executor{
		steps:  steps,
		repo:   repo,
		bus:    bus,
		healer: healer,
		tracer: tracer,
		logger: logger.With("module", "workflow_executor"),
		cfg:    cfg,
	}
}

// RunActive looks up the active workflow for the platform and task type and
// runs it.
func (e *Executor) RunActive(
	ctx context.Context,
	page browser.Page,
	platform, taskType string,
	vars models.Variables,
) (*models.ExecutionResult, error) {
	workflow, err := e.repo.FetchActive(ctx, platform, taskType)
	if err != nil {
		return nil, err
	}

	return e.Run(ctx, page, workflow, vars)
}

// Run executes every step of the workflow in Order. The run ends Completed
// when all non-optional steps succeed, Failed on the first non-optional step
// failure, or Cancelled when the context is done at a step boundary. The
// returned result is complete in all three cases; the error reflects
// infrastructure failures only, never a failed run.
func (e *Executor) Run(
	ctx context.Context,
	page browser.Page,
	workflow *models.Workflow,
	vars models.Variables,
) (*models.ExecutionResult, error) {
	executionID := uuid.New().String()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.PlatformKey, workflow.Platform),
		attribute.String(otelhelper.TaskTypeKey, workflow.TaskType),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	result := &models.ExecutionResult{
		ID:         executionID,
		WorkflowID: workflow.ID,
		Status:     models.ExecutionRunning,
		StartedAt:  time.Now(),
		Outputs:    models.Variables{},
	}

	// Run on a copy so step outputs never leak into the caller's map.
	runVars := models.Variables{}.Merge(vars)
	steps := workflow.OrderedSteps()

	e.logger.InfoContext(ctx, "Starting workflow run",
		"workflow_id", workflow.ID, "execution_id", executionID,
		"platform", workflow.Platform, "task_type", workflow.TaskType,
		"steps", len(steps))

	e.publish(ctx, workflow.ID, events.ExecutionStarted{
		BaseEvent: e.baseEvent(events.ExecutionStartedEvent, workflow.ID, executionID),
		Platform:  workflow.Platform,
		TaskType:  workflow.TaskType,
		StepCount: len(steps),
	})

	stepOutcomes := make(map[string]bool)

	for _, step := range steps {
		// Cancellation is honored between steps, never mid-action.
		if ctx.Err() != nil {
			return e.finishCancelled(ctx, workflow, result), nil
		}

		stepResult, err := e.runStep(ctx, page, workflow, step, executionID, runVars)
		result.Steps = append(result.Steps, stepResult)

		if stepResult.Success {
			stepOutcomes[step.ID] = true
			runVars = runVars.Merge(stepResult.Outputs)
			result.Outputs = result.Outputs.Merge(stepResult.Outputs)

			continue
		}

		if ctx.Err() != nil {
			return e.finishCancelled(ctx, workflow, result), nil
		}

		stepOutcomes[step.ID] = false

		if step.Optional {
			e.logger.WarnContext(ctx, "Optional step failed, continuing",
				"workflow_id", workflow.ID, "step_id", step.ID, "error", stepResult.Error)

			e.publish(ctx, workflow.ID, events.StepSkipped{
				BaseEvent: e.baseEvent(events.StepSkippedEvent, workflow.ID, executionID),
				StepID:    step.ID,
				Order:     step.Order,
				Reason:    "optional step failed: " + stepResult.Error,
			})

			result.Steps[len(result.Steps)-1].Skipped = true

			continue
		}

		return e.finishFailed(ctx, workflow, result, step, stepResult.Error, stepOutcomes, err), nil
	}

	return e.finishCompleted(ctx, workflow, result, stepOutcomes), nil
}

// runStep executes one step, invoking the self-healing hook when every stored
// selector failed to resolve.
func (e *Executor) runStep(
	ctx context.Context,
	page browser.Page,
	workflow *models.Workflow,
	step *models.Step,
	executionID string,
	vars models.Variables,
) (models.StepResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepActionKey, string(step.Action)),
	)
	defer span.End()

	e.publish(ctx, workflow.ID, events.StepStarted{
		BaseEvent: e.baseEvent(events.StepStartedEvent, workflow.ID, executionID),
		StepID:    step.ID,
		Order:     step.Order,
		Action:    step.Action,
	})

	result, err := e.steps.Execute(ctx, page, step, vars)

	if err != nil && e.healer != nil && selector.IsNotFound(err) {
		healed, healErr := e.heal(ctx, page, workflow, step, executionID)
		if healErr != nil {
			e.logger.WarnContext(ctx, "Selector recovery failed",
				"workflow_id", workflow.ID, "step_id", step.ID, "error", healErr)
		} else if healed {
			result, err = e.steps.Execute(ctx, page, step, vars)
			if err == nil {
				result.Recovered = true
			}
		}
	}

	if err != nil {
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.StepIDKey, step.ID))

		e.publish(ctx, workflow.ID, events.StepFailed{
			BaseEvent: e.baseEvent(events.StepFailedEvent, workflow.ID, executionID),
			StepID:    step.ID,
			Order:     step.Order,
			Action:    step.Action,
			Optional:  step.Optional,
			Error:     result.Error,
		})

		return result, err
	}

	e.publish(ctx, workflow.ID, events.StepFinished{
		BaseEvent:  e.baseEvent(events.StepFinishedEvent, workflow.ID, executionID),
		StepID:     step.ID,
		Order:      step.Order,
		Action:     step.Action,
		Attempts:   result.Attempts,
		DurationMs: result.Elapsed.Milliseconds(),
	})

	return result, nil
}

// heal asks the recovery hook for a replacement selector. A confirmed
// replacement is appended to the step's alternatives in memory and persisted,
// so the very next attempt and all future runs can use it. Reports whether a
// retry is worthwhile.
func (e *Executor) heal(
	ctx context.Context,
	page browser.Page,
	workflow *models.Workflow,
	step *models.Step,
	executionID string,
) (bool, error) {
	recovered, err := e.healer.Recover(ctx, page, step)
	if err != nil {
		return false, err
	}

	if recovered == nil {
		return false, nil
	}

	previous := ""
	if step.Selector != nil {
		previous = step.Selector.Value
	}

	step.Alternatives = append(step.Alternatives, *recovered)

	if err := e.repo.AppendAlternative(ctx, workflow.ID, step.ID, *recovered); err != nil {
		// The in-memory copy still carries the alternative; losing the
		// persisted record costs a re-heal on the next run, not this one.
		e.logger.ErrorContext(ctx, "Failed to persist recovered selector",
			"workflow_id", workflow.ID, "step_id", step.ID, "error", err)
	}

	e.logger.InfoContext(ctx, "Recovered selector",
		"workflow_id", workflow.ID, "step_id", step.ID,
		"kind", recovered.Kind, "value", recovered.Value)

	e.publish(ctx, workflow.ID, events.SelectorRecovered{
		BaseEvent: e.baseEvent(events.SelectorRecoveredEvent, workflow.ID, executionID),
		StepID:    step.ID,
		Kind:      recovered.Kind,
		Value:     recovered.Value,
		Previous:  previous,
	})

	return true, nil
}

func (e *Executor) finishCompleted(
	ctx context.Context,
	workflow *models.Workflow,
	result *models.ExecutionResult,
	stepOutcomes map[string]bool,
) *models.ExecutionResult {
	result.Status = models.ExecutionCompleted
	result.Success = true
	result.FinishedAt = time.Now()

	e.recordOutcome(ctx, workflow.ID, true, stepOutcomes)

	e.logger.InfoContext(ctx, "Workflow run completed",
		"workflow_id", workflow.ID, "execution_id", result.ID,
		"duration_ms", result.Duration().Milliseconds())

	e.publish(ctx, workflow.ID, events.ExecutionCompleted{
		BaseEvent:  e.baseEvent(events.ExecutionCompletedEvent, workflow.ID, result.ID),
		DurationMs: result.Duration().Milliseconds(),
		Outputs:    result.Outputs,
		StepsRun:   len(result.Steps),
	})

	return result
}

func (e *Executor) finishFailed(
	ctx context.Context,
	workflow *models.Workflow,
	result *models.ExecutionResult,
	step *models.Step,
	stepError string,
	stepOutcomes map[string]bool,
	cause error,
) *models.ExecutionResult {
	order := step.Order
	result.Status = models.ExecutionFailed
	result.FailedOrder = &order
	result.FailedStep = step.ID
	result.Error = fmt.Sprintf("step %d (%s) failed: %s", step.Order, step.Action, stepError)
	result.FinishedAt = time.Now()

	e.recordOutcome(ctx, workflow.ID, false, stepOutcomes)

	e.logger.ErrorContext(ctx, "Workflow run failed",
		"workflow_id", workflow.ID, "execution_id", result.ID,
		"failed_step", step.ID, "error", cause)

	e.publish(ctx, workflow.ID, events.ExecutionFailed{
		BaseEvent:   e.baseEvent(events.ExecutionFailedEvent, workflow.ID, result.ID),
		DurationMs:  result.Duration().Milliseconds(),
		FailedOrder: step.Order,
		FailedStep:  step.ID,
		Error:       stepError,
	})

	return result
}

// finishCancelled ends the run without touching workflow statistics; a
// cancelled run says nothing about workflow health.
func (e *Executor) finishCancelled(
	ctx context.Context,
	workflow *models.Workflow,
	result *models.ExecutionResult,
) *models.ExecutionResult {
	result.Status = models.ExecutionCancelled
	result.FinishedAt = time.Now()

	e.logger.InfoContext(ctx, "Workflow run cancelled",
		"workflow_id", workflow.ID, "execution_id", result.ID,
		"steps_run", len(result.Steps))

	// The run context is done; publish with a fresh one.
	e.publish(context.WithoutCancel(ctx), workflow.ID, events.ExecutionCancelled{
		BaseEvent:  e.baseEvent(events.ExecutionCancelledEvent, workflow.ID, result.ID),
		DurationMs: result.Duration().Milliseconds(),
		StepsRun:   len(result.Steps),
	})

	return result
}

func (e *Executor) recordOutcome(ctx context.Context, workflowID string, success bool, stepOutcomes map[string]bool) {
	_, err := e.repo.RecordOutcome(
		context.WithoutCancel(ctx), workflowID, success, stepOutcomes, e.cfg.ConfidenceSmoothing)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to record run outcome",
			"workflow_id", workflowID, "error", err)
	}
}

func (e *Executor) baseEvent(eventType events.EventType, workflowID, executionID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID, executionID)
	base.WorkerID = e.cfg.WorkerID

	return base
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}
