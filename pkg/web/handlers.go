// Package web provides HTTP handlers and REST API endpoints for workflow
// management, teaching sessions and task submission.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/xjanova/postxagent/pkg/models"
	"github.com/xjanova/postxagent/pkg/persistence"
	"github.com/xjanova/postxagent/pkg/tasks"
	"github.com/xjanova/postxagent/pkg/teaching"
	"github.com/xjanova/postxagent/pkg/workflow"
)

type APIHandlers struct {
	workflows *workflow.Repository
	teaching  *teaching.Service
	queue     *tasks.Queue
	validator *validator.Validate
}

func NewAPIHandlers(
	workflows *workflow.Repository,
	teachingService *teaching.Service,
	queue *tasks.Queue,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflows: workflows,
		teaching:  teachingService,
		queue:     queue,
		validator: validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflows.HealthCheck(c.Context())

	status := "unhealthy"
	message := "PostX API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "PostX API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.FetchAll(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	found, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

// GetActiveWorkflow returns the workflow a task for the platform and task
// type would execute right now.
func (h *APIHandlers) GetActiveWorkflow(c fiber.Ctx) error {
	platform := c.Params("platform")
	taskType := c.Params("taskType")

	active, err := h.workflows.FetchActive(c.Context(), platform, taskType)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(active)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflows.Create(c.Context(), &models.Workflow{
		Platform: req.Platform,
		TaskType: req.TaskType,
		Name:     req.Name,
		Steps:    req.Steps,
		Metadata: req.Metadata,
		Active:   req.Active,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Steps != nil {
		existing.Steps = req.Steps
	}

	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	if req.Active != nil {
		existing.Active = *req.Active
	}

	updated, err := h.workflows.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// DeactivateWorkflow retires a workflow. Nothing is ever hard-deleted.
func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflows.Deactivate(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	found, err := h.workflows.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	data, err := workflow.Export(found)
	if err != nil {
		return internalError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(data)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	imported, err := workflow.Import(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	created, err := h.workflows.Create(c.Context(), imported)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetSessions(c fiber.Ctx) error {
	sessions, err := h.teaching.Sessions(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":    sessions,
		"total_count": len(sessions),
	})
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	session, err := h.teaching.Session(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) StartSession(c fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.teaching.Start(c.Context(), req.Platform, req.TaskType, req.BrowserSessionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *APIHandlers) BeginRecording(c fiber.Ctx) error {
	session, err := h.teaching.BeginRecording(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) PauseSession(c fiber.Ctx) error {
	session, err := h.teaching.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) RecordStep(c fiber.Ctx) error {
	var step models.RecordedStep
	if err := c.Bind().JSON(&step); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(step); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.teaching.Record(c.Context(), c.Params("id"), step)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *APIHandlers) ReviewSession(c fiber.Ctx) error {
	session, err := h.teaching.Review(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) CompleteSession(c fiber.Ctx) error {
	var req CompleteSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.teaching.Complete(c.Context(), c.Params("id"), req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) CancelSession(c fiber.Ctx) error {
	if err := h.teaching.Cancel(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// EnqueueTask queues a posting task for the workers. The active workflow is
// resolved at execution time, not submission time.
func (h *APIHandlers) EnqueueTask(c fiber.Ctx) error {
	if h.queue == nil {
		return conflict(c, "task queue is not configured")
	}

	var req EnqueueTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// Reject tasks nothing can execute, so failures surface at submission.
	if _, err := h.workflows.FetchActive(c.Context(), req.Platform, req.TaskType); err != nil {
		if persistence.IsNoActiveWorkflow(err) {
			return handleServiceError(c, err)
		}

		return internalError(c, err)
	}

	taskID, err := h.queue.Enqueue(c.Context(), tasks.PostTask{
		Platform:  req.Platform,
		TaskType:  req.TaskType,
		Variables: req.Variables,
	})
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": taskID})
}
