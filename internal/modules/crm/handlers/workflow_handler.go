package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/services"
)

// WorkflowService is the authoring surface the handler serves
type WorkflowService interface {
	CreateWorkflow(ctx context.Context, actor services.Actor, req services.WorkflowRequest) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, tenantID string) ([]models.Workflow, error)
	GetWorkflow(ctx context.Context, tenantID string, id uuid.UUID) (*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, actor services.Actor, id uuid.UUID, req services.WorkflowRequest) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, actor services.Actor, id uuid.UUID) error
	ToggleWorkflow(ctx context.Context, actor services.Actor, id uuid.UUID) (*models.Workflow, error)
	GetExecutions(ctx context.Context, tenantID string, id uuid.UUID, limit int) ([]models.WorkflowExecution, error)
	TestWorkflow(ctx context.Context, actor services.Actor, id uuid.UUID, req services.TestWorkflowRequest) (workflow.Outcome, error)
	GetAuditHistory(ctx context.Context, tenantID string, id uuid.UUID, limit int) ([]audit.AuditLog, error)
	AvailableTriggers() []workflow.TriggerDefinition
	AvailableActions() []workflow.ActionDefinition
}

// WorkflowHandler handles workflow-related requests
type WorkflowHandler struct {
	workflowService WorkflowService
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflowService WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
	}
}

// RegisterRoutes mounts the workflow routes on an authenticated router
func (h *WorkflowHandler) RegisterRoutes(router fiber.Router) {
	read := auth.RequirePermission(auth.PermWorkflowsRead)
	create := auth.RequirePermission(auth.PermWorkflowsCreate)
	update := auth.RequirePermission(auth.PermWorkflowsUpdate)
	remove := auth.RequirePermission(auth.PermWorkflowsDelete)

	workflows := router.Group("/workflows")
	workflows.Get("/triggers", read, h.ListTriggers)
	workflows.Get("/actions", read, h.ListActions)
	workflows.Post("/", create, h.CreateWorkflow)
	workflows.Get("/", read, h.ListWorkflows)
	workflows.Get("/:id", read, h.GetWorkflow)
	workflows.Patch("/:id", update, h.UpdateWorkflow)
	workflows.Put("/:id", update, h.UpdateWorkflow)
	workflows.Post("/:id/toggle", update, h.ToggleWorkflow)
	workflows.Post("/:id/test", update, h.TestWorkflow)
	workflows.Delete("/:id", remove, h.DeleteWorkflow)
	workflows.Get("/:id/executions", read, h.GetWorkflowExecutions)
	workflows.Get("/:id/audit", read, h.GetWorkflowAudit)
}

func actorOf(c *fiber.Ctx) services.Actor {
	return services.Actor{TenantID: auth.TenantID(c), UserID: auth.UserID(c)}
}

func invalidWorkflowID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid workflow id format",
	})
}

// ListTriggers godoc
// @Summary List available triggers
// @Description Events workflows can listen for
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/workflows/triggers [get]
func (h *WorkflowHandler) ListTriggers(c *fiber.Ctx) error {
	triggers := h.workflowService.AvailableTriggers()
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(triggers),
		"data":   triggers,
	})
}

// ListActions godoc
// @Summary List available actions
// @Description Supported action types with their params and JSON schema
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/workflows/actions [get]
func (h *WorkflowHandler) ListActions(c *fiber.Ctx) error {
	actions := h.workflowService.AvailableActions()
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(actions),
		"data":   actions,
	})
}

// CreateWorkflow godoc
// @Summary Create a new workflow
// @Description Create an automation workflow for the caller's tenant
// @Tags Workflows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workflow body services.WorkflowRequest true "Workflow definition"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /api/v1/workflows [post]
func (h *WorkflowHandler) CreateWorkflow(c *fiber.Ctx) error {
	var req services.WorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	created, err := h.workflowService.CreateWorkflow(c.UserContext(), actorOf(c), req)
	if err != nil {
		return writeError(c, err, "failed to create workflow")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Workflow created successfully",
		"data":    created,
	})
}

// ListWorkflows godoc
// @Summary List workflows
// @Description All workflows of the caller's tenant, newest first
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /api/v1/workflows [get]
func (h *WorkflowHandler) ListWorkflows(c *fiber.Ctx) error {
	workflows, err := h.workflowService.ListWorkflows(c.UserContext(), auth.TenantID(c))
	if err != nil {
		return writeError(c, err, "failed to retrieve workflows")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(workflows),
		"data":   workflows,
	})
}

// GetWorkflow godoc
// @Summary Get workflow by ID
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workflow ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/workflows/{id} [get]
func (h *WorkflowHandler) GetWorkflow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidWorkflowID(c)
	}

	wf, err := h.workflowService.GetWorkflow(c.UserContext(), auth.TenantID(c), id)
	if err != nil {
		return writeError(c, err, "failed to get workflow")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   wf,
	})
}

// UpdateWorkflow godoc
// @Summary Update a workflow
// @Description Replace the workflow's definition. is_active is kept when omitted.
// @Tags Workflows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workflow ID"
// @Param workflow body services.WorkflowRequest true "Workflow definition"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/workflows/{id} [patch]
// @Router /api/v1/workflows/{id} [put]
func (h *WorkflowHandler) UpdateWorkflow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidWorkflowID(c)
	}

	var req services.WorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	updated, err := h.workflowService.UpdateWorkflow(c.UserContext(), actorOf(c), id, req)
	if err != nil {
		return writeError(c, err, "failed to update workflow")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Workflow updated successfully",
		"data":    updated,
	})
}

// ToggleWorkflow godoc
// @Summary Toggle a workflow
// @Description Flip the workflow's active flag
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workflow ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/workflows/{id}/toggle [post]
func (h *WorkflowHandler) ToggleWorkflow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidWorkflowID(c)
	}

	wf, err := h.workflowService.ToggleWorkflow(c.UserContext(), actorOf(c), id)
	if err != nil {
		return writeError(c, err, "failed to toggle workflow")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   wf,
	})
}

// TestWorkflow godoc
// @Summary Test a workflow
// @Description Run one workflow against sample entity data, even when inactive. dry_run only plans the actions.
// @Tags Workflows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workflow ID"
// @Param request body services.TestWorkflowRequest true "Sample payload"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/workflows/{id}/test [post]
func (h *WorkflowHandler) TestWorkflow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidWorkflowID(c)
	}

	var req services.TestWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	outcome, err := h.workflowService.TestWorkflow(c.UserContext(), actorOf(c), id, req)
	if err != nil {
		return writeError(c, err, "failed to test workflow")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   outcome,
	})
}

// DeleteWorkflow godoc
// @Summary Delete a workflow
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workflow ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/workflows/{id} [delete]
func (h *WorkflowHandler) DeleteWorkflow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidWorkflowID(c)
	}

	if err := h.workflowService.DeleteWorkflow(c.UserContext(), actorOf(c), id); err != nil {
		return writeError(c, err, "failed to delete workflow")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Workflow deleted successfully",
	})
}

// GetWorkflowExecutions godoc
// @Summary Get workflow execution history
// @Description Newest executions first
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workflow ID"
// @Param limit query int false "Limit number of results" default(50)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/workflows/{id}/executions [get]
func (h *WorkflowHandler) GetWorkflowExecutions(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidWorkflowID(c)
	}

	executions, err := h.workflowService.GetExecutions(c.UserContext(), auth.TenantID(c), id, c.QueryInt("limit", 50))
	if err != nil {
		return writeError(c, err, "failed to retrieve executions")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(executions),
		"data":   executions,
	})
}

// GetWorkflowAudit godoc
// @Summary Get workflow change history
// @Tags Workflows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workflow ID"
// @Param limit query int false "Limit number of results" default(100)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/v1/workflows/{id}/audit [get]
func (h *WorkflowHandler) GetWorkflowAudit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidWorkflowID(c)
	}

	logs, err := h.workflowService.GetAuditHistory(c.UserContext(), auth.TenantID(c), id, c.QueryInt("limit", 100))
	if err != nil {
		return writeError(c, err, "failed to retrieve audit history")
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(logs),
		"data":   logs,
	})
}
