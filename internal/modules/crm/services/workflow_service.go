package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/audit"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/repositories"
)

// ErrWorkflowNotFound is returned when the workflow does not exist for the tenant
var ErrWorkflowNotFound = errors.New("workflow not found")

const auditEntity = "workflow"

// Actor identifies who is calling the authoring surface
type Actor struct {
	TenantID string
	UserID   string
}

// WorkflowRequest is a complete workflow definition. Updates replace the
// trigger, conditions and actions as a whole.
type WorkflowRequest struct {
	Name        string               `json:"name" validate:"required,max=255"`
	Description string               `json:"description" validate:"max=2000"`
	Trigger     workflow.Trigger     `json:"trigger" validate:"required"`
	Conditions  []workflow.Condition `json:"conditions" validate:"dive"`
	Actions     []workflow.Action    `json:"actions" validate:"required,min=1,dive"`
	IsActive    *bool                `json:"is_active"`
}

// TestWorkflowRequest runs one workflow against sample entity data
type TestWorkflowRequest struct {
	Payload workflow.Payload `json:"payload" validate:"required"`
	DryRun  bool             `json:"dry_run"`
}

// ExecutionLister serves execution history
type ExecutionLister interface {
	ListByWorkflow(ctx context.Context, tenantID string, workflowID uuid.UUID, limit int) ([]models.WorkflowExecution, error)
}

// RuleRunner runs a single rule, for real or as a dry run
type RuleRunner interface {
	Execute(ctx context.Context, rule workflow.Rule, event workflow.Event) workflow.Outcome
	Plan(rule workflow.Rule, event workflow.Event) workflow.Outcome
}

// AuditLog records and lists authoring changes
type AuditLog interface {
	LogChange(ctx context.Context, change audit.Change) error
	GetEntityHistory(ctx context.Context, tenantID, entity, entityID string, limit int) ([]audit.AuditLog, error)
}

// WorkflowService handles workflow authoring
type WorkflowService struct {
	workflowRepo repositories.WorkflowRepo
	executions   ExecutionLister
	runner       RuleRunner
	audit        AuditLog
	logger       zerolog.Logger
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(
	workflowRepo repositories.WorkflowRepo,
	executions ExecutionLister,
	runner RuleRunner,
	auditLog AuditLog,
) *WorkflowService {
	return &WorkflowService{
		workflowRepo: workflowRepo,
		executions:   executions,
		runner:       runner,
		audit:        auditLog,
		logger:       log.With().Str("component", "workflow.service").Logger(),
	}
}

// CreateWorkflow validates and stores a new workflow
func (s *WorkflowService) CreateWorkflow(ctx context.Context, actor Actor, req WorkflowRequest) (*models.Workflow, error) {
	if err := validateDefinition(req); err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	wf := &models.Workflow{
		TenantID:    actor.TenantID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    isActive,
	}
	applyDefinition(wf, req)

	if err := s.workflowRepo.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	s.logChange(ctx, actor, audit.ActionCreate, wf.ID, nil, wf, "workflow created")
	s.logger.Info().Str("tenant_id", actor.TenantID).Str("workflow_id", wf.ID.String()).Msg("workflow created")
	return wf, nil
}

// ListWorkflows lists the tenant's workflows, newest first
func (s *WorkflowService) ListWorkflows(ctx context.Context, tenantID string) ([]models.Workflow, error) {
	workflows, err := s.workflowRepo.FindByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return workflows, nil
}

// GetWorkflow retrieves a tenant's workflow by ID
func (s *WorkflowService) GetWorkflow(ctx context.Context, tenantID string, id uuid.UUID) (*models.Workflow, error) {
	wf, err := s.workflowRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

// UpdateWorkflow replaces a workflow's definition. IsActive is kept when omitted.
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, actor Actor, id uuid.UUID, req WorkflowRequest) (*models.Workflow, error) {
	if err := validateDefinition(req); err != nil {
		return nil, err
	}

	wf, err := s.GetWorkflow(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	before := *wf

	wf.Name = req.Name
	wf.Description = req.Description
	applyDefinition(wf, req)
	if req.IsActive != nil {
		wf.IsActive = *req.IsActive
	}

	if err := s.workflowRepo.Update(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	s.logChange(ctx, actor, audit.ActionUpdate, wf.ID, before, wf, "workflow updated")
	return wf, nil
}

// DeleteWorkflow deletes a tenant's workflow
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, actor Actor, id uuid.UUID) error {
	wf, err := s.GetWorkflow(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}

	if err := s.workflowRepo.Delete(ctx, actor.TenantID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkflowNotFound
		}
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	s.logChange(ctx, actor, audit.ActionDelete, id, wf, nil, "workflow deleted")
	return nil
}

// ToggleWorkflow flips the active flag
func (s *WorkflowService) ToggleWorkflow(ctx context.Context, actor Actor, id uuid.UUID) (*models.Workflow, error) {
	wf, err := s.GetWorkflow(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}

	wf.IsActive = !wf.IsActive
	if err := s.workflowRepo.Update(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to toggle workflow: %w", err)
	}

	s.logChange(ctx, actor, audit.ActionToggle, wf.ID,
		map[string]bool{"is_active": !wf.IsActive},
		map[string]bool{"is_active": wf.IsActive},
		"workflow toggled")
	return wf, nil
}

// GetExecutions returns the newest executions of a tenant's workflow
func (s *WorkflowService) GetExecutions(ctx context.Context, tenantID string, id uuid.UUID, limit int) ([]models.WorkflowExecution, error) {
	if _, err := s.GetWorkflow(ctx, tenantID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > repositories.DefaultExecutionLimit {
		limit = repositories.DefaultExecutionLimit
	}

	executions, err := s.executions.ListByWorkflow(ctx, tenantID, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return executions, nil
}

// TestWorkflow runs one workflow against sample data. The workflow runs even
// when inactive. A dry run only plans the actions.
func (s *WorkflowService) TestWorkflow(ctx context.Context, actor Actor, id uuid.UUID, req TestWorkflowRequest) (workflow.Outcome, error) {
	if err := validateStruct(req); err != nil {
		return workflow.Outcome{}, err
	}

	wf, err := s.GetWorkflow(ctx, actor.TenantID, id)
	if err != nil {
		return workflow.Outcome{}, err
	}

	rule := wf.ToRule()
	event := workflow.Event{
		Name:     rule.Trigger.Event,
		Entity:   rule.Trigger.Entity,
		TenantID: actor.TenantID,
		Payload:  req.Payload,
	}

	if req.DryRun {
		return s.runner.Plan(rule, event), nil
	}

	outcome := s.runner.Execute(ctx, rule, event)
	s.logChange(ctx, actor, audit.ActionTest, wf.ID, nil, outcome, "workflow test run")
	return outcome, nil
}

// AvailableTriggers lists the events workflows can listen for
func (s *WorkflowService) AvailableTriggers() []workflow.TriggerDefinition {
	return workflow.AvailableTriggers()
}

// AvailableActions lists the supported action types and their params
func (s *WorkflowService) AvailableActions() []workflow.ActionDefinition {
	return workflow.AvailableActions()
}

// GetAuditHistory lists the recorded changes of a tenant's workflow
func (s *WorkflowService) GetAuditHistory(ctx context.Context, tenantID string, id uuid.UUID, limit int) ([]audit.AuditLog, error) {
	if _, err := s.GetWorkflow(ctx, tenantID, id); err != nil {
		return nil, err
	}
	logs, err := s.audit.GetEntityHistory(ctx, tenantID, auditEntity, id.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit history: %w", err)
	}
	return logs, nil
}

func (s *WorkflowService) logChange(ctx context.Context, actor Actor, action string, id uuid.UUID, oldValue, newValue interface{}, description string) {
	err := s.audit.LogChange(ctx, audit.Change{
		TenantID:    actor.TenantID,
		UserID:      actor.UserID,
		Action:      action,
		Entity:      auditEntity,
		EntityID:    id.String(),
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: description,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("workflow_id", id.String()).Str("action", action).Msg("failed to write audit log")
	}
}

func applyDefinition(wf *models.Workflow, req WorkflowRequest) {
	conditions := req.Conditions
	if conditions == nil {
		conditions = []workflow.Condition{}
	}
	wf.Trigger = datatypes.NewJSONType(req.Trigger)
	wf.Conditions = datatypes.JSONSlice[workflow.Condition](conditions)
	wf.Actions = datatypes.JSONSlice[workflow.Action](req.Actions)
}

// validateDefinition checks struct rules, operators and per-action params
func validateDefinition(req WorkflowRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}

	if err := workflow.ValidateConditions(req.Conditions); err != nil {
		return newValidationError(err.Error())
	}
	for i, c := range req.Conditions {
		if !knownOperator(c.Operator) {
			return newValidationError(fmt.Sprintf("conditions[%d].operator %q is not supported", i, c.Operator))
		}
	}

	if err := workflow.ValidateActions(req.Actions); err != nil {
		return newValidationError(err.Error())
	}
	return nil
}

func knownOperator(op workflow.Operator) bool {
	for _, known := range workflow.Operators {
		if op == known {
			return true
		}
	}
	return false
}
