package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

// DefaultExecutionLimit caps execution listings when no limit is given
const DefaultExecutionLimit = 50

// ExecutionRecorder persists workflow executions. It implements
// workflow.ExecutionRecorder and serves the execution history queries.
type ExecutionRecorder struct {
	db  *gorm.DB
	now func() time.Time
}

// NewExecutionRecorder creates a new execution recorder
func NewExecutionRecorder(db *gorm.DB) *ExecutionRecorder {
	return &ExecutionRecorder{db: db, now: time.Now}
}

func (r *ExecutionRecorder) CreateExecution(ctx context.Context, tenantID, workflowID, entityType, entityID string) (workflow.ExecutionHandle, error) {
	wfID, err := uuid.Parse(workflowID)
	if err != nil {
		return workflow.ExecutionHandle{}, fmt.Errorf("invalid workflow id %q: %w", workflowID, err)
	}

	execution := &models.WorkflowExecution{
		ID:         uuid.New(),
		TenantID:   tenantID,
		WorkflowID: wfID,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     workflow.StatusPending,
		Result:     []workflow.ActionResult{},
		ExecutedAt: r.now(),
	}
	if err := r.db.WithContext(ctx).Create(execution).Error; err != nil {
		return workflow.ExecutionHandle{}, fmt.Errorf("failed to create execution: %w", err)
	}

	return workflow.ExecutionHandle{
		ID:        execution.ID.String(),
		TenantID:  tenantID,
		StartedAt: execution.ExecutedAt,
	}, nil
}

func (r *ExecutionRecorder) CompleteExecution(ctx context.Context, handle workflow.ExecutionHandle, results []workflow.ActionResult) error {
	return r.finish(ctx, handle, workflow.StatusCompleted, results, "")
}

func (r *ExecutionRecorder) FailExecution(ctx context.Context, handle workflow.ExecutionHandle, results []workflow.ActionResult, message string) error {
	return r.finish(ctx, handle, workflow.StatusFailed, results, message)
}

// finish moves a pending execution to its terminal status. Terminal records are never rewritten.
func (r *ExecutionRecorder) finish(ctx context.Context, handle workflow.ExecutionHandle, status workflow.ExecutionStatus, results []workflow.ActionResult, message string) error {
	if results == nil {
		results = []workflow.ActionResult{}
	}

	completedAt := r.now()
	var durationMs int64
	if !handle.StartedAt.IsZero() {
		durationMs = completedAt.Sub(handle.StartedAt).Milliseconds()
	}

	result := r.db.WithContext(ctx).
		Model(&models.WorkflowExecution{}).
		Where("id = ? AND tenant_id = ? AND status = ?", handle.ID, handle.TenantID, string(workflow.StatusPending)).
		Updates(map[string]interface{}{
			"status":       string(status),
			"result":       datatypes.JSONSlice[workflow.ActionResult](results),
			"error":        message,
			"completed_at": completedAt,
			"duration_ms":  durationMs,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to %s execution %s: %w", verb(status), handle.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("execution %s is not pending", handle.ID)
	}
	return nil
}

func verb(status workflow.ExecutionStatus) string {
	if status == workflow.StatusFailed {
		return "fail"
	}
	return "complete"
}

// ListByWorkflow returns the newest executions of a tenant's workflow first
func (r *ExecutionRecorder) ListByWorkflow(ctx context.Context, tenantID string, workflowID uuid.UUID, limit int) ([]models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = DefaultExecutionLimit
	}

	var executions []models.WorkflowExecution
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND workflow_id = ?", tenantID, workflowID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&executions).Error
	return executions, err
}

// DeleteOlderThan removes terminal executions older than the given age
func (r *ExecutionRecorder) DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("status IN ? AND executed_at < ?", []string{string(workflow.StatusCompleted), string(workflow.StatusFailed)}, cutoff).
		Delete(&models.WorkflowExecution{})
	return result.RowsAffected, result.Error
}
