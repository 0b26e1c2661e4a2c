package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

// TaskRepo creates follow-up tasks on behalf of automations
type TaskRepo struct {
	db *gorm.DB
}

// NewTaskRepo creates a new task repository
func NewTaskRepo(db *gorm.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// CreateTask implements workflow.TaskCreator
func (r *TaskRepo) CreateTask(ctx context.Context, task workflow.NewTask) (string, error) {
	record := &models.Task{
		TenantID:          task.TenantID,
		Subject:           task.Subject,
		Notes:             task.Notes,
		AssignedTo:        task.AssignedTo,
		Status:            "open",
		DueAt:             task.DueAt,
		RelatedEntityType: task.RelatedEntityType,
		RelatedEntityID:   task.RelatedEntityID,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}
	return record.ID.String(), nil
}
