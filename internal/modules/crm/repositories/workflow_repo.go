package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/models"
)

// WorkflowRepo interface for workflow database operations.
// Every lookup is scoped to a tenant.
type WorkflowRepo interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	FindByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Workflow, error)
	FindByTenantID(ctx context.Context, tenantID string) ([]models.Workflow, error)
	FindActiveByEvent(ctx context.Context, tenantID, event string) ([]models.Workflow, error)
	Update(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

type workflowRepo struct {
	db *gorm.DB
}

// NewWorkflowRepo creates a new workflow repository
func NewWorkflowRepo(db *gorm.DB) WorkflowRepo {
	return &workflowRepo{db: db}
}

func (r *workflowRepo) Create(ctx context.Context, workflow *models.Workflow) error {
	return r.db.WithContext(ctx).Create(workflow).Error
}

// FindByID returns gorm.ErrRecordNotFound when the workflow does not exist for the tenant
func (r *workflowRepo) FindByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Workflow, error) {
	var workflow models.Workflow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&workflow).Error
	if err != nil {
		return nil, err
	}
	return &workflow, nil
}

func (r *workflowRepo) FindByTenantID(ctx context.Context, tenantID string) ([]models.Workflow, error) {
	var workflows []models.Workflow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&workflows).Error
	return workflows, err
}

func (r *workflowRepo) FindActiveByEvent(ctx context.Context, tenantID, event string) ([]models.Workflow, error) {
	var workflows []models.Workflow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Where(datatypes.JSONQuery("trigger").Equals(event, "event")).
		Order("created_at ASC").
		Find(&workflows).Error
	return workflows, err
}

func (r *workflowRepo) Update(ctx context.Context, workflow *models.Workflow) error {
	return r.db.WithContext(ctx).Save(workflow).Error
}

// Delete returns gorm.ErrRecordNotFound when nothing was deleted
func (r *workflowRepo) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.Workflow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
