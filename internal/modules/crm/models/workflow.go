package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
)

// Workflow is a tenant's automation rule as stored in the database
type Workflow struct {
	ID          uuid.UUID                               `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    string                                  `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	Name        string                                  `json:"name" gorm:"type:varchar(255);not null"`
	Description string                                  `json:"description" gorm:"type:text"`
	Trigger     datatypes.JSONType[workflow.Trigger]    `json:"trigger" gorm:"type:jsonb;not null"`
	Conditions  datatypes.JSONSlice[workflow.Condition] `json:"conditions" gorm:"type:jsonb;not null;default:'[]'"`
	Actions     datatypes.JSONSlice[workflow.Action]    `json:"actions" gorm:"type:jsonb;not null;default:'[]'"`
	IsActive    bool                                    `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt   time.Time                               `json:"created_at" gorm:"autoCreateTime;index:,sort:desc"`
	UpdatedAt   time.Time                               `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Workflow
func (Workflow) TableName() string {
	return "workflows"
}

// ToRule converts the stored definition into the engine's rule
func (w Workflow) ToRule() workflow.Rule {
	conditions := make([]workflow.Condition, len(w.Conditions))
	copy(conditions, w.Conditions)
	actions := make([]workflow.Action, len(w.Actions))
	copy(actions, w.Actions)

	return workflow.Rule{
		ID:          w.ID.String(),
		TenantID:    w.TenantID,
		Name:        w.Name,
		Description: w.Description,
		Trigger:     w.Trigger.Data(),
		Conditions:  conditions,
		Actions:     actions,
		IsActive:    w.IsActive,
	}
}

// WorkflowExecution is one recorded firing of a workflow for one entity
type WorkflowExecution struct {
	ID          uuid.UUID                                  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    string                                     `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	WorkflowID  uuid.UUID                                  `json:"workflow_id" gorm:"type:uuid;not null;index"`
	EntityType  string                                     `json:"entity_type" gorm:"type:varchar(50);not null"`
	EntityID    string                                     `json:"entity_id" gorm:"type:varchar(64)"`
	Status      workflow.ExecutionStatus                   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"` // pending, completed, failed
	Result      datatypes.JSONSlice[workflow.ActionResult] `json:"result" gorm:"type:jsonb;not null;default:'[]'"`
	Error       string                                     `json:"error,omitempty" gorm:"type:text"`
	ExecutedAt  time.Time                                  `json:"executed_at" gorm:"not null;index:,sort:desc"`
	CompletedAt *time.Time                                 `json:"completed_at,omitempty"`
	DurationMs  int64                                      `json:"duration_ms,omitempty"`
}

// TableName specifies the table name for WorkflowExecution
func (WorkflowExecution) TableName() string {
	return "workflow_executions"
}
