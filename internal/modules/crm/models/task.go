package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a follow-up item created by automations
type Task struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID          string     `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	Subject           string     `json:"subject" gorm:"type:varchar(255);not null"`
	Notes             string     `json:"notes,omitempty" gorm:"type:text"`
	AssignedTo        string     `json:"assigned_to" gorm:"type:varchar(64);not null;index"`
	Status            string     `json:"status" gorm:"type:varchar(20);not null;default:'open'"`
	DueAt             *time.Time `json:"due_at,omitempty"`
	RelatedEntityType string     `json:"related_entity_type,omitempty" gorm:"type:varchar(50)"`
	RelatedEntityID   string     `json:"related_entity_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}
