package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audit actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionTest   = "test"
)

// AuditLog represents one recorded change
type AuditLog struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`

	// Context
	TenantID string `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	UserID   string `json:"user_id" gorm:"type:varchar(64);index"`

	// Action details
	Action   string `json:"action" gorm:"type:text;not null;index"` // create, update, delete, toggle, test
	Entity   string `json:"entity" gorm:"type:text;not null;index"` // workflow
	EntityID string `json:"entity_id" gorm:"type:text;index"`

	// Change tracking
	OldValue datatypes.JSON `json:"old_value,omitempty" gorm:"type:jsonb"`
	NewValue datatypes.JSON `json:"new_value,omitempty" gorm:"type:jsonb"`

	Description string `json:"description,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Change describes one audited mutation
type Change struct {
	TenantID    string
	UserID      string
	Action      string
	Entity      string
	EntityID    string
	OldValue    interface{}
	NewValue    interface{}
	Description string
}
