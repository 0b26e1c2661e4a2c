package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service provides audit logging functionality
type Service struct {
	db *gorm.DB
}

// NewService creates a new audit service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// LogChange records a change. Values that cannot be serialized are dropped
// from the entry rather than failing it.
func (s *Service) LogChange(ctx context.Context, change Change) error {
	entry := &AuditLog{
		TenantID:    change.TenantID,
		UserID:      change.UserID,
		Action:      change.Action,
		Entity:      change.Entity,
		EntityID:    change.EntityID,
		OldValue:    toJSON(change.OldValue),
		NewValue:    toJSON(change.NewValue),
		Description: change.Description,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetEntityHistory returns the changes of one entity, newest first
func (s *Service) GetEntityHistory(ctx context.Context, tenantID, entity, entityID string, limit int) ([]AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var logs []AuditLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity = ? AND entity_id = ?", tenantID, entity, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get entity history: %w", err)
	}

	return logs, nil
}

// DeleteOldLogs deletes audit logs older than the given age
func (s *Service) DeleteOldLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func toJSON(value interface{}) datatypes.JSON {
	if value == nil {
		return nil
	}

	bytes, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize audit value")
		return nil
	}

	return datatypes.JSON(bytes)
}
