package repositories

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"
)

// entityTables maps entity kinds to the tables automations may write to
var entityTables = map[string]string{
	"contact":     "contacts",
	"lead":        "leads",
	"opportunity": "opportunities",
	"ticket":      "tickets",
	"task":        "tasks",
}

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// protectedColumns can never be written by an automation
var protectedColumns = map[string]bool{
	"id":         true,
	"tenant_id":  true,
	"created_at": true,
	"updated_at": true,
}

// EntityRepo writes single fields on CRM entities owned by other services
type EntityRepo struct {
	db *gorm.DB
}

// NewEntityRepo creates a new entity repository
func NewEntityRepo(db *gorm.DB) *EntityRepo {
	return &EntityRepo{db: db}
}

// UpdateField implements workflow.FieldUpdater
func (r *EntityRepo) UpdateField(ctx context.Context, tenantID, entity, entityID, field string, value interface{}) error {
	table, column, err := resolveColumn(entity, field)
	if err != nil {
		return err
	}
	if entityID == "" {
		return fmt.Errorf("%s has no id", entity)
	}

	result := r.db.WithContext(ctx).
		Table(table).
		Where("tenant_id = ? AND id = ?", tenantID, entityID).
		Updates(map[string]interface{}{
			column:       value,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update %s.%s: %w", table, column, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %s not found", entity, entityID)
	}
	return nil
}

func resolveColumn(entity, field string) (string, string, error) {
	table, ok := entityTables[entity]
	if !ok {
		return "", "", fmt.Errorf("entity %q cannot be updated by automations", entity)
	}
	if !columnPattern.MatchString(field) {
		return "", "", fmt.Errorf("invalid field name %q", field)
	}
	if protectedColumns[field] {
		return "", "", fmt.Errorf("field %q is protected", field)
	}
	return table, field, nil
}
