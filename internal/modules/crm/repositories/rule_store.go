package repositories

import (
	"context"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
)

// RuleStore serves workflow definitions to the engine
type RuleStore struct {
	repo WorkflowRepo
}

// NewRuleStore creates a rule store backed by the workflow repository
func NewRuleStore(repo WorkflowRepo) *RuleStore {
	return &RuleStore{repo: repo}
}

// FindActiveRulesForEvent implements workflow.RuleStore
func (s *RuleStore) FindActiveRulesForEvent(ctx context.Context, tenantID, event string) ([]workflow.Rule, error) {
	workflows, err := s.repo.FindActiveByEvent(ctx, tenantID, event)
	if err != nil {
		return nil, err
	}

	rules := make([]workflow.Rule, 0, len(workflows))
	for _, wf := range workflows {
		rules = append(rules, wf.ToRule())
	}
	return rules, nil
}
