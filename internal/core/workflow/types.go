package workflow

import (
	"time"
)

// Payload is the plain data of the entity that raised an event.
// It must carry at least an "id" key.
type Payload map[string]interface{}

// Trigger is the (event, entity) pair a rule listens for
type Trigger struct {
	Event  string `json:"event" validate:"required"`  // e.g. "contact_created"
	Entity string `json:"entity" validate:"required"` // e.g. "contact"
}

// Operator is a condition comparison operator
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
)

// Operators lists every operator the evaluator understands
var Operators = []Operator{
	OperatorEquals,
	OperatorNotEquals,
	OperatorContains,
	OperatorGreaterThan,
	OperatorLessThan,
}

// Condition is a single predicate over a top-level payload field.
// All conditions of a rule are AND-ed.
type Condition struct {
	Field    string      `json:"field" validate:"required"`
	Operator Operator    `json:"operator" validate:"required"`
	Value    interface{} `json:"value"`
}

// ActionType identifies one step kind of a rule's effect sequence
type ActionType string

const (
	ActionCreateTask      ActionType = "create_task"
	ActionSendEmail       ActionType = "send_email"
	ActionSendSMS         ActionType = "send_sms"
	ActionUpdateField     ActionType = "update_field"
	ActionUpdateLeadScore ActionType = "update_lead_score"
	ActionCallWebhook     ActionType = "call_webhook"
)

// Action is the stored, declarative form of a step
type Action struct {
	Type   ActionType             `json:"type" validate:"required"`
	Params map[string]interface{} `json:"params"`
}

// ActionResult describes what one executed action did
type ActionResult struct {
	Type    ActionType             `json:"type"`
	Status  string                 `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Rule is the engine's view of a workflow definition
type Rule struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	Trigger     Trigger
	Conditions  []Condition
	Actions     []Action
	IsActive    bool
}

// Event is one domain event handed to the engine
type Event struct {
	Name     string  `json:"event"`
	Entity   string  `json:"entity"`
	TenantID string  `json:"tenant_id"`
	Payload  Payload `json:"payload"`
}

// EntityID returns the id of the entity instance that raised the event
func (e Event) EntityID() string {
	id, ok := e.Payload["id"]
	if !ok || id == nil {
		return ""
	}
	return stringify(id)
}

// ExecutionStatus is the state of a WorkflowExecution record
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// ExecutionHandle identifies a pending execution record
type ExecutionHandle struct {
	ID        string
	TenantID  string
	StartedAt time.Time
}

// Outcome reports what happened to one rule for one event
type Outcome struct {
	WorkflowID   string          `json:"workflow_id"`
	WorkflowName string          `json:"workflow_name"`
	Matched      bool            `json:"matched"`
	DryRun       bool            `json:"dry_run,omitempty"`
	ExecutionID  string          `json:"execution_id,omitempty"`
	Status       ExecutionStatus `json:"status,omitempty"`
	Results      []ActionResult  `json:"results,omitempty"`
	Error        string          `json:"error,omitempty"`
	RecordError  string          `json:"record_error,omitempty"`
}
