package workflow

import (
	"errors"
	"fmt"
)

// ErrActionTimeout is wrapped by ActionExecutionError when an action exceeds its deadline
var ErrActionTimeout = errors.New("action timed out")

// ConditionEvaluationError reports a malformed condition record
type ConditionEvaluationError struct {
	Index  int
	Reason string
}

func (e *ConditionEvaluationError) Error() string {
	return fmt.Sprintf("condition %d is malformed: %s", e.Index, e.Reason)
}

// UnsupportedActionError is returned for an action type the executor does not know
type UnsupportedActionError struct {
	Type ActionType
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action type: %s", e.Type)
}

// ActionExecutionError wraps a failed collaborator call or invalid action params
type ActionExecutionError struct {
	Type ActionType
	Err  error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Type, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

// RuleStoreError wraps failures to load rules or write execution records
type RuleStoreError struct {
	Op  string
	Err error
}

func (e *RuleStoreError) Error() string {
	return fmt.Sprintf("rule store %s: %v", e.Op, e.Err)
}

func (e *RuleStoreError) Unwrap() error {
	return e.Err
}

func actionErr(t ActionType, format string, args ...interface{}) error {
	return &ActionExecutionError{Type: t, Err: fmt.Errorf(format, args...)}
}
