package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultActionTimeout bounds a single action when no timeout is configured
const DefaultActionTimeout = 30 * time.Second

// NewTask is the task an automation asks the CRM to create
type NewTask struct {
	TenantID          string
	Subject           string
	AssignedTo        string
	Notes             string
	DueAt             *time.Time
	RelatedEntityType string
	RelatedEntityID   string
}

// TaskCreator persists tasks
type TaskCreator interface {
	CreateTask(ctx context.Context, task NewTask) (string, error)
}

// EmailSender sends transactional email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender sends text messages
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// FieldUpdater sets one column on a CRM entity instance
type FieldUpdater interface {
	UpdateField(ctx context.Context, tenantID, entity, entityID, field string, value interface{}) error
}

// HTTPDoer is satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ActionDeps are the collaborators an ActionExecutor calls into
type ActionDeps struct {
	Tasks   TaskCreator
	Email   EmailSender
	SMS     SMSSender
	Fields  FieldUpdater
	HTTP    HTTPDoer
	Timeout time.Duration
}

// ActionExecutor executes workflow actions
type ActionExecutor struct {
	tasks   TaskCreator
	email   EmailSender
	sms     SMSSender
	fields  FieldUpdater
	http    HTTPDoer
	timeout time.Duration
	logger  zerolog.Logger
}

// NewActionExecutor creates a new action executor
func NewActionExecutor(deps ActionDeps) *ActionExecutor {
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{}
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultActionTimeout
	}
	return &ActionExecutor{
		tasks:   deps.Tasks,
		email:   deps.Email,
		sms:     deps.SMS,
		fields:  deps.Fields,
		http:    deps.HTTP,
		timeout: deps.Timeout,
		logger:  log.With().Str("component", "workflow.executor").Logger(),
	}
}

type stepResult struct {
	result ActionResult
	err    error
}

// Execute performs one action for the event.
// Invalid params and collaborator failures are returned as *ActionExecutionError;
// an unknown type as *UnsupportedActionError.
func (e *ActionExecutor) Execute(ctx context.Context, action Action, event Event) (ActionResult, error) {
	step, err := ParseAction(action, event.Payload)
	if err != nil {
		return ActionResult{}, err
	}

	e.logger.Debug().
		Str("action", string(step.Type())).
		Str("tenant_id", event.TenantID).
		Str("entity_id", event.EntityID()).
		Msg("executing action")

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan stepResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepResult{err: actionErr(step.Type(), "panic: %v", r)}
			}
		}()
		result, err := e.run(ctx, step, event)
		done <- stepResult{result: result, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return ActionResult{}, asActionError(step.Type(), r.err)
		}
		return r.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ActionResult{}, &ActionExecutionError{Type: step.Type(), Err: ErrActionTimeout}
		}
		return ActionResult{}, &ActionExecutionError{Type: step.Type(), Err: ctx.Err()}
	}
}

func (e *ActionExecutor) run(ctx context.Context, step Step, event Event) (ActionResult, error) {
	switch s := step.(type) {
	case CreateTaskStep:
		return e.executeCreateTask(ctx, s, event)
	case SendEmailStep:
		return e.executeSendEmail(ctx, s)
	case SendSMSStep:
		return e.executeSendSMS(ctx, s)
	case UpdateFieldStep:
		return e.executeUpdateField(ctx, s, event)
	case UpdateLeadScoreStep:
		return e.executeUpdateLeadScore(ctx, s, event)
	case CallWebhookStep:
		return e.executeCallWebhook(ctx, s, event)
	default:
		return ActionResult{}, &UnsupportedActionError{Type: step.Type()}
	}
}

func (e *ActionExecutor) executeCreateTask(ctx context.Context, step CreateTaskStep, event Event) (ActionResult, error) {
	if e.tasks == nil {
		return ActionResult{}, actionErr(step.Type(), "no task creator configured")
	}

	taskID, err := e.tasks.CreateTask(ctx, NewTask{
		TenantID:          event.TenantID,
		Subject:           step.Subject,
		AssignedTo:        step.AssignedTo,
		Notes:             step.Notes,
		DueAt:             step.DueAt,
		RelatedEntityType: event.Entity,
		RelatedEntityID:   event.EntityID(),
	})
	if err != nil {
		return ActionResult{}, err
	}

	return ActionResult{
		Type:   step.Type(),
		Status: "created",
		Details: map[string]interface{}{
			"task_id":     taskID,
			"subject":     step.Subject,
			"assigned_to": step.AssignedTo,
		},
	}, nil
}

func (e *ActionExecutor) executeSendEmail(ctx context.Context, step SendEmailStep) (ActionResult, error) {
	if e.email == nil {
		return ActionResult{}, actionErr(step.Type(), "no email provider configured")
	}
	if err := e.email.SendEmail(ctx, step.To, step.Subject, step.Content); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Type: step.Type(), Status: "sent", Details: map[string]interface{}{"to": step.To}}, nil
}

func (e *ActionExecutor) executeSendSMS(ctx context.Context, step SendSMSStep) (ActionResult, error) {
	if e.sms == nil {
		return ActionResult{}, actionErr(step.Type(), "no sms provider configured")
	}
	if err := e.sms.SendSMS(ctx, step.To, step.Message); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Type: step.Type(), Status: "sent", Details: map[string]interface{}{"to": step.To}}, nil
}

func (e *ActionExecutor) executeUpdateField(ctx context.Context, step UpdateFieldStep, event Event) (ActionResult, error) {
	if err := e.updateEntity(ctx, step.Type(), event, step.Field, step.Value); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{
		Type:   step.Type(),
		Status: "updated",
		Details: map[string]interface{}{
			"entity":    event.Entity,
			"entity_id": event.EntityID(),
			"field":     step.Field,
			"value":     step.Value,
		},
	}, nil
}

func (e *ActionExecutor) executeUpdateLeadScore(ctx context.Context, step UpdateLeadScoreStep, event Event) (ActionResult, error) {
	if event.Entity != "lead" {
		return ActionResult{}, actionErr(step.Type(), "entity %q is not a lead", event.Entity)
	}
	if err := e.updateEntity(ctx, step.Type(), event, "score", step.Score); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{
		Type:    step.Type(),
		Status:  "updated",
		Details: map[string]interface{}{"entity_id": event.EntityID(), "score": step.Score},
	}, nil
}

func (e *ActionExecutor) updateEntity(ctx context.Context, t ActionType, event Event, field string, value interface{}) error {
	if e.fields == nil {
		return actionErr(t, "no field updater configured")
	}
	entityID := event.EntityID()
	if entityID == "" {
		return actionErr(t, "event payload has no id")
	}
	return e.fields.UpdateField(ctx, event.TenantID, event.Entity, entityID, field, value)
}

const maxWebhookErrorBody = 1024

func (e *ActionExecutor) executeCallWebhook(ctx context.Context, step CallWebhookStep, event Event) (ActionResult, error) {
	body := step.Body
	if body == nil {
		body = event
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return ActionResult{}, fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, step.Method, step.URL, bytes.NewReader(bodyBytes))
	if err != nil {
		return ActionResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range step.Headers {
		req.Header.Set(key, value)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return ActionResult{}, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookErrorBody))
		return ActionResult{}, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return ActionResult{
		Type:   step.Type(),
		Status: "called",
		Details: map[string]interface{}{
			"url":         step.URL,
			"method":      step.Method,
			"status_code": resp.StatusCode,
		},
	}, nil
}

// asActionError keeps typed engine errors and wraps anything else
func asActionError(t ActionType, err error) error {
	var execErr *ActionExecutionError
	var unsupported *UnsupportedActionError
	if errors.As(err, &execErr) || errors.As(err, &unsupported) {
		return err
	}
	return &ActionExecutionError{Type: t, Err: err}
}
