package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/shared/tracing"
)

// recordTimeout bounds the write of a terminal execution record
const recordTimeout = 5 * time.Second

// RuleStore loads workflow definitions
type RuleStore interface {
	// FindActiveRulesForEvent returns the tenant's active rules whose trigger event matches
	FindActiveRulesForEvent(ctx context.Context, tenantID, event string) ([]Rule, error)
}

// ExecutionRecorder persists the audit trail of rule firings
type ExecutionRecorder interface {
	CreateExecution(ctx context.Context, tenantID, workflowID, entityType, entityID string) (ExecutionHandle, error)
	CompleteExecution(ctx context.Context, handle ExecutionHandle, results []ActionResult) error
	// FailExecution records the error together with the results of the actions that ran before it
	FailExecution(ctx context.Context, handle ExecutionHandle, results []ActionResult, message string) error
}

// Executor runs a single action
type Executor interface {
	Execute(ctx context.Context, action Action, event Event) (ActionResult, error)
}

// Publisher broadcasts terminal outcomes to interested listeners
type Publisher interface {
	PublishOutcome(ctx context.Context, event Event, outcome Outcome) error
}

// Engine matches domain events against tenant rules and runs their actions
type Engine struct {
	rules     RuleStore
	recorder  ExecutionRecorder
	executor  Executor
	publisher Publisher
	metrics   *Metrics
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithPublisher publishes every terminal outcome
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics records engine metrics
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithLogger overrides the component logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a workflow engine
func NewEngine(rules RuleStore, recorder ExecutionRecorder, executor Executor, opts ...Option) *Engine {
	e := &Engine{
		rules:    rules,
		recorder: recorder,
		executor: executor,
		tracer:   tracing.Tracer("crm/workflow"),
		logger:   log.With().Str("component", "workflow.engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TriggerWorkflows runs every active rule of the tenant matching the event.
// It never fails and never panics: errors are logged and left in the execution records.
func (e *Engine) TriggerWorkflows(ctx context.Context, event, entity string, payload Payload, tenantID string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("event", event).
				Str("tenant_id", tenantID).
				Msg("workflow engine panicked")
		}
	}()

	ev := Event{Name: event, Entity: entity, TenantID: tenantID, Payload: payload}
	if _, err := e.Run(ctx, ev); err != nil {
		e.logger.Error().
			Err(err).
			Str("event", event).
			Str("entity", entity).
			Str("tenant_id", tenantID).
			Msg("failed to trigger workflows")
	}
}

// Run processes one event synchronously and returns an outcome per applicable rule.
// Only a failed rule lookup or an invalid event is returned as an error; rule
// failures are reported in the outcomes.
func (e *Engine) Run(ctx context.Context, event Event) ([]Outcome, error) {
	if event.TenantID == "" {
		return nil, errors.New("event has no tenant")
	}
	if event.Name == "" {
		return nil, errors.New("event has no name")
	}

	ctx, span := tracing.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(tracing.TenantIDKey, event.TenantID),
		attribute.String(tracing.EventKey, event.Name),
		attribute.String(tracing.EntityKey, event.Entity),
		attribute.String(tracing.EntityIDKey, event.EntityID()),
	)
	defer span.End()

	e.metrics.observeEvent(event.Name)

	rules, err := e.rules.FindActiveRulesForEvent(ctx, event.TenantID, event.Name)
	if err != nil {
		var storeErr *RuleStoreError
		if !errors.As(err, &storeErr) {
			err = &RuleStoreError{Op: "find active rules", Err: err}
		}
		tracing.SetError(span, err)
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(rules))
	for _, rule := range rules {
		if !applies(rule, event) {
			e.logger.Warn().
				Str("workflow_id", rule.ID).
				Str("event", event.Name).
				Str("entity", event.Entity).
				Msg("skipping rule that does not apply to event")
			continue
		}
		outcomes = append(outcomes, e.Execute(ctx, rule, event))
	}

	span.SetAttributes(attribute.Int("crm.workflow.count", len(outcomes)))
	return outcomes, nil
}

// applies re-checks what the rule store is expected to have filtered already
func applies(rule Rule, event Event) bool {
	return rule.IsActive &&
		rule.TenantID == event.TenantID &&
		rule.Trigger.Event == event.Name &&
		rule.Trigger.Entity == event.Entity
}

// Execute evaluates one rule against the event and, when it matches, runs its
// actions in order under a pending execution record.
// The rule's active flag is not consulted.
func (e *Engine) Execute(ctx context.Context, rule Rule, event Event) (outcome Outcome) {
	outcome = Outcome{WorkflowID: rule.ID, WorkflowName: rule.Name}

	ctx, span := tracing.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(tracing.TenantIDKey, event.TenantID),
		attribute.String(tracing.WorkflowIDKey, rule.ID),
		attribute.String(tracing.WorkflowNameKey, rule.Name),
		attribute.String(tracing.EventKey, event.Name),
	)
	defer span.End()

	logger := e.logger.With().
		Str("workflow_id", rule.ID).
		Str("tenant_id", event.TenantID).
		Str("event", event.Name).
		Str("entity_id", event.EntityID()).
		Logger()

	if err := ValidateConditions(rule.Conditions); err != nil {
		logger.Warn().Err(err).Msg("workflow has malformed conditions")
		outcome.Error = err.Error()
		tracing.SetError(span, err)
		return outcome
	}
	if !Evaluate(rule.Conditions, event.Payload) {
		logger.Debug().Msg("conditions not met")
		return outcome
	}
	outcome.Matched = true

	handle, err := e.recorder.CreateExecution(ctx, event.TenantID, rule.ID, event.Entity, event.EntityID())
	if err != nil {
		err = &RuleStoreError{Op: "create execution", Err: err}
		logger.Error().Err(err).Msg("failed to create execution record, actions not run")
		tracing.SetError(span, err)
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		outcome.RecordError = err.Error()
		e.metrics.observeExecution(event.Name, StatusFailed)
		return outcome
	}
	outcome.ExecutionID = handle.ID
	span.SetAttributes(attribute.String(tracing.ExecutionIDKey, handle.ID))

	results, runErr := e.runActions(ctx, rule, event)
	outcome.Results = results

	// The terminal write outlives a cancelled job so the record never stays pending.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	var recordErr error
	if runErr != nil {
		outcome.Status = StatusFailed
		outcome.Error = runErr.Error()
		tracing.SetError(span, runErr)
		logger.Warn().Err(runErr).Int("completed_actions", len(results)).Msg("workflow execution failed")
		recordErr = e.recorder.FailExecution(recordCtx, handle, results, runErr.Error())
	} else {
		outcome.Status = StatusCompleted
		logger.Info().Int("actions", len(results)).Msg("workflow execution completed")
		recordErr = e.recorder.CompleteExecution(recordCtx, handle, results)
	}

	if recordErr != nil {
		recordErr = &RuleStoreError{Op: "record execution", Err: recordErr}
		outcome.RecordError = recordErr.Error()
		logger.Error().
			Err(recordErr).
			Str("execution_id", handle.ID).
			Str("status", string(outcome.Status)).
			Interface("results", results).
			Msg("failed to persist execution result")
	}

	e.metrics.observeExecution(event.Name, outcome.Status)
	e.publish(ctx, event, outcome, logger)
	return outcome
}

// runActions stops at the first failing action and returns the results gathered before it
func (e *Engine) runActions(ctx context.Context, rule Rule, event Event) ([]ActionResult, error) {
	results := make([]ActionResult, 0, len(rule.Actions))
	for i, action := range rule.Actions {
		actx, span := tracing.StartSpan(ctx, e.tracer, "workflow.action",
			attribute.String(tracing.ActionTypeKey, string(action.Type)),
			attribute.Int(tracing.ActionIndexKey, i),
		)
		start := time.Now()
		result, err := e.safeExecute(actx, action, event)
		e.metrics.observeAction(action.Type, err, time.Since(start))
		if err != nil {
			tracing.SetError(span, err)
			span.End()
			return results, err
		}
		span.End()
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) safeExecute(ctx context.Context, action Action, event Event) (result ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ActionExecutionError{Type: action.Type, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return e.executor.Execute(ctx, action, event)
}

func (e *Engine) publish(ctx context.Context, event Event, outcome Outcome, logger zerolog.Logger) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishOutcome(ctx, event, outcome); err != nil {
		logger.Warn().Err(err).Msg("failed to publish workflow outcome")
	}
}

// Plan evaluates the rule and parses its actions without side effects or records
func (e *Engine) Plan(rule Rule, event Event) Outcome {
	outcome := Outcome{WorkflowID: rule.ID, WorkflowName: rule.Name, DryRun: true}

	if err := ValidateConditions(rule.Conditions); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if !Evaluate(rule.Conditions, event.Payload) {
		return outcome
	}
	outcome.Matched = true

	for _, action := range rule.Actions {
		step, err := ParseAction(action, event.Payload)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Results = append(outcome.Results, ActionResult{
			Type:    step.Type(),
			Status:  "planned",
			Details: describeStep(step),
		})
	}
	outcome.Status = StatusCompleted
	return outcome
}
