package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRuleStore struct {
	rules []Rule
	err   error
	calls []string
}

func (s *memoryRuleStore) FindActiveRulesForEvent(ctx context.Context, tenantID, event string) ([]Rule, error) {
	s.calls = append(s.calls, tenantID)
	if s.err != nil {
		return nil, s.err
	}
	var out []Rule
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.IsActive && r.Trigger.Event == event {
			out = append(out, r)
		}
	}
	return out, nil
}

type executionRecord struct {
	handle     ExecutionHandle
	workflowID string
	entityType string
	entityID   string
	status     ExecutionStatus
	results    []ActionResult
	err        string
	terminated int
}

type memoryRecorder struct {
	mu        sync.Mutex
	records   []*executionRecord
	createErr error
	recordErr error
	nextID    int
}

func (r *memoryRecorder) CreateExecution(ctx context.Context, tenantID, workflowID, entityType, entityID string) (ExecutionHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return ExecutionHandle{}, r.createErr
	}
	r.nextID++
	h := ExecutionHandle{ID: fmt.Sprintf("exec-%d", r.nextID), TenantID: tenantID}
	r.records = append(r.records, &executionRecord{
		handle: h, workflowID: workflowID, entityType: entityType, entityID: entityID, status: StatusPending,
	})
	return h, nil
}

func (r *memoryRecorder) find(h ExecutionHandle) *executionRecord {
	for _, rec := range r.records {
		if rec.handle.ID == h.ID {
			return rec
		}
	}
	return nil
}

func (r *memoryRecorder) CompleteExecution(ctx context.Context, h ExecutionHandle, results []ActionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	rec := r.find(h)
	rec.status = StatusCompleted
	rec.results = results
	rec.terminated++
	return nil
}

func (r *memoryRecorder) FailExecution(ctx context.Context, h ExecutionHandle, results []ActionResult, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	rec := r.find(h)
	rec.status = StatusFailed
	rec.results = results
	rec.err = message
	rec.terminated++
	return nil
}

// scriptedExecutor fails or panics on configured action types and records the call order
type scriptedExecutor struct {
	calls   []string
	failOn  map[ActionType]error
	panicOn ActionType
}

func (e *scriptedExecutor) Execute(ctx context.Context, action Action, event Event) (ActionResult, error) {
	name, _ := action.Params["name"].(string)
	e.calls = append(e.calls, name)
	if action.Type == e.panicOn && action.Type != "" {
		panic("executor exploded")
	}
	if err, ok := e.failOn[action.Type]; ok {
		return ActionResult{}, err
	}
	if _, err := ParseAction(action, event.Payload); err != nil {
		var unsupported *UnsupportedActionError
		if errors.As(err, &unsupported) {
			return ActionResult{}, err
		}
	}
	return ActionResult{Type: action.Type, Status: "ok", Details: map[string]interface{}{"name": name}}, nil
}

type recordingPublisher struct {
	outcomes []Outcome
}

func (p *recordingPublisher) PublishOutcome(ctx context.Context, event Event, outcome Outcome) error {
	p.outcomes = append(p.outcomes, outcome)
	return nil
}

func companyRule(id, tenant string) Rule {
	return Rule{
		ID:       id,
		TenantID: tenant,
		Name:     "New company contact",
		Trigger:  Trigger{Event: "contact_created", Entity: "contact"},
		Conditions: []Condition{
			{Field: "company", Operator: OperatorNotEquals, Value: nil},
		},
		Actions: []Action{
			{Type: ActionCreateTask, Params: map[string]interface{}{
				"subject":    "Follow up with new company contact",
				"assignedTo": "user-1",
			}},
		},
		IsActive: true,
	}
}

type countingTaskCreator struct {
	mu    sync.Mutex
	tasks []NewTask
}

func (c *countingTaskCreator) CreateTask(ctx context.Context, task NewTask) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	return fmt.Sprintf("task-%d", len(c.tasks)), nil
}

func TestEngine_ContactCreatedScenario(t *testing.T) {
	store := &memoryRuleStore{rules: []Rule{companyRule("wf-1", "t1")}}
	recorder := &memoryRecorder{}
	tasks := &countingTaskCreator{}
	engine := NewEngine(store, recorder, NewActionExecutor(ActionDeps{Tasks: tasks}))

	engine.TriggerWorkflows(context.Background(), "contact_created", "contact", Payload{"id": "c1", "company": "Acme"}, "t1")

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, StatusCompleted, rec.status)
	assert.Equal(t, "wf-1", rec.workflowID)
	assert.Equal(t, "contact", rec.entityType)
	assert.Equal(t, "c1", rec.entityID)
	require.Len(t, rec.results, 1)
	assert.Equal(t, "created", rec.results[0].Status)

	require.Len(t, tasks.tasks, 1)
	assert.Equal(t, "Follow up with new company contact", tasks.tasks[0].Subject)
	assert.Equal(t, "contact", tasks.tasks[0].RelatedEntityType)
	assert.Equal(t, "c1", tasks.tasks[0].RelatedEntityID)
}

func TestEngine_ConditionMismatchCreatesNoRecord(t *testing.T) {
	store := &memoryRuleStore{rules: []Rule{companyRule("wf-1", "t1")}}
	recorder := &memoryRecorder{}
	tasks := &countingTaskCreator{}
	engine := NewEngine(store, recorder, NewActionExecutor(ActionDeps{Tasks: tasks}))

	outcomes, err := engine.Run(context.Background(), Event{
		Name: "contact_created", Entity: "contact", TenantID: "t1",
		Payload: Payload{"id": "c2", "company": nil},
	})

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Matched)
	assert.Empty(t, outcomes[0].ExecutionID)
	assert.Empty(t, recorder.records)
	assert.Empty(t, tasks.tasks)
}

func TestEngine_UnsupportedActionFailsExecution(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	rule.Conditions = nil
	rule.Actions = []Action{{Type: "bogus_action", Params: map[string]interface{}{}}}

	recorder := &memoryRecorder{}
	engine := NewEngine(&memoryRuleStore{rules: []Rule{rule}}, recorder, NewActionExecutor(ActionDeps{}))

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1"}))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "bogus_action")

	require.Len(t, recorder.records, 1)
	assert.Equal(t, StatusFailed, recorder.records[0].status)
	assert.Contains(t, recorder.records[0].err, "bogus_action")
	assert.Empty(t, recorder.records[0].results)
}

func TestEngine_FailureStopsRemainingActions(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	rule.Conditions = nil
	rule.Actions = []Action{
		{Type: ActionSendEmail, Params: map[string]interface{}{"name": "A"}},
		{Type: ActionSendSMS, Params: map[string]interface{}{"name": "B"}},
		{Type: ActionCallWebhook, Params: map[string]interface{}{"name": "C"}},
	}

	executor := &scriptedExecutor{failOn: map[ActionType]error{
		ActionSendSMS: &ActionExecutionError{Type: ActionSendSMS, Err: errors.New("sms down")},
	}}
	recorder := &memoryRecorder{}
	engine := NewEngine(&memoryRuleStore{rules: []Rule{rule}}, recorder, executor)

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, executor.calls)
	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, StatusFailed, rec.status)
	assert.Contains(t, rec.err, "sms down")
	require.Len(t, rec.results, 1)
	assert.Equal(t, "A", rec.results[0].Details["name"])
	assert.Equal(t, 1, rec.terminated)
	assert.Equal(t, outcomes[0].Results, rec.results)
}

func TestEngine_RuleFailureDoesNotBlockOtherRules(t *testing.T) {
	failing := companyRule("wf-1", "t1")
	failing.Conditions = nil
	failing.Actions = []Action{{Type: ActionSendSMS, Params: map[string]interface{}{"name": "fail"}}}

	healthy := companyRule("wf-2", "t1")
	healthy.Conditions = nil
	healthy.Actions = []Action{{Type: ActionSendEmail, Params: map[string]interface{}{"name": "ok"}}}

	executor := &scriptedExecutor{failOn: map[ActionType]error{ActionSendSMS: errors.New("down")}}
	recorder := &memoryRecorder{}
	engine := NewEngine(&memoryRuleStore{rules: []Rule{failing, healthy}}, recorder, executor)

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1"}))
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, StatusCompleted, outcomes[1].Status)

	require.Len(t, recorder.records, 2)
	assert.Equal(t, StatusFailed, recorder.records[0].status)
	assert.Equal(t, StatusCompleted, recorder.records[1].status)
}

func TestEngine_PanickingExecutorFailsOnlyThatRule(t *testing.T) {
	exploding := companyRule("wf-1", "t1")
	exploding.Conditions = nil
	exploding.Actions = []Action{{Type: ActionCallWebhook, Params: map[string]interface{}{"name": "x"}}}

	healthy := companyRule("wf-2", "t1")
	healthy.Conditions = nil
	healthy.Actions = []Action{{Type: ActionSendEmail, Params: map[string]interface{}{"name": "ok"}}}

	recorder := &memoryRecorder{}
	engine := NewEngine(&memoryRuleStore{rules: []Rule{exploding, healthy}}, recorder, &scriptedExecutor{panicOn: ActionCallWebhook})

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1"}))
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "executor exploded")
	assert.Equal(t, StatusCompleted, outcomes[1].Status)
}

func TestEngine_TenantIsolation(t *testing.T) {
	store := &memoryRuleStore{rules: []Rule{companyRule("wf-x", "tenant-x"), companyRule("wf-y", "tenant-y")}}
	recorder := &memoryRecorder{}
	tasks := &countingTaskCreator{}
	engine := NewEngine(store, recorder, NewActionExecutor(ActionDeps{Tasks: tasks}))

	engine.TriggerWorkflows(context.Background(), "contact_created", "contact", Payload{"id": "c1", "company": "Acme"}, "tenant-x")

	assert.Equal(t, []string{"tenant-x"}, store.calls)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, "wf-x", recorder.records[0].workflowID)
	require.Len(t, tasks.tasks, 1)
	assert.Equal(t, "tenant-x", tasks.tasks[0].TenantID)
}

// leakyRuleStore returns stale rows the query should have filtered out
type leakyRuleStore struct {
	rules []Rule
}

func (s *leakyRuleStore) FindActiveRulesForEvent(ctx context.Context, tenantID, event string) ([]Rule, error) {
	return s.rules, nil
}

func TestEngine_DefensivelyRechecksRules(t *testing.T) {
	otherTenant := companyRule("wf-tenant", "t2")
	inactive := companyRule("wf-inactive", "t1")
	inactive.IsActive = false
	otherEntity := companyRule("wf-entity", "t1")
	otherEntity.Trigger.Entity = "lead"
	otherEvent := companyRule("wf-event", "t1")
	otherEvent.Trigger.Event = "contact_updated"
	valid := companyRule("wf-valid", "t1")

	recorder := &memoryRecorder{}
	engine := NewEngine(&leakyRuleStore{rules: []Rule{otherTenant, inactive, otherEntity, otherEvent, valid}},
		recorder, NewActionExecutor(ActionDeps{Tasks: &countingTaskCreator{}}))

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1", "company": "Acme"}))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "wf-valid", outcomes[0].WorkflowID)
	require.Len(t, recorder.records, 1)
}

func TestEngine_IdenticalEventsProduceIndependentExecutions(t *testing.T) {
	store := &memoryRuleStore{rules: []Rule{companyRule("wf-1", "t1")}}
	recorder := &memoryRecorder{}
	engine := NewEngine(store, recorder, NewActionExecutor(ActionDeps{Tasks: &countingTaskCreator{}}))

	payload := Payload{"id": "c1", "company": "Acme"}
	engine.TriggerWorkflows(context.Background(), "contact_created", "contact", payload, "t1")
	engine.TriggerWorkflows(context.Background(), "contact_created", "contact", payload, "t1")

	require.Len(t, recorder.records, 2)
	assert.NotEqual(t, recorder.records[0].handle.ID, recorder.records[1].handle.ID)
	assert.Equal(t, recorder.records[0].status, recorder.records[1].status)
	assert.Equal(t, len(recorder.records[0].results), len(recorder.records[1].results))
	assert.Equal(t, recorder.records[0].results[0].Status, recorder.records[1].results[0].Status)
}

func TestEngine_RuleStoreFailure(t *testing.T) {
	store := &memoryRuleStore{err: errors.New("connection refused")}
	recorder := &memoryRecorder{}
	engine := NewEngine(store, recorder, &scriptedExecutor{})

	_, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1"}))
	var storeErr *RuleStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Contains(t, err.Error(), "connection refused")

	assert.NotPanics(t, func() {
		engine.TriggerWorkflows(context.Background(), "contact_created", "contact", Payload{"id": "c1"}, "t1")
	})
	assert.Empty(t, recorder.records)
}

func TestEngine_CreateExecutionFailureSkipsActions(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	recorder := &memoryRecorder{createErr: errors.New("disk full")}
	executor := &scriptedExecutor{}
	engine := NewEngine(&memoryRuleStore{rules: []Rule{rule}}, recorder, executor)

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1", "company": "Acme"}))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].RecordError, "disk full")
	assert.Empty(t, executor.calls)
}

func TestEngine_RecordWriteFailureKeepsResults(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	rule.Conditions = nil
	rule.Actions = []Action{{Type: ActionSendEmail, Params: map[string]interface{}{"name": "A"}}}

	recorder := &memoryRecorder{recordErr: errors.New("write timeout")}
	executor := &scriptedExecutor{}
	engine := NewEngine(&memoryRuleStore{rules: []Rule{rule}}, recorder, executor)

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1"}))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusCompleted, outcomes[0].Status)
	assert.Len(t, outcomes[0].Results, 1)
	assert.Contains(t, outcomes[0].RecordError, "write timeout")
	assert.Equal(t, []string{"A"}, executor.calls)
}

func TestEngine_MalformedConditionsNeverMatch(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	rule.Conditions = []Condition{{Field: "", Operator: OperatorEquals, Value: "x"}}

	recorder := &memoryRecorder{}
	executor := &scriptedExecutor{}
	engine := NewEngine(&memoryRuleStore{rules: []Rule{rule}}, recorder, executor)

	outcomes, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1", "": "x"}))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Matched)
	assert.Contains(t, outcomes[0].Error, "malformed")
	assert.Empty(t, recorder.records)
	assert.Empty(t, executor.calls)
}

func TestEngine_InvalidEvent(t *testing.T) {
	engine := NewEngine(&memoryRuleStore{}, &memoryRecorder{}, &scriptedExecutor{})

	_, err := engine.Run(context.Background(), Event{Name: "contact_created", Entity: "contact"})
	require.Error(t, err)

	_, err = engine.Run(context.Background(), Event{TenantID: "t1", Entity: "contact"})
	require.Error(t, err)
}

func TestEngine_PublishesAndCountsOutcomes(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	publisher := &recordingPublisher{}
	metrics := NewMetrics(prometheus.NewRegistry())
	engine := NewEngine(&memoryRuleStore{rules: []Rule{rule}}, &memoryRecorder{},
		NewActionExecutor(ActionDeps{Tasks: &countingTaskCreator{}}),
		WithPublisher(publisher), WithMetrics(metrics))

	_, err := engine.Run(context.Background(), contactEvent(Payload{"id": "c1", "company": "Acme"}))
	require.NoError(t, err)

	require.Len(t, publisher.outcomes, 1)
	assert.Equal(t, StatusCompleted, publisher.outcomes[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.eventsTotal.WithLabelValues("contact_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.executionsTotal.WithLabelValues("contact_created", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.actionsTotal.WithLabelValues("create_task", "ok")))
}

func TestEngine_ExecuteIgnoresActiveFlag(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	rule.IsActive = false
	recorder := &memoryRecorder{}
	engine := NewEngine(&memoryRuleStore{}, recorder, NewActionExecutor(ActionDeps{Tasks: &countingTaskCreator{}}))

	outcome := engine.Execute(context.Background(), rule, contactEvent(Payload{"id": "c1", "company": "Acme"}))
	assert.True(t, outcome.Matched)
	assert.Equal(t, StatusCompleted, outcome.Status)
	assert.Len(t, recorder.records, 1)
}

func TestEngine_PlanHasNoSideEffects(t *testing.T) {
	rule := companyRule("wf-1", "t1")
	rule.Actions = append(rule.Actions, Action{Type: ActionSendEmail, Params: map[string]interface{}{"to": "{email}"}})

	recorder := &memoryRecorder{}
	executor := &scriptedExecutor{}
	engine := NewEngine(&memoryRuleStore{}, recorder, executor)

	outcome := engine.Plan(rule, contactEvent(Payload{"id": "c1", "company": "Acme", "email": "jo@acme.com"}))
	assert.True(t, outcome.DryRun)
	assert.True(t, outcome.Matched)
	assert.Equal(t, StatusCompleted, outcome.Status)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "planned", outcome.Results[1].Status)
	assert.Equal(t, "jo@acme.com", outcome.Results[1].Details["to"])
	assert.Empty(t, recorder.records)
	assert.Empty(t, executor.calls)

	rule.Actions = []Action{{Type: "create_ticket"}}
	outcome = engine.Plan(rule, contactEvent(Payload{"id": "c1", "company": "Acme"}))
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "create_ticket")

	outcome = engine.Plan(rule, contactEvent(Payload{"id": "c1"}))
	assert.False(t, outcome.Matched)
	assert.Empty(t, outcome.Status)
}

// ctxCheckingRecorder remembers whether the terminal write saw a live context
type ctxCheckingRecorder struct {
	memoryRecorder
	terminalCtxErr error
}

func (r *ctxCheckingRecorder) CompleteExecution(ctx context.Context, h ExecutionHandle, results []ActionResult) error {
	r.terminalCtxErr = ctx.Err()
	return r.memoryRecorder.CompleteExecution(ctx, h, results)
}

func (r *ctxCheckingRecorder) FailExecution(ctx context.Context, h ExecutionHandle, results []ActionResult, message string) error {
	r.terminalCtxErr = ctx.Err()
	return r.memoryRecorder.FailExecution(ctx, h, results, message)
}

// cancellingExecutor cancels the run context while its action executes
type cancellingExecutor struct {
	cancel context.CancelFunc
	err    error
}

func (e *cancellingExecutor) Execute(ctx context.Context, action Action, event Event) (ActionResult, error) {
	e.cancel()
	if e.err != nil {
		return ActionResult{}, e.err
	}
	return ActionResult{Type: action.Type, Status: "sent"}, nil
}

func TestEngine_CancelledContextStillFinishesRecord(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ExecutionStatus
	}{
		{"completed", nil, StatusCompleted},
		{"failed", errors.New("provider down"), StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := companyRule("wf-1", "t1")
			rule.Conditions = nil
			rule.Actions = []Action{{Type: ActionSendEmail, Params: map[string]interface{}{"to": "a@b.c"}}}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			recorder := &ctxCheckingRecorder{}
			engine := NewEngine(&memoryRuleStore{rules: []Rule{rule}}, recorder, &cancellingExecutor{cancel: cancel, err: tt.err})

			outcome := engine.Execute(ctx, rule, contactEvent(Payload{"id": "c1"}))

			require.Error(t, ctx.Err())
			assert.NoError(t, recorder.terminalCtxErr)
			assert.Empty(t, outcome.RecordError)
			require.Len(t, recorder.records, 1)
			assert.Equal(t, tt.expected, recorder.records[0].status)
			assert.Equal(t, 1, recorder.records[0].terminated)
		})
	}
}
