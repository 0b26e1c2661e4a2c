package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/jobs"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, tenantID string, jobType string, payload interface{}, opts ...jobs.EnqueueOptions) (*jobs.Job, error) {
	args := m.Called(ctx, tenantID, jobType, payload, opts)
	job, _ := args.Get(0).(*jobs.Job)
	return job, args.Error(1)
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, event Event) ([]Outcome, error) {
	args := m.Called(ctx, event)
	outcomes, _ := args.Get(0).([]Outcome)
	return outcomes, args.Error(1)
}

func TestDispatcher_EnqueuesTriggerJob(t *testing.T) {
	event := contactEvent(Payload{"id": "c1"})
	jobID := uuid.New()

	enqueuer := new(mockEnqueuer)
	enqueuer.On("Enqueue", mock.Anything, "t1", TriggerJobType, event, mock.MatchedBy(func(opts []jobs.EnqueueOptions) bool {
		return len(opts) == 1 && opts[0].Queue == TriggerQueue
	})).Return(&jobs.Job{ID: jobID}, nil).Once()

	id, err := NewDispatcher(enqueuer).Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, jobID.String(), id)
	enqueuer.AssertExpectations(t)
}

func TestDispatcher_RejectsIncompleteEvents(t *testing.T) {
	dispatcher := NewDispatcher(new(mockEnqueuer))

	_, err := dispatcher.Dispatch(context.Background(), Event{Name: "contact_created", Entity: "contact"})
	require.Error(t, err)

	_, err = dispatcher.Dispatch(context.Background(), Event{TenantID: "t1", Name: "contact_created"})
	require.Error(t, err)
}

func triggerJob(t *testing.T, tenantID string, event Event) *jobs.Job {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return &jobs.Job{ID: uuid.New(), TenantID: tenantID, Type: TriggerJobType, Payload: payload}
}

func TestTriggerJobHandler_RunsEvent(t *testing.T) {
	event := contactEvent(Payload{"id": "c1", "score": 10.0})

	runner := new(mockRunner)
	runner.On("Run", mock.Anything, event).Return([]Outcome{}, nil).Once()

	handler := NewTriggerJobHandler(runner)
	assert.Equal(t, TriggerJobType, handler.GetType())
	require.NoError(t, handler.Handle(context.Background(), triggerJob(t, "t1", event)))
	runner.AssertExpectations(t)
}

func TestTriggerJobHandler_RetriesOnlyRuleStoreFailures(t *testing.T) {
	event := contactEvent(Payload{"id": "c1"})

	runner := new(mockRunner)
	runner.On("Run", mock.Anything, event).Return(nil, &RuleStoreError{Op: "find active rules", Err: errors.New("down")}).Once()
	err := NewTriggerJobHandler(runner).Handle(context.Background(), triggerJob(t, "t1", event))
	require.Error(t, err)
	assert.False(t, jobs.IsPermanent(err))

	runner = new(mockRunner)
	runner.On("Run", mock.Anything, event).Return(nil, errors.New("event has no name")).Once()
	err = NewTriggerJobHandler(runner).Handle(context.Background(), triggerJob(t, "t1", event))
	assert.True(t, jobs.IsPermanent(err))
}

func TestTriggerJobHandler_RejectsBadPayloads(t *testing.T) {
	handler := NewTriggerJobHandler(new(mockRunner))

	err := handler.Handle(context.Background(), &jobs.Job{TenantID: "t1", Payload: []byte("{not json")})
	assert.True(t, jobs.IsPermanent(err))

	err = handler.Handle(context.Background(), triggerJob(t, "t2", contactEvent(Payload{"id": "c1"})))
	assert.True(t, jobs.IsPermanent(err))
}
