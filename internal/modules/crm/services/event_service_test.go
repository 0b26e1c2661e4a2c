package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, event workflow.Event) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

func TestEventService_Publish(t *testing.T) {
	ctx := context.Background()
	dispatcher := &mockDispatcher{}
	dispatcher.On("Dispatch", ctx, workflow.Event{
		Name:     "lead_created",
		Entity:   "lead",
		TenantID: "tenant-a",
		Payload:  workflow.Payload{"id": "lead-1", "source": "web"},
	}).Return("job-1", nil)

	jobID, err := NewEventService(dispatcher).Publish(ctx, "tenant-a", PublishEventRequest{
		Event:   "lead_created",
		Entity:  "lead",
		Payload: workflow.Payload{"id": "lead-1", "source": "web"},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	dispatcher.AssertExpectations(t)
}

func TestEventService_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  PublishEventRequest
	}{
		{name: "missing event", req: PublishEventRequest{Entity: "lead", Payload: workflow.Payload{"id": "1"}}},
		{name: "missing entity", req: PublishEventRequest{Event: "lead_created", Payload: workflow.Payload{"id": "1"}}},
		{name: "missing payload", req: PublishEventRequest{Event: "lead_created", Entity: "lead"}},
		{name: "payload without id", req: PublishEventRequest{Event: "lead_created", Entity: "lead", Payload: workflow.Payload{"name": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &mockDispatcher{}
			_, err := NewEventService(dispatcher).Publish(context.Background(), "tenant-a", tt.req)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
		})
	}
}

func TestEventService_DispatchError(t *testing.T) {
	dispatcher := &mockDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return("", errors.New("queue down"))

	_, err := NewEventService(dispatcher).Publish(context.Background(), "tenant-a", PublishEventRequest{
		Event: "lead_created", Entity: "lead", Payload: workflow.Payload{"id": "lead-1"},
	})
	assert.ErrorContains(t, err, "queue down")
}
