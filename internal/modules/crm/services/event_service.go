package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
)

// PublishEventRequest is a domain event reported by an entity-mutation service
// after its transaction committed
type PublishEventRequest struct {
	Event   string           `json:"event" validate:"required,max=100"`
	Entity  string           `json:"entity" validate:"required,max=50"`
	Payload workflow.Payload `json:"payload" validate:"required"`
}

// EventDispatcher is satisfied by *workflow.Dispatcher
type EventDispatcher interface {
	Dispatch(ctx context.Context, event workflow.Event) (string, error)
}

// EventService accepts domain events and hands them to the engine asynchronously
type EventService struct {
	dispatcher EventDispatcher
	logger     zerolog.Logger
}

// NewEventService creates a new event service
func NewEventService(dispatcher EventDispatcher) *EventService {
	return &EventService{
		dispatcher: dispatcher,
		logger:     log.With().Str("component", "event.service").Logger(),
	}
}

// Publish validates the event and queues it. It returns the job id.
func (s *EventService) Publish(ctx context.Context, tenantID string, req PublishEventRequest) (string, error) {
	if err := validateStruct(req); err != nil {
		return "", err
	}
	if id, ok := req.Payload["id"]; !ok || id == nil || id == "" {
		return "", newValidationError("payload.id is required")
	}

	jobID, err := s.dispatcher.Dispatch(ctx, workflow.Event{
		Name:     req.Event,
		Entity:   req.Entity,
		TenantID: tenantID,
		Payload:  req.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to dispatch event: %w", err)
	}

	s.logger.Debug().
		Str("tenant_id", tenantID).
		Str("event", req.Event).
		Str("job_id", jobID).
		Msg("event queued")
	return jobID, nil
}
