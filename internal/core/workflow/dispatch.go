package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/jobs"
)

const (
	// TriggerJobType is the job type carrying one domain event
	TriggerJobType = "workflow.trigger"
	// TriggerQueue is the queue workflow events are dispatched on
	TriggerQueue = "workflows"
)

// JobEnqueuer is satisfied by *jobs.Service
type JobEnqueuer interface {
	Enqueue(ctx context.Context, tenantID string, jobType string, payload interface{}, opts ...jobs.EnqueueOptions) (*jobs.Job, error)
}

// Dispatcher hands domain events to the engine asynchronously through the job queue.
// Call Dispatch after the business transaction has committed.
type Dispatcher struct {
	enqueuer JobEnqueuer
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher on top of the job queue
func NewDispatcher(enqueuer JobEnqueuer) *Dispatcher {
	return &Dispatcher{
		enqueuer: enqueuer,
		logger:   log.With().Str("component", "workflow.dispatcher").Logger(),
	}
}

// Dispatch enqueues the event and returns the job id
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) (string, error) {
	if event.TenantID == "" {
		return "", errors.New("event has no tenant")
	}
	if event.Name == "" || event.Entity == "" {
		return "", errors.New("event name and entity are required")
	}

	job, err := d.enqueuer.Enqueue(ctx, event.TenantID, TriggerJobType, event, jobs.EnqueueOptions{
		Queue:      TriggerQueue,
		Priority:   jobs.PriorityNormal,
		MaxRetries: 5,
	})
	if err != nil {
		return "", fmt.Errorf("failed to dispatch workflow event: %w", err)
	}

	d.logger.Debug().
		Str("job_id", job.ID.String()).
		Str("event", event.Name).
		Str("tenant_id", event.TenantID).
		Msg("workflow event dispatched")
	return job.ID.String(), nil
}

// EventRunner is satisfied by *Engine
type EventRunner interface {
	Run(ctx context.Context, event Event) ([]Outcome, error)
}

// TriggerJobHandler runs queued workflow events through the engine.
// Only a failed rule lookup is retried, since no rule has run at that point.
type TriggerJobHandler struct {
	runner EventRunner
}

// NewTriggerJobHandler creates the job handler for TriggerJobType
func NewTriggerJobHandler(runner EventRunner) *TriggerJobHandler {
	return &TriggerJobHandler{runner: runner}
}

func (h *TriggerJobHandler) GetType() string {
	return TriggerJobType
}

func (h *TriggerJobHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var event Event
	if err := json.Unmarshal(job.Payload, &event); err != nil {
		return jobs.Permanent(fmt.Errorf("invalid workflow event payload: %w", err))
	}
	if event.TenantID != job.TenantID {
		return jobs.Permanent(fmt.Errorf("event tenant %q does not match job tenant %q", event.TenantID, job.TenantID))
	}

	if _, err := h.runner.Run(ctx, event); err != nil {
		var storeErr *RuleStoreError
		if errors.As(err, &storeErr) {
			return err
		}
		return jobs.Permanent(err)
	}
	return nil
}
