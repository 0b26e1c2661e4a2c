package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/auth"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/modules/crm/services"
)

// EventPublisher is satisfied by *services.EventService
type EventPublisher interface {
	Publish(ctx context.Context, tenantID string, req services.PublishEventRequest) (string, error)
}

// EventHandler accepts domain events from entity-mutation services
type EventHandler struct {
	events EventPublisher
}

func NewEventHandler(events EventPublisher) *EventHandler {
	return &EventHandler{events: events}
}

// RegisterRoutes mounts the event routes on an authenticated router
func (h *EventHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/events", auth.RequirePermission(auth.PermEventsPublish), h.PublishEvent)
}

// PublishEvent godoc
// @Summary Publish a domain event
// @Description Queue an entity event for workflow processing. Call after the entity change has committed.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body services.PublishEventRequest true "Domain event"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /api/v1/events [post]
func (h *EventHandler) PublishEvent(c *fiber.Ctx) error {
	var req services.PublishEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	jobID, err := h.events.Publish(c.UserContext(), auth.TenantID(c), req)
	if err != nil {
		return writeError(c, err, "failed to publish event")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
		"job_id": jobID,
	})
}
