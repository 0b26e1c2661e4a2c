package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/jobs"
	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueStats is satisfied by *jobs.Service
type QueueStats interface {
	QueueStats(ctx context.Context, queueName string) (map[jobs.JobStatus]int64, error)
}

type HealthHandler struct {
	db    Pinger
	queue QueueStats
}

func NewHealthHandler(db Pinger, queue QueueStats) *HealthHandler {
	return &HealthHandler{db: db, queue: queue}
}

// GetHealth godoc
// @Summary Service health check
// @Description Database reachability and workflow queue depth
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("health check: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "degraded",
			"service":  "crm-api",
			"database": "unreachable",
		})
	}

	response := fiber.Map{
		"status":   "ok",
		"service":  "crm-api",
		"database": "ok",
	}
	if stats, err := h.queue.QueueStats(ctx, workflow.TriggerQueue); err == nil {
		response["queue"] = stats
	}
	return c.JSON(response)
}
