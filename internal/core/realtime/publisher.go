// Package realtime broadcasts workflow execution outcomes over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
)

// RedisPublishClient is the part of *redis.Client the publisher needs
type RedisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ExecutionMessage is the JSON message sent for every terminal outcome
type ExecutionMessage struct {
	TenantID    string                   `json:"tenant_id"`
	Event       string                   `json:"event"`
	Entity      string                   `json:"entity"`
	EntityID    string                   `json:"entity_id"`
	WorkflowID  string                   `json:"workflow_id"`
	ExecutionID string                   `json:"execution_id,omitempty"`
	Status      workflow.ExecutionStatus `json:"status"`
	Error       string                   `json:"error,omitempty"`
	PublishedAt time.Time                `json:"published_at"`
}

// RedisPublisher implements workflow.Publisher
type RedisPublisher struct {
	client RedisPublishClient
}

// NewRedisClient creates a client and checks the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisPublisher creates a publisher on top of a Redis client
func NewRedisPublisher(client RedisPublishClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Channel is the per-tenant channel execution messages are published on
func Channel(tenantID string) string {
	return fmt.Sprintf("tenant:%s:workflow:executions", tenantID)
}

// PublishOutcome publishes the outcome to the tenant's channel
func (p *RedisPublisher) PublishOutcome(ctx context.Context, event workflow.Event, outcome workflow.Outcome) error {
	payload, err := json.Marshal(ExecutionMessage{
		TenantID:    event.TenantID,
		Event:       event.Name,
		Entity:      event.Entity,
		EntityID:    event.EntityID(),
		WorkflowID:  outcome.WorkflowID,
		ExecutionID: outcome.ExecutionID,
		Status:      outcome.Status,
		Error:       outcome.Error,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.client.Publish(ctx, Channel(event.TenantID), payload).Err()
}
