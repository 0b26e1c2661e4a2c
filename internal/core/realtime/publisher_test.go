package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuhamadAgungGumelar/crm-automation-be/internal/core/workflow"
)

type fakeRedis struct {
	channel string
	message []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher_PublishOutcome(t *testing.T) {
	client := &fakeRedis{}
	publisher := NewRedisPublisher(client)

	event := workflow.Event{Name: "lead_created", Entity: "lead", TenantID: "t1", Payload: workflow.Payload{"id": "l1"}}
	outcome := workflow.Outcome{WorkflowID: "wf-1", ExecutionID: "ex-1", Status: workflow.StatusFailed, Error: "boom"}
	require.NoError(t, publisher.PublishOutcome(context.Background(), event, outcome))

	assert.Equal(t, "tenant:t1:workflow:executions", client.channel)

	var msg ExecutionMessage
	require.NoError(t, json.Unmarshal(client.message, &msg))
	assert.Equal(t, "t1", msg.TenantID)
	assert.Equal(t, "l1", msg.EntityID)
	assert.Equal(t, "wf-1", msg.WorkflowID)
	assert.Equal(t, workflow.StatusFailed, msg.Status)
	assert.Equal(t, "boom", msg.Error)
	assert.False(t, msg.PublishedAt.IsZero())
}

func TestRedisPublisher_PropagatesErrors(t *testing.T) {
	publisher := NewRedisPublisher(&fakeRedis{err: errors.New("connection reset")})
	err := publisher.PublishOutcome(context.Background(), workflow.Event{TenantID: "t1"}, workflow.Outcome{})
	assert.EqualError(t, err, "connection reset")
}
