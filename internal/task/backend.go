package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guiqiqi/itmo-moodle-agent/redis"
)

// WorkerState is what a result backend knows about one worker task.
type WorkerState struct {
	Status Status
	// Result is the task's JSON-encoded return value, set on success.
	Result json.RawMessage
}

// ResultBackend reports worker task state.
type ResultBackend interface {
	State(ctx context.Context, workerTaskID string) (*WorkerState, error)
}

// metaKeyPrefix is where the worker's Redis result backend keeps task
// metadata documents.
const metaKeyPrefix = "celery-task-meta-"

// taskMeta is the metadata document the worker writes per task.
type taskMeta struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// RedisBackend reads task state from the worker's Redis result backend.
type RedisBackend struct {
	client *redis.Client
}

var _ ResultBackend = (*RedisBackend)(nil)

// NewRedisBackend creates a RedisBackend.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// MetaKey returns the Redis key holding workerTaskID's metadata.
func MetaKey(workerTaskID string) string {
	return metaKeyPrefix + workerTaskID
}

// State returns the worker state. Tasks the backend has no record of are
// pending.
func (b *RedisBackend) State(ctx context.Context, workerTaskID string) (*WorkerState, error) {
	var meta taskMeta
	found, err := b.client.GetJSON(ctx, MetaKey(workerTaskID), &meta)
	if err != nil {
		return nil, fmt.Errorf("task backend: %w", err)
	}
	if !found {
		return &WorkerState{Status: StatusPending}, nil
	}
	status, err := ParseStatus(meta.Status)
	if err != nil {
		return nil, err
	}
	return &WorkerState{Status: status, Result: meta.Result}, nil
}
