package task

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// Tracker brings stored tasks up to date with the result backend.
type Tracker struct {
	store   *Store
	backend ResultBackend
	log     *logger.Logger
	now     func() time.Time
}

// NewTracker creates a Tracker. With a nil backend tasks keep their stored
// state.
func NewTracker(store *Store, backend ResultBackend, log *logger.Logger) *Tracker {
	return &Tracker{store: store, backend: backend, log: log.WithComponent("task"), now: time.Now}
}

// Refresh updates t from the backend unless t is already final. The row is
// written only when the status changed.
func (tr *Tracker) Refresh(ctx context.Context, t *Task) (*Task, error) {
	if t.Status.Final() || tr.backend == nil {
		return t, nil
	}

	state, err := tr.backend.State(ctx, t.WorkerTaskID)
	if err != nil {
		tr.log.Error("Failed to read worker state", logger.Fields(
			"task_id", t.ID.String(), "worker_task_id", t.WorkerTaskID, logger.FieldError, err.Error()))
		return nil, apperrors.ServiceUnavailable("task backend").WithCause(err)
	}
	if state.Status == t.Status {
		return t, nil
	}

	updated := *t
	now := tr.now().UTC()
	updated.Status = state.Status
	updated.UpdatedAt = &now
	if state.Status == StatusSuccess && len(state.Result) > 0 {
		result := string(state.Result)
		updated.Result = &result
	}
	if err := tr.store.saveState(ctx, &updated); err != nil {
		return nil, err
	}
	tr.log.Debug("Task state changed", logger.Fields(
		"task_id", t.ID.String(), "from", string(t.Status), "to", string(updated.Status)))
	return &updated, nil
}

// Lookup returns callerID's task id, refreshed. Tasks owned by someone
// else are FORBIDDEN.
func (tr *Tracker) Lookup(ctx context.Context, id, callerID uuid.UUID) (*Task, error) {
	t, err := tr.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != callerID {
		return nil, apperrors.Forbidden("not authorized to access this task")
	}
	return tr.Refresh(ctx, t)
}
