package task

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/database"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

// Store persists tasks.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Create starts tracking workerTaskID for ownerID in the pending state.
func (s *Store) Create(ctx context.Context, workerTaskID string, ownerID uuid.UUID) (*Task, error) {
	if workerTaskID == "" {
		return nil, apperrors.MissingField("worker_task_id")
	}
	t := &Task{
		ID:           uuid.New(),
		WorkerTaskID: workerTaskID,
		OwnerID:      ownerID,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.db.Conn(ctx).Create(t).Error; err != nil {
		return nil, database.Translate(err, "task")
	}
	return t, nil
}

// Get returns the task with id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	var t Task
	if err := s.db.Conn(ctx).First(&t, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperrors.NotFound("task", id.String())
		}
		return nil, database.Translate(err, "task")
	}
	return &t, nil
}

// ListByOwner returns the owner's tasks, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Task, error) {
	var out []Task
	err := s.db.Conn(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, database.Translate(err, "task")
	}
	return out, nil
}

// saveState writes the tracked columns of t.
func (s *Store) saveState(ctx context.Context, t *Task) error {
	err := s.db.Conn(ctx).Model(&Task{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"status":     t.Status,
		"result":     t.Result,
		"updated_at": t.UpdatedAt,
	}).Error
	return database.Translate(err, "task")
}
