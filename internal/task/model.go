// Package task tracks work handed to the background worker pool. The
// worker records progress in its result backend; a Task row mirrors that
// state and is refreshed whenever it is read.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a worker task.
type Status string

const (
	StatusPending Status = "pending"
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusRetry   Status = "retry"
	StatusRevoked Status = "revoked"
)

// Final reports whether the worker will not change s any more.
func (s Status) Final() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusRevoked:
		return true
	}
	return false
}

// ParseStatus maps a worker state name, in any case, to a Status. The
// worker's transient RECEIVED state counts as pending.
func ParseStatus(state string) (Status, error) {
	s := Status(strings.ToLower(state))
	switch s {
	case StatusPending, StatusStarted, StatusSuccess, StatusFailure, StatusRetry, StatusRevoked:
		return s, nil
	case "received":
		return StatusPending, nil
	}
	return "", fmt.Errorf("task: unknown worker state %q", state)
}

// Task mirrors one worker task for its owner.
type Task struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	WorkerTaskID string     `gorm:"size:255;not null;uniqueIndex"`
	Result       *string    `gorm:"type:text"`
	OwnerID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status       Status     `gorm:"size:16;not null"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    *time.Time `gorm:"autoUpdateTime:false"`
}

// TableName pins the table name.
func (Task) TableName() string { return "tasks" }

// Models lists the tables this package owns.
func Models() []interface{} {
	return []interface{}{&Task{}}
}
