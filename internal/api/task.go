package api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/auth/authctx"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/task"
	"github.com/guiqiqi/itmo-moodle-agent/server"
)

// TaskResult is the public view of a task. Result carries the worker's
// return value as JSON, or null until the task succeeds.
type TaskResult struct {
	ID        uuid.UUID       `json:"id"`
	Status    task.Status     `json:"status"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at"`
}

func newTaskResult(t *task.Task) TaskResult {
	r := TaskResult{ID: t.ID, Status: t.Status, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
	if t.Result != nil {
		if json.Valid([]byte(*t.Result)) {
			r.Result = json.RawMessage(*t.Result)
		} else {
			r.Result, _ = json.Marshal(*t.Result)
		}
	}
	return r
}

type taskHandler struct {
	tracker *task.Tracker
}

func (h *taskHandler) get(c *gin.Context) {
	ctx := c.Request.Context()
	subject, err := authctx.RequireSubject(ctx)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	callerID, err := uuid.Parse(subject)
	if err != nil {
		server.RespondWithError(c, apperrors.InvalidToken().WithCause(err))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		server.RespondWithError(c, apperrors.NotFound("task", c.Param("id")))
		return
	}

	t, err := h.tracker.Lookup(ctx, id, callerID)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, newTaskResult(t))
}
