package task

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/database/dbtest"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
	"github.com/guiqiqi/itmo-moodle-agent/redis/redistest"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"PENDING", StatusPending, false},
		{"STARTED", StatusStarted, false},
		{"SUCCESS", StatusSuccess, false},
		{"failure", StatusFailure, false},
		{"RETRY", StatusRetry, false},
		{"REVOKED", StatusRevoked, false},
		{"RECEIVED", StatusPending, false},
		{"EXPLODED", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStatusFinal(t *testing.T) {
	final := map[Status]bool{
		StatusPending: false,
		StatusStarted: false,
		StatusRetry:   false,
		StatusSuccess: true,
		StatusFailure: true,
		StatusRevoked: true,
	}
	for s, want := range final {
		if s.Final() != want {
			t.Errorf("%s: expected final=%v", s, want)
		}
	}
}

type fixture struct {
	store   *Store
	tracker *Tracker
	meta    func(workerTaskID, doc string)
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t, Models()...)
	rc, mini := redistest.New(t)
	store := NewStore(db)
	return fixture{
		store:   store,
		tracker: NewTracker(store, NewRedisBackend(rc), logger.NewNop()),
		meta: func(id, doc string) {
			if err := mini.Set(MetaKey(id), doc); err != nil {
				t.Fatalf("seed meta: %v", err)
			}
		},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := f.store.Create(ctx, "worker-1", owner)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != StatusPending || created.UpdatedAt != nil {
		t.Errorf("expected fresh pending task, got %+v", created)
	}

	got, err := f.store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.WorkerTaskID != "worker-1" || got.OwnerID != owner {
		t.Errorf("unexpected task %+v", got)
	}

	if _, err := f.store.Create(ctx, "worker-1", owner); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS for duplicate worker id, got %v", err)
	}
	if _, err := f.store.Create(ctx, "", owner); !apperrors.HasCode(err, apperrors.ErrCodeMissingField) {
		t.Errorf("expected MISSING_FIELD, got %v", err)
	}
	if _, err := f.store.Get(ctx, uuid.New()); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	list, err := f.store.ListByOwner(ctx, owner)
	if err != nil || len(list) != 1 {
		t.Errorf("expected one owned task, got %d (%v)", len(list), err)
	}
}

func TestTracker_Refresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.store.Create(ctx, "worker-1", uuid.New())

	// No metadata yet: still pending, nothing written.
	got, err := f.tracker.Refresh(ctx, created)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.Status != StatusPending || got.UpdatedAt != nil {
		t.Errorf("expected untouched pending task, got %+v", got)
	}

	f.meta("worker-1", `{"task_id":"worker-1","status":"STARTED","result":null}`)
	got, err = f.tracker.Refresh(ctx, got)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.Status != StatusStarted || got.UpdatedAt == nil {
		t.Errorf("expected started with timestamp, got %+v", got)
	}
	if got.Result != nil {
		t.Errorf("expected no result before success, got %q", *got.Result)
	}

	f.meta("worker-1", `{"task_id":"worker-1","status":"SUCCESS","result":true}`)
	got, err = f.tracker.Refresh(ctx, got)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.Status != StatusSuccess || got.Result == nil || *got.Result != "true" {
		t.Errorf("expected success with result, got %+v", got)
	}

	stored, _ := f.store.Get(ctx, created.ID)
	if stored.Status != StatusSuccess || stored.Result == nil || *stored.Result != "true" {
		t.Errorf("expected persisted success, got %+v", stored)
	}

	// Final tasks are never re-read.
	f.meta("worker-1", `{"status":"FAILURE","result":{"exc_type":"RuntimeError"}}`)
	got, err = f.tracker.Refresh(ctx, stored)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.Status != StatusSuccess {
		t.Errorf("expected final task to stay success, got %s", got.Status)
	}
}

func TestTracker_FailureKeepsNoResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.store.Create(ctx, "worker-2", uuid.New())
	f.meta("worker-2", `{"status":"FAILURE","result":{"exc_type":"RuntimeError","exc_message":["boom"]}}`)

	got, err := f.tracker.Refresh(ctx, created)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got.Status != StatusFailure || got.Result != nil {
		t.Errorf("expected failure without result, got %+v", got)
	}
}

func TestTracker_BackendErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.store.Create(ctx, "worker-3", uuid.New())

	f.meta("worker-3", `not json`)
	if _, err := f.tracker.Refresh(ctx, created); !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE for unreadable meta, got %v", err)
	}

	f.meta("worker-3", `{"status":"EXPLODED"}`)
	if _, err := f.tracker.Refresh(ctx, created); !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE for unknown state, got %v", err)
	}
}

func TestTracker_NilBackend(t *testing.T) {
	db := dbtest.Open(t, Models()...)
	store := NewStore(db)
	tr := NewTracker(store, nil, logger.NewNop())
	created, _ := store.Create(context.Background(), "worker-4", uuid.New())

	got, err := tr.Refresh(context.Background(), created)
	if err != nil || got.Status != StatusPending {
		t.Errorf("expected unchanged pending task, got %+v (%v)", got, err)
	}
}

func TestTracker_Lookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	created, _ := f.store.Create(ctx, "worker-5", owner)
	f.meta("worker-5", `{"status":"REVOKED"}`)

	if _, err := f.tracker.Lookup(ctx, created.ID, uuid.New()); !apperrors.HasCode(err, apperrors.ErrCodeForbidden) {
		t.Errorf("expected FORBIDDEN for another caller, got %v", err)
	}
	if _, err := f.tracker.Lookup(ctx, uuid.New(), owner); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	got, err := f.tracker.Lookup(ctx, created.ID, owner)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Status != StatusRevoked {
		t.Errorf("expected revoked, got %s", got.Status)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Backend != BackendRedis {
		t.Errorf("expected redis default, got %q", cfg.Backend)
	}
	if err := (&Config{Backend: "amqp"}).Validate(); err == nil {
		t.Error("expected unknown backend to fail validation")
	}
}
