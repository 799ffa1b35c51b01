package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/database/dbtest"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(dbtest.Open(t, Models()...))
}

func strPtr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ident, err := s.Create(ctx, NewIdentity{Email: "  Student@ITMO.ru ", DisplayName: strPtr("Student")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ident.Email != "student@itmo.ru" {
		t.Errorf("expected normalized email, got %q", ident.Email)
	}
	if !ident.Active() || ident.Methods != 0 {
		t.Errorf("expected active identity without methods, got %+v", ident)
	}

	got, err := s.GetByEmail(ctx, "STUDENT@itmo.ru")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != ident.ID || *got.DisplayName != "Student" {
		t.Errorf("unexpected identity %+v", got)
	}

	if _, err := s.Get(ctx, uuid.New()); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, NewIdentity{Email: "a@itmo.ru"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Create(ctx, NewIdentity{Email: "A@itmo.ru"}); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Fatalf("expected ALREADY_EXISTS, got %v", err)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Create(ctx, NewIdentity{Email: "a@itmo.ru"}); err != nil {
		t.Errorf("expected email reusable after soft delete, got %v", err)
	}
}

func TestDisableEnableDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ident, _ := s.Create(ctx, NewIdentity{Email: "a@itmo.ru"})

	if err := s.Disable(ctx, ident.ID); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	got, _ := s.Get(ctx, ident.ID)
	if got.Active() {
		t.Error("expected disabled identity to be inactive")
	}

	_ = s.Enable(ctx, ident.ID)
	got, _ = s.Get(ctx, ident.ID)
	if !got.Active() {
		t.Error("expected enabled identity to be active")
	}

	_ = s.Delete(ctx, ident.ID)
	got, err := s.Get(ctx, ident.ID)
	if err != nil {
		t.Fatalf("expected deleted row retained, got %v", err)
	}
	if !got.IsDeleted || got.DeletedAt == nil || got.Active() {
		t.Errorf("expected soft-deleted identity, got %+v", got)
	}
	if _, err := s.GetByEmail(ctx, "a@itmo.ru"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected deleted identity hidden from GetByEmail, got %v", err)
	}

	if err := s.Disable(ctx, uuid.New()); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestBindUnbindMethod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ident, _ := s.Create(ctx, NewIdentity{Email: "a@itmo.ru"})

	for _, m := range []uint8{0, 1, 31, 1} {
		if err := s.BindMethod(ctx, ident.ID, m); err != nil {
			t.Fatalf("BindMethod(%d) failed: %v", m, err)
		}
	}
	got, _ := s.Get(ctx, ident.ID)
	if methods := got.EnabledMethods(); len(methods) != 3 || methods[0] != 0 || methods[1] != 1 || methods[2] != 31 {
		t.Errorf("expected [0 1 31], got %v", methods)
	}

	_ = s.UnbindMethod(ctx, ident.ID, 1)
	_ = s.UnbindMethod(ctx, ident.ID, 1)
	got, _ = s.Get(ctx, ident.ID)
	if got.HasMethod(1) || !got.HasMethod(0) || !got.HasMethod(31) {
		t.Errorf("expected only bit 1 cleared, got %032b", got.Methods)
	}

	if err := s.BindMethod(ctx, ident.ID, 32); !apperrors.HasCode(err, apperrors.ErrCodeInvalidAuthenticationMethod) {
		t.Errorf("expected INVALID_AUTHENTICATION_METHOD, got %v", err)
	}
}

func TestMembershipConverges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ident, _ := s.Create(ctx, NewIdentity{Email: "a@itmo.ru"})
	group, err := s.CreateGroup(ctx, "test-group", nil)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	steps := []struct {
		add  bool
		want int
	}{
		{true, 1}, {true, 1}, {false, 0}, {false, 0}, {true, 1},
	}
	for i, step := range steps {
		if step.add {
			err = s.AddMember(ctx, ident.ID, group.ID)
		} else {
			err = s.RemoveMember(ctx, ident.ID, group.ID)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		groups, _ := s.GroupsOf(ctx, ident.ID)
		if len(groups) != step.want {
			t.Errorf("step %d: expected %d groups, got %d", i, step.want, len(groups))
		}
	}

	names, err := s.GroupNames(ctx, ident.ID.String())
	if err != nil || len(names) != 1 || names[0] != "test-group" {
		t.Errorf("expected [test-group], got %v (%v)", names, err)
	}
	members, _ := s.MembersOf(ctx, group.ID)
	if len(members) != 1 || members[0].ID != ident.ID {
		t.Errorf("expected one member, got %v", members)
	}
	if _, err := s.GroupNames(ctx, "not-a-uuid"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidToken) {
		t.Errorf("expected INVALID_TOKEN for malformed id, got %v", err)
	}
}

func TestGroupCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b, _ := s.CreateGroup(ctx, "teachers", strPtr("course staff"))
	_, _ = s.CreateGroup(ctx, "admins", nil)
	if _, err := s.CreateGroup(ctx, "admins", nil); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
	if _, err := s.CreateGroup(ctx, " ", nil); !apperrors.HasCode(err, apperrors.ErrCodeMissingField) {
		t.Errorf("expected MISSING_FIELD, got %v", err)
	}

	groups, _ := s.ListGroups(ctx)
	if len(groups) != 2 || groups[0].Name != "admins" {
		t.Errorf("expected groups ordered by name, got %v", groups)
	}
	if g, err := s.GetGroupByName(ctx, "teachers"); err != nil || g.ID != b.ID {
		t.Errorf("GetGroupByName: %v, %v", g, err)
	}

	ident, _ := s.Create(ctx, NewIdentity{Email: "a@itmo.ru"})
	_ = s.AddMember(ctx, ident.ID, b.ID)
	if err := s.DeleteGroup(ctx, b.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, err := s.GetGroup(ctx, b.ID); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND after delete, got %v", err)
	}
	if groups, _ := s.GroupsOf(ctx, ident.ID); len(groups) != 0 {
		t.Errorf("expected memberships removed with group, got %v", groups)
	}
	if err := s.DeleteGroup(ctx, b.ID); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND deleting twice, got %v", err)
	}
}

func TestEnabledMethodsIgnoresHighBits(t *testing.T) {
	ident := &Identity{Methods: 1<<2 | 1<<5}
	got := ident.EnabledMethods()
	if len(got) != 2 || got[0] != 2 || got[1] != 5 {
		t.Errorf("expected [2 5], got %v", got)
	}
	if ident.HasMethod(40) {
		t.Error("expected out-of-range id to be unset")
	}
}
