package credential

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/guiqiqi/itmo-moodle-agent/auth/oidc"
	"github.com/guiqiqi/itmo-moodle-agent/auth/oidc/oidctest"
	"github.com/guiqiqi/itmo-moodle-agent/auth/password"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	"github.com/guiqiqi/itmo-moodle-agent/database/dbtest"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

type fixture struct {
	db         *database.DB
	identities *identity.Store
	password   *Password
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, append(identity.Models(), Models()...)...)
	identities := identity.NewStore(db)
	hasher := password.NewHasher(password.Config{Argon2Memory: 1024, BcryptCost: bcrypt.MinCost})
	return &fixture{
		db:         db,
		identities: identities,
		password:   NewPassword(db, identities, hasher, logger.NewNop()),
	}
}

func (f *fixture) user(t *testing.T, email, secret string) *identity.Identity {
	t.Helper()
	ctx := context.Background()
	ident, err := f.identities.Create(ctx, identity.NewIdentity{Email: email})
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	if _, err := f.password.Create(ctx, ident, secret); err != nil {
		t.Fatalf("create password: %v", err)
	}
	return ident
}

type stubCredential struct {
	method Method
}

func (s stubCredential) Method() Method { return s.method }
func (s stubCredential) Authenticate(context.Context, any) (*identity.Identity, error) {
	return nil, ErrUnsupportedCredentials
}
func (s stubCredential) Delete(context.Context, uuid.UUID) error { return nil }

func TestNewRegistry_Panics(t *testing.T) {
	tests := map[string][]Credential{
		"duplicate id": {stubCredential{0}, stubCredential{0}},
		"id too large": {stubCredential{32}},
	}
	for name, variants := range tests {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			NewRegistry(variants...)
		})
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	f := newFixture(t)
	reg := NewRegistry(f.password, stubCredential{5})
	ctx := context.Background()
	f.user(t, "student@itmo.ru", "password")

	if got := reg.Methods(); len(got) != 2 || got[0] != MethodPassword || got[1] != 5 {
		t.Errorf("expected [0 5], got %v", got)
	}

	ident, err := reg.Authenticate(ctx, MethodPassword, PasswordLogin{Email: "student@itmo.ru", Password: "password"})
	if err != nil || ident.Email != "student@itmo.ru" {
		t.Fatalf("expected login to succeed, got %v, %v", ident, err)
	}

	if _, err := reg.Authenticate(ctx, MethodFederated, FederatedLogin{}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidAuthenticationMethod) {
		t.Errorf("expected INVALID_AUTHENTICATION_METHOD, got %v", err)
	}
	if _, err := reg.Authenticate(ctx, 200, nil); !apperrors.HasCode(err, apperrors.ErrCodeInvalidAuthenticationMethod) {
		t.Errorf("expected INVALID_AUTHENTICATION_METHOD for out-of-range id, got %v", err)
	}
	if _, err := reg.Authenticate(ctx, MethodPassword, "not a login"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected wrong shape to be INVALID_LOGIN, got %v", err)
	}
}

func TestPassword_CreateSetsMethodBit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := f.user(t, "a@itmo.ru", "password")

	got, _ := f.identities.Get(ctx, ident.ID)
	if !got.HasMethod(uint8(MethodPassword)) {
		t.Error("expected password bit set")
	}

	var rec PasswordRecord
	f.db.Conn(ctx).First(&rec, "identity_id = ?", ident.ID)
	if rec.HashedSecret == "password" || rec.Email != "a@itmo.ru" {
		t.Errorf("unexpected record %+v", rec)
	}

	if _, err := f.password.Create(ctx, got, "another-password"); !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Errorf("expected ALREADY_EXISTS, got %v", err)
	}
	if _, err := f.password.Create(ctx, got, ""); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestPassword_AuthenticateFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := f.user(t, "a@itmo.ru", "password")

	cases := []struct {
		name  string
		login any
		setup func()
	}{
		{"unknown email", PasswordLogin{Email: "nobody@itmo.ru", Password: "password"}, nil},
		{"wrong password", PasswordLogin{Email: "a@itmo.ru", Password: "wrong-password"}, nil},
		{"disabled", PasswordLogin{Email: "a@itmo.ru", Password: "password"}, func() { _ = f.identities.Disable(ctx, ident.ID) }},
		{"deleted", PasswordLogin{Email: "a@itmo.ru", Password: "password"}, func() { _ = f.identities.Delete(ctx, ident.ID) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			_, err := f.password.Authenticate(ctx, tc.login)
			if !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
				t.Errorf("expected INVALID_LOGIN, got %v", err)
			}
		})
	}
}

func TestPassword_PointerLoginAndCaseInsensitiveEmail(t *testing.T) {
	f := newFixture(t)
	f.user(t, "a@itmo.ru", "password")

	if _, err := f.password.Authenticate(context.Background(), &PasswordLogin{Email: "A@ITMO.RU", Password: "password"}); err != nil {
		t.Errorf("expected login to succeed, got %v", err)
	}
}

func TestPassword_ResetAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident := f.user(t, "a@itmo.ru", "password")

	if err := f.password.Reset(ctx, ident.ID, "new-password"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := f.password.Authenticate(ctx, PasswordLogin{Email: "a@itmo.ru", Password: "password"}); err == nil {
		t.Error("expected old password rejected")
	}
	if _, err := f.password.Authenticate(ctx, PasswordLogin{Email: "a@itmo.ru", Password: "new-password"}); err != nil {
		t.Errorf("expected new password accepted, got %v", err)
	}
	if err := f.password.Reset(ctx, uuid.New(), "new-password"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	if err := f.password.Delete(ctx, ident.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := f.password.Delete(ctx, ident.ID); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
	got, _ := f.identities.Get(ctx, ident.ID)
	if got.HasMethod(uint8(MethodPassword)) {
		t.Error("expected password bit cleared")
	}
	if _, err := f.password.Authenticate(ctx, PasswordLogin{Email: "a@itmo.ru", Password: "new-password"}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected INVALID_LOGIN after delete, got %v", err)
	}
}

func TestPassword_ImportedBcryptHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ident, _ := f.identities.Create(ctx, identity.NewIdentity{Email: "legacy@itmo.ru"})

	hash, _ := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	f.db.Conn(ctx).Create(&PasswordRecord{IdentityID: ident.ID, Email: ident.Email, HashedSecret: string(hash)})

	if _, err := f.password.Authenticate(ctx, PasswordLogin{Email: "legacy@itmo.ru", Password: "legacy-secret"}); err != nil {
		t.Errorf("expected bcrypt hash accepted, got %v", err)
	}
}

func TestFederated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := oidctest.New(t)
	verifier := oidc.NewVerifier(oidc.Config{Enabled: true, Issuer: p.Issuer(), ClientID: oidctest.ClientID}, p.Server.Client())
	fed := NewFederated(f.db, f.identities, verifier, logger.NewNop())
	reg := NewRegistry(f.password, fed)

	ident := f.user(t, "a@itmo.ru", "password")
	if _, err := fed.Create(ctx, ident, p.IDToken(t, "isu-123456", nil)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, _ := f.identities.Get(ctx, ident.ID)
	if methods := got.EnabledMethods(); len(methods) != 2 {
		t.Errorf("expected password and federated bits, got %v", methods)
	}

	login, err := reg.Authenticate(ctx, MethodFederated, FederatedLogin{IDToken: p.IDToken(t, "isu-123456", nil)})
	if err != nil || login.ID != ident.ID {
		t.Fatalf("expected federated login, got %v, %v", login, err)
	}

	if _, err := reg.Authenticate(ctx, MethodFederated, FederatedLogin{IDToken: p.IDToken(t, "unbound", nil)}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected INVALID_LOGIN for unbound subject, got %v", err)
	}
	if _, err := reg.Authenticate(ctx, MethodFederated, FederatedLogin{IDToken: "garbage"}); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected INVALID_LOGIN for bad token, got %v", err)
	}

	if err := reg.DeleteAll(ctx, ident.ID); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	got, _ = f.identities.Get(ctx, ident.ID)
	if got.Methods != 0 {
		t.Errorf("expected all bits cleared, got %b", got.Methods)
	}
}

func TestMethodString(t *testing.T) {
	if MethodPassword.String() != "password" || Method(9).String() != "method(9)" {
		t.Error("unexpected method names")
	}
}
