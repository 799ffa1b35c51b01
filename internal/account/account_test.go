package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/crypto/bcrypt"

	"github.com/guiqiqi/itmo-moodle-agent/auth/jwt"
	"github.com/guiqiqi/itmo-moodle-agent/auth/oidc"
	"github.com/guiqiqi/itmo-moodle-agent/auth/oidc/oidctest"
	"github.com/guiqiqi/itmo-moodle-agent/auth/password"
	"github.com/guiqiqi/itmo-moodle-agent/authz"
	"github.com/guiqiqi/itmo-moodle-agent/database/dbtest"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/credential"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/internal/session"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
	"github.com/guiqiqi/itmo-moodle-agent/observability"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type env struct {
	svc        *Service
	issuer     *jwt.Issuer
	identities *identity.Store
	clock      *fakeClock
}

func newEnv(t *testing.T, opts ...Option) env {
	t.Helper()
	models := append(identity.Models(), credential.Models()...)
	db := dbtest.Open(t, append(models, session.Models()...)...)
	clock := &fakeClock{t: time.Now().UTC().Truncate(time.Second)}

	issuer, err := jwt.NewIssuer(jwt.Config{
		Secret:         "0123456789abcdef0123456789abcdef",
		AccessTokenTTL: 30 * time.Minute,
	}, jwt.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	identities := identity.NewStore(db)
	hasher := password.NewHasher(password.Config{Argon2Memory: 1024, BcryptCost: bcrypt.MinCost})
	passwords := credential.NewPassword(db, identities, hasher, logger.NewNop())
	registry := credential.NewRegistry(passwords)
	sessions := session.NewRefreshStore(db, identities, issuer, 24*time.Hour, logger.NewNop(), session.WithClock(clock.Now))

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc := New(db, identities, registry, passwords, issuer, sessions, logger.NewNop(), opts...)
	return env{svc: svc, issuer: issuer, identities: identities, clock: clock}
}

func (e env) register(t *testing.T, email, pw string) *UserInfo {
	t.Helper()
	name := "Test User"
	info, err := e.svc.Register(context.Background(), Registration{Email: email, Name: &name, Password: pw})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return info
}

func TestEndToEndFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	info := e.register(t, "Test@Example.com", "password")
	if info.Email != "test@example.com" {
		t.Errorf("expected normalized email, got %q", info.Email)
	}
	if len(info.Methods) != 1 || info.Methods[0] != "password" {
		t.Errorf("expected password method, got %v", info.Methods)
	}

	tokens, err := e.svc.LoginWithPassword(ctx, "test@example.com", "password")
	if err != nil {
		t.Fatalf("LoginWithPassword: %v", err)
	}
	if tokens.TokenType != "bearer" || tokens.RefreshToken == "" {
		t.Errorf("unexpected tokens %+v", tokens)
	}
	if tokens.ExpiresIn != int64((30 * time.Minute).Seconds()) {
		t.Errorf("expected expires_in 1800, got %d", tokens.ExpiresIn)
	}

	if _, err := e.svc.LoginWithPassword(ctx, "test@example.com", "wrong-password"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected INVALID_LOGIN, got %v", err)
	}

	claims, err := e.issuer.Validate(tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	me, err := e.svc.Current(ctx, claims.Subject)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if me.ID != info.ID || me.Name == nil || *me.Name != "Test User" {
		t.Errorf("unexpected current identity %+v", me)
	}

	refreshed, err := e.svc.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken != "" {
		t.Errorf("expected access token only, got %+v", refreshed)
	}

	if err := e.svc.Logout(ctx, claims.Subject); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := e.svc.Logout(ctx, claims.Subject); err != nil {
		t.Errorf("expected second logout to succeed, got %v", err)
	}
	if _, err := e.svc.Refresh(ctx, tokens.RefreshToken); !apperrors.HasCode(err, apperrors.ErrCodeRefreshTokenInvalid) {
		t.Errorf("expected REFRESH_TOKEN_INVALID after logout, got %v", err)
	}

	// Access tokens are not revoked by logout.
	if _, err := e.issuer.Validate(tokens.AccessToken); err != nil {
		t.Errorf("expected access token to stay valid, got %v", err)
	}
}

func TestRegisterLoginCurrentLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	name := "u1"
	info, err := e.svc.Register(ctx, Registration{Email: "a@x.com", Name: &name, Password: "pw1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tokens, err := e.svc.LoginWithPassword(ctx, "a@x.com", "pw1")
	if err != nil {
		t.Fatalf("LoginWithPassword: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected access and refresh tokens, got %+v", tokens)
	}

	if _, err := e.svc.LoginWithPassword(ctx, "a@x.com", "pw2"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected INVALID_LOGIN, got %v", err)
	}

	claims, err := e.issuer.Validate(tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	me, err := e.svc.Current(ctx, claims.Subject)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if me.ID != info.ID || me.Email != "a@x.com" {
		t.Errorf("unexpected current identity %+v", me)
	}
	if me.Groups == nil || len(me.Groups) != 0 {
		t.Errorf("expected empty group list, got %#v", me.Groups)
	}

	if err := e.svc.Logout(ctx, claims.Subject); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := e.svc.Refresh(ctx, tokens.RefreshToken); !apperrors.HasCode(err, apperrors.ErrCodeRefreshTokenInvalid) {
		t.Errorf("expected REFRESH_TOKEN_INVALID after logout, got %v", err)
	}
}

func TestSecondLoginSupersedesRefreshToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "student@itmo.ru", "password")

	first, _ := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password")
	second, err := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if _, err := e.svc.Refresh(ctx, first.RefreshToken); !apperrors.HasCode(err, apperrors.ErrCodeRefreshTokenInvalid) {
		t.Errorf("expected superseded token to fail, got %v", err)
	}
	if _, err := e.svc.Refresh(ctx, second.RefreshToken); err != nil {
		t.Errorf("expected latest token to work, got %v", err)
	}
}

func TestRegisterFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "student@itmo.ru", "password")

	tests := []struct {
		name string
		reg  Registration
		code apperrors.ErrorCode
	}{
		{"duplicate email", Registration{Email: "STUDENT@itmo.ru", Password: "password"}, apperrors.ErrCodeAlreadyExists},
		{"bad email", Registration{Email: "not-an-email", Password: "password"}, apperrors.ErrCodeInvalidInput},
		{"empty password", Registration{Email: "new@itmo.ru", Password: ""}, apperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Register(ctx, tt.reg)
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if appErr.HTTPStatus != 400 {
				t.Errorf("expected status 400, got %d", appErr.HTTPStatus)
			}
		})
	}

	// A failed registration leaves nothing behind.
	if _, err := e.identities.GetByEmail(ctx, "new@itmo.ru"); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected no identity after failed registration, got %v", err)
	}
}

func TestCurrent_Inactive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	info := e.register(t, "student@itmo.ru", "password")
	subject := info.ID.String()

	if _, err := e.svc.Current(ctx, "not-a-uuid"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidToken) {
		t.Errorf("expected INVALID_TOKEN for malformed subject, got %v", err)
	}
	if _, err := e.svc.Current(ctx, uuid.NewString()); !apperrors.HasCode(err, apperrors.ErrCodeInactiveIdentity) {
		t.Errorf("expected INACTIVE_IDENTITY for unknown subject, got %v", err)
	}

	if err := e.svc.DisableIdentity(ctx, info.ID); err != nil {
		t.Fatalf("DisableIdentity: %v", err)
	}
	if _, err := e.svc.Current(ctx, subject); !apperrors.HasCode(err, apperrors.ErrCodeInactiveIdentity) {
		t.Errorf("expected INACTIVE_IDENTITY when disabled, got %v", err)
	}
	if _, err := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected INVALID_LOGIN when disabled, got %v", err)
	}

	if err := e.svc.EnableIdentity(ctx, info.ID); err != nil {
		t.Fatalf("EnableIdentity: %v", err)
	}
	if _, err := e.svc.Current(ctx, subject); err != nil {
		t.Errorf("expected active identity after enable, got %v", err)
	}
}

func TestResetPasswordKeepsAccessTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	info := e.register(t, "student@itmo.ru", "password")
	tokens, _ := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password")

	if err := e.svc.ResetPassword(ctx, info.ID, "new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := e.issuer.Validate(tokens.AccessToken); err != nil {
		t.Errorf("expected earlier access token to stay valid, got %v", err)
	}
	if _, err := e.svc.Refresh(ctx, tokens.RefreshToken); err != nil {
		t.Errorf("expected refresh token to stay valid, got %v", err)
	}
	if _, err := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected old password to fail, got %v", err)
	}
	if _, err := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "new-password"); err != nil {
		t.Errorf("expected new password to work, got %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "student@itmo.ru", "password")
	tokens, _ := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password")

	e.clock.Advance(31 * time.Minute)
	if _, err := e.issuer.Validate(tokens.AccessToken); !apperrors.HasCode(err, apperrors.ErrCodeTokenExpired) {
		t.Errorf("expected TOKEN_EXPIRED, got %v", err)
	}
	refreshed, err := e.svc.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := e.issuer.Validate(refreshed.AccessToken); err != nil {
		t.Errorf("expected refreshed token to be valid, got %v", err)
	}
}

func TestDeleteIdentity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	info := e.register(t, "student@itmo.ru", "password")
	tokens, _ := e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password")

	if err := e.svc.DeleteIdentity(ctx, info.ID); err != nil {
		t.Fatalf("DeleteIdentity: %v", err)
	}
	if _, err := e.svc.Refresh(ctx, tokens.RefreshToken); !apperrors.HasCode(err, apperrors.ErrCodeRefreshTokenInvalid) {
		t.Errorf("expected REFRESH_TOKEN_INVALID, got %v", err)
	}
	if _, err := e.svc.Current(ctx, info.ID.String()); !apperrors.HasCode(err, apperrors.ErrCodeInactiveIdentity) {
		t.Errorf("expected INACTIVE_IDENTITY, got %v", err)
	}
	if err := e.svc.DeleteIdentity(ctx, uuid.New()); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for unknown identity, got %v", err)
	}

	// The email can be registered again.
	again := e.register(t, "student@itmo.ru", "password")
	if again.ID == info.ID {
		t.Error("expected a new identity")
	}
}

func TestAuthorize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	info := e.register(t, "student@itmo.ru", "password")
	guard := authz.MustGuard(e.identities, "test-group", "staff")

	if err := e.svc.Authorize(ctx, guard, info.ID.String()); !apperrors.HasCode(err, apperrors.ErrCodeForbidden) {
		t.Errorf("expected FORBIDDEN outside groups, got %v", err)
	}

	if err := e.svc.AddToGroup(ctx, info.ID, "test-group"); err != nil {
		t.Fatalf("AddToGroup: %v", err)
	}
	if err := e.svc.AddToGroup(ctx, info.ID, "test-group"); err != nil {
		t.Fatalf("AddToGroup again: %v", err)
	}
	if err := e.svc.Authorize(ctx, guard, info.ID.String()); err != nil {
		t.Errorf("expected access in test-group, got %v", err)
	}
	me, _ := e.svc.Current(ctx, info.ID.String())
	if len(me.Groups) != 1 || me.Groups[0].Name != "test-group" {
		t.Errorf("expected one group, got %+v", me.Groups)
	}

	if err := e.svc.RemoveFromGroup(ctx, info.ID, "test-group"); err != nil {
		t.Fatalf("RemoveFromGroup: %v", err)
	}
	if err := e.svc.RemoveFromGroup(ctx, info.ID, "no-such-group"); err != nil {
		t.Errorf("expected removing from a missing group to be a no-op, got %v", err)
	}
	if err := e.svc.Authorize(ctx, guard, info.ID.String()); !apperrors.HasCode(err, apperrors.ErrCodeForbidden) {
		t.Errorf("expected FORBIDDEN after removal, got %v", err)
	}

	_ = e.svc.DisableIdentity(ctx, info.ID)
	if err := e.svc.Authorize(ctx, guard, info.ID.String()); !apperrors.HasCode(err, apperrors.ErrCodeInactiveIdentity) {
		t.Errorf("expected INACTIVE_IDENTITY before the group check, got %v", err)
	}
}

func TestFederatedLogin(t *testing.T) {
	p := oidctest.New(t)
	verifier := oidc.NewVerifier(oidc.Config{Enabled: true, Issuer: p.Issuer(), ClientID: oidctest.ClientID}, p.Server.Client())

	models := append(identity.Models(), credential.Models()...)
	db := dbtest.Open(t, append(models, session.Models()...)...)
	issuer, _ := jwt.NewIssuer(jwt.Config{Secret: "0123456789abcdef0123456789abcdef"})
	identities := identity.NewStore(db)
	hasher := password.NewHasher(password.Config{Argon2Memory: 1024, BcryptCost: bcrypt.MinCost})
	passwords := credential.NewPassword(db, identities, hasher, logger.NewNop())
	federated := credential.NewFederated(db, identities, verifier, logger.NewNop())
	registry := credential.NewRegistry(passwords, federated)
	sessions := session.NewRefreshStore(db, identities, issuer, time.Hour, logger.NewNop())
	svc := New(db, identities, registry, passwords, issuer, sessions, logger.NewNop(), WithFederated(federated))
	ctx := context.Background()

	info, err := svc.Register(ctx, Registration{Email: "student@itmo.ru", Password: "password"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	idToken := p.IDToken(t, "sso-42", map[string]interface{}{"email": "student@itmo.ru"})

	if _, err := svc.LoginFederated(ctx, idToken); !apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
		t.Errorf("expected INVALID_LOGIN before linking, got %v", err)
	}
	if err := svc.LinkFederated(ctx, info.ID.String(), idToken); err != nil {
		t.Fatalf("LinkFederated: %v", err)
	}
	tokens, err := svc.LoginFederated(ctx, idToken)
	if err != nil {
		t.Fatalf("LoginFederated: %v", err)
	}
	claims, err := issuer.Validate(tokens.AccessToken)
	if err != nil || claims.Subject != info.ID.String() {
		t.Errorf("expected token for %s, got %+v (%v)", info.ID, claims, err)
	}

	me, _ := svc.Current(ctx, info.ID.String())
	if len(me.Methods) != 2 {
		t.Errorf("expected password and federated methods, got %v", me.Methods)
	}
}

func TestLinkFederated_NotConfigured(t *testing.T) {
	e := newEnv(t)
	info := e.register(t, "student@itmo.ru", "password")
	err := e.svc.LinkFederated(context.Background(), info.ID.String(), "token")
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidAuthenticationMethod) {
		t.Errorf("expected INVALID_AUTHENTICATION_METHOD, got %v", err)
	}
	if _, err := e.svc.LoginFederated(context.Background(), "token"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidAuthenticationMethod) {
		t.Errorf("expected INVALID_AUTHENTICATION_METHOD, got %v", err)
	}
}

func TestOperationOutcomesAreCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	e := newEnv(t, WithMetrics(metrics))
	ctx := context.Background()
	e.register(t, "student@itmo.ru", "password")
	_, _ = e.svc.LoginWithPassword(ctx, "student@itmo.ru", "password")
	_, _ = e.svc.LoginWithPassword(ctx, "student@itmo.ru", "nope-nope")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != "auth.operations" || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(observability.AttrOperation)
				outcome, _ := dp.Attributes.Value(observability.AttrOutcome)
				got[op.AsString()+"/"+outcome.AsString()] += dp.Value
			}
		}
	}
	want := map[string]int64{
		OpRegister + "/success":    1,
		OpLogin + "/success":       1,
		OpLogin + "/invalid_login": 1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: expected %d, got %d (all: %v)", k, v, got[k], got)
		}
	}
}
