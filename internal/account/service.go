// Package account implements the account operations exposed over HTTP:
// password and federated login, the current identity, registration,
// access token refresh, logout and group authorization, plus the
// administrative helpers built on the same stores.
package account

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/auth/jwt"
	"github.com/guiqiqi/itmo-moodle-agent/authz"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/credential"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/internal/session"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
	"github.com/guiqiqi/itmo-moodle-agent/observability"
	"github.com/guiqiqi/itmo-moodle-agent/validation"
)

// Operation names used for spans and the auth.operations counter.
const (
	OpLogin     = "auth.login"
	OpCurrent   = "auth.current"
	OpRegister  = "auth.register"
	OpRefresh   = "auth.refresh"
	OpLogout    = "auth.logout"
	OpAuthorize = "auth.authorize"
)

// Service runs account operations.
type Service struct {
	db         *database.DB
	identities *identity.Store
	registry   *credential.Registry
	passwords  *credential.Password
	federated  *credential.Federated
	issuer     *jwt.Issuer
	sessions   *session.RefreshStore
	metrics    *observability.Metrics
	log        *logger.Logger
	now        jwt.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithFederated enables binding federated credentials.
func WithFederated(f *credential.Federated) Option {
	return func(s *Service) { s.federated = f }
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for expires_in.
func WithClock(c jwt.Clock) Option {
	return func(s *Service) { s.now = c }
}

// New creates a Service.
func New(
	db *database.DB,
	identities *identity.Store,
	registry *credential.Registry,
	passwords *credential.Password,
	issuer *jwt.Issuer,
	sessions *session.RefreshStore,
	log *logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		db:         db,
		identities: identities,
		registry:   registry,
		passwords:  passwords,
		issuer:     issuer,
		sessions:   sessions,
		log:        log.WithComponent("account"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginWithPassword verifies email and password and issues an access and a
// refresh token. The refresh token replaces any earlier one.
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) (tokens *Tokens, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, OpLogin)
	op.SetAttribute(observability.AttrMethod, credential.MethodPassword.String())
	defer func() { op.End(err) }()

	ident, err := s.registry.Authenticate(ctx, credential.MethodPassword, credential.PasswordLogin{Email: email, Password: password})
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeInvalidLogin) {
			s.log.WithContext(ctx).Warn("Password login rejected", logger.Fields(logger.FieldEmail, identity.NormalizeEmail(email)))
		}
		return nil, err
	}
	return s.issueTokens(ctx, ident)
}

// LoginFederated verifies an OIDC ID token bound to an identity and issues
// tokens as LoginWithPassword does.
func (s *Service) LoginFederated(ctx context.Context, idToken string) (tokens *Tokens, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, OpLogin)
	op.SetAttribute(observability.AttrMethod, credential.MethodFederated.String())
	defer func() { op.End(err) }()

	ident, err := s.registry.Authenticate(ctx, credential.MethodFederated, credential.FederatedLogin{IDToken: idToken})
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, ident)
}

func (s *Service) issueTokens(ctx context.Context, ident *identity.Identity) (*Tokens, error) {
	access, err := s.issuer.Issue(ident.ID.String())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, err := s.sessions.Create(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("Identity logged in", logger.Fields("identity_id", ident.ID.String()))
	tokens := s.accessTokens(access)
	tokens.RefreshToken = refresh.Content
	return tokens, nil
}

func (s *Service) accessTokens(access *jwt.AccessToken) *Tokens {
	return &Tokens{
		AccessToken: access.Token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(access.ExpiresIn(s.now()).Seconds()),
		ExpiresAt:   access.Claims.ExpiresAt.UTC(),
	}
}

// Current returns the identity named by a validated access token subject,
// with its groups. Unknown, disabled and deleted identities are
// INACTIVE_IDENTITY.
func (s *Service) Current(ctx context.Context, subject string) (info *UserInfo, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, OpCurrent)
	defer func() { op.End(err) }()

	ident, err := s.activeIdentity(ctx, subject)
	if err != nil {
		return nil, err
	}
	groups, err := s.identities.GroupsOf(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	return newUserInfo(ident, groups), nil
}

// activeIdentity resolves a token subject to an active identity.
func (s *Service) activeIdentity(ctx context.Context, subject string) (*identity.Identity, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, apperrors.InvalidToken().WithCause(err)
	}
	ident, err := s.identities.Get(ctx, id)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil, apperrors.InactiveIdentity()
	}
	if err != nil {
		return nil, err
	}
	if !ident.Active() {
		return nil, apperrors.InactiveIdentity()
	}
	return ident, nil
}

// Register creates an identity with a password credential in one
// transaction. Every failure is reported with status 400.
func (s *Service) Register(ctx context.Context, reg Registration) (info *UserInfo, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, OpRegister)
	defer func() { op.End(err) }()

	if err := validation.Validate(reg); err != nil {
		return nil, err
	}

	var ident *identity.Identity
	err = s.db.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		ident, err = s.identities.Create(ctx, identity.NewIdentity{
			Email:       reg.Email,
			DisplayName: reg.Name,
			Description: reg.Description,
		})
		if err != nil {
			return err
		}
		if _, err := s.passwords.Create(ctx, ident, reg.Password); err != nil {
			return err
		}
		ident, err = s.identities.Get(ctx, ident.ID)
		return err
	})
	if err != nil {
		return nil, registrationFailed(err)
	}
	s.log.WithContext(ctx).Info("Identity registered", logger.Fields("identity_id", ident.ID.String()))
	return newUserInfo(ident, nil), nil
}

// registrationFailed keeps the error code but reports client-caused
// failures as 400.
func registrationFailed(err error) error {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.HTTPStatus >= http.StatusInternalServerError {
		return err
	}
	out := apperrors.New(appErr.Code, "user registration failed: "+appErr.Message, http.StatusBadRequest).WithCause(err)
	for k, v := range appErr.Details {
		out = out.WithDetail(k, v)
	}
	return out
}

// Refresh issues a new access token for a valid refresh token. The refresh
// token itself is unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (tokens *Tokens, err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, OpRefresh)
	defer func() { op.End(err) }()

	access, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return s.accessTokens(access), nil
}

// Logout destroys the caller's refresh token. Access tokens already issued
// stay valid until they expire. Idempotent.
func (s *Service) Logout(ctx context.Context, subject string) (err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, OpLogout)
	defer func() { op.End(err) }()

	id, err := uuid.Parse(subject)
	if err != nil {
		return apperrors.InvalidToken().WithCause(err)
	}
	if err := s.sessions.Destroy(ctx, id); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("Identity logged out", logger.Fields("identity_id", subject))
	return nil
}

// Authorize checks that subject is an active identity in any of the
// guard's groups.
func (s *Service) Authorize(ctx context.Context, guard *authz.Guard, subject string) (err error) {
	ctx, op := observability.StartOperation(ctx, s.metrics, OpAuthorize)
	defer func() { op.End(err) }()

	if _, err := s.activeIdentity(ctx, subject); err != nil {
		return err
	}
	return guard.Check(ctx, subject)
}
