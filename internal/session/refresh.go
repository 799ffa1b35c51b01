// Package session keeps the long-lived refresh token that lets an identity
// mint new access tokens without presenting credentials again.
//
// Each identity holds at most one refresh token. Creating a new one
// replaces the old row, so the previous content stops working at once.
// Refreshing does not rotate the token.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/guiqiqi/itmo-moodle-agent/auth/jwt"
	"github.com/guiqiqi/itmo-moodle-agent/auth/password"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// tokenBytes is the amount of randomness in a refresh token (64 hex chars).
const tokenBytes = 32

// RefreshToken is the stored refresh token of one identity.
type RefreshToken struct {
	IdentityID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"identity_id"`
	Content     string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	ValidBefore time.Time `gorm:"not null" json:"valid_before"`
}

// TableName overrides the gorm table name.
func (RefreshToken) TableName() string { return "refresh_tokens" }

// Expired reports whether the token is past its validity window at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ValidBefore.Before(now)
}

// Models lists the tables owned by this package for auto-migration.
func Models() []interface{} {
	return []interface{}{&RefreshToken{}}
}

// Option configures a RefreshStore.
type Option func(*RefreshStore)

// WithClock overrides the time source.
func WithClock(c jwt.Clock) Option {
	return func(s *RefreshStore) { s.now = c }
}

// RefreshStore persists refresh tokens and exchanges them for access tokens.
type RefreshStore struct {
	db         *database.DB
	identities *identity.Store
	issuer     *jwt.Issuer
	ttl        time.Duration
	now        jwt.Clock
	log        *logger.Logger
}

// NewRefreshStore creates a RefreshStore whose tokens live for ttl.
func NewRefreshStore(db *database.DB, identities *identity.Store, issuer *jwt.Issuer, ttl time.Duration, log *logger.Logger, opts ...Option) *RefreshStore {
	s := &RefreshStore{
		db:         db,
		identities: identities,
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
		log:        log.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the refresh token lifetime.
func (s *RefreshStore) TTL() time.Duration { return s.ttl }

// Create issues a fresh refresh token for identityID, replacing any
// existing one.
func (s *RefreshStore) Create(ctx context.Context, identityID uuid.UUID) (*RefreshToken, error) {
	content, err := password.GenerateToken(tokenBytes)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	now := s.now().UTC()
	tok := &RefreshToken{
		IdentityID:  identityID,
		Content:     content,
		CreatedAt:   now,
		ValidBefore: now.Add(s.ttl),
	}
	err = s.db.Conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "created_at", "valid_before"}),
	}).Create(tok).Error
	if err != nil {
		return nil, database.Translate(err, "refresh token")
	}
	return tok, nil
}

// get returns the refresh token currently held by identityID.
func (s *RefreshStore) get(ctx context.Context, identityID uuid.UUID) (*RefreshToken, error) {
	var tok RefreshToken
	if err := s.db.Conn(ctx).First(&tok, "identity_id = ?", identityID).Error; err != nil {
		return nil, database.Translate(err, "refresh token")
	}
	return &tok, nil
}

// Refresh exchanges content for a new access token. The refresh token
// itself is left unchanged.
func (s *RefreshStore) Refresh(ctx context.Context, content string) (*jwt.AccessToken, error) {
	if content == "" {
		return nil, apperrors.RefreshTokenInvalid()
	}
	var tok RefreshToken
	err := s.db.Conn(ctx).Where("content = ?", content).First(&tok).Error
	if database.IsNotFound(err) {
		return nil, apperrors.RefreshTokenInvalid()
	}
	if err != nil {
		return nil, database.Translate(err, "refresh token")
	}
	if tok.Expired(s.now()) {
		s.log.Debug("Refresh token expired", logger.Fields("identity_id", tok.IdentityID.String()))
		return nil, apperrors.RefreshTokenInvalid()
	}

	owner, err := s.identities.Get(ctx, tok.IdentityID)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil, apperrors.RefreshTokenInvalid()
	}
	if err != nil {
		return nil, err
	}
	if !owner.Active() {
		return nil, apperrors.RefreshTokenInvalid()
	}

	access, err := s.issuer.Issue(owner.ID.String())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return access, nil
}

// Destroy removes the refresh token of identityID. Destroying an absent
// token is not an error.
func (s *RefreshStore) Destroy(ctx context.Context, identityID uuid.UUID) error {
	err := s.db.Conn(ctx).Where("identity_id = ?", identityID).Delete(&RefreshToken{}).Error
	return database.Translate(err, "refresh token")
}

// PurgeExpired deletes every token past its validity window and returns
// how many rows were removed.
func (s *RefreshStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.Conn(ctx).Where("valid_before < ?", s.now().UTC()).Delete(&RefreshToken{})
	if res.Error != nil {
		return 0, database.Translate(res.Error, "refresh token")
	}
	return res.RowsAffected, nil
}
