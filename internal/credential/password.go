package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/auth/password"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// PasswordRecord is a stored password credential. Email is copied from the
// owner at creation and is the login name.
type PasswordRecord struct {
	IdentityID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"size:320;not null;uniqueIndex"`
	HashedSecret string    `gorm:"size:256;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (PasswordRecord) TableName() string { return "password_credentials" }

// PasswordLogin is the login material for MethodPassword.
type PasswordLogin struct {
	Email    string
	Password string
}

// Password is the email + password credential variant.
type Password struct {
	db         *database.DB
	identities *identity.Store
	hasher     *password.Hasher
	log        *logger.Logger
}

var _ Credential = (*Password)(nil)

// NewPassword creates the password variant.
func NewPassword(db *database.DB, identities *identity.Store, hasher *password.Hasher, log *logger.Logger) *Password {
	return &Password{
		db:         db,
		identities: identities,
		hasher:     hasher,
		log:        log.WithComponent("credential.password"),
	}
}

// Method returns MethodPassword.
func (p *Password) Method() Method { return MethodPassword }

// Create hashes plaintext and binds it to ident.
func (p *Password) Create(ctx context.Context, ident *identity.Identity, plaintext string) (*PasswordRecord, error) {
	hash, err := p.hasher.Hash(plaintext)
	if err != nil {
		return nil, apperrors.InvalidInput("password", err.Error())
	}
	now := time.Now().UTC()
	rec := &PasswordRecord{
		IdentityID:   ident.ID,
		Email:        ident.Email,
		HashedSecret: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = p.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.db.Conn(ctx).Create(rec).Error; err != nil {
			return database.Translate(err, "password credential")
		}
		return p.identities.BindMethod(ctx, ident.ID, uint8(MethodPassword))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Authenticate verifies a PasswordLogin.
func (p *Password) Authenticate(ctx context.Context, creds any) (*identity.Identity, error) {
	login, ok := creds.(PasswordLogin)
	if !ok {
		if ptr, isPtr := creds.(*PasswordLogin); isPtr && ptr != nil {
			login = *ptr
		} else {
			return nil, ErrUnsupportedCredentials
		}
	}
	email := identity.NormalizeEmail(login.Email)

	var rec PasswordRecord
	err := p.db.Conn(ctx).Where("email = ?", email).First(&rec).Error
	if database.IsNotFound(err) {
		_ = p.hasher.VerifyDummy(login.Password)
		return nil, apperrors.InvalidLogin()
	}
	if err != nil {
		return nil, database.Translate(err, "password credential")
	}

	if err := p.hasher.Verify(login.Password, rec.HashedSecret); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			p.log.Error("Stored password hash is unreadable", logger.Fields("identity_id", rec.IdentityID.String(), logger.FieldError, err.Error()))
		}
		return nil, apperrors.InvalidLogin()
	}

	ident, err := p.identities.Get(ctx, rec.IdentityID)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil, apperrors.InvalidLogin()
	}
	if err != nil {
		return nil, err
	}
	if !ident.Active() {
		return nil, apperrors.InvalidLogin()
	}
	return ident, nil
}

// Reset replaces the stored hash. Tokens already issued stay valid.
func (p *Password) Reset(ctx context.Context, identityID uuid.UUID, newPassword string) error {
	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.InvalidInput("password", err.Error())
	}
	res := p.db.Conn(ctx).Model(&PasswordRecord{}).
		Where("identity_id = ?", identityID).
		Updates(map[string]interface{}{"hashed_secret": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return database.Translate(res.Error, "password credential")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("password credential", identityID.String())
	}
	return nil
}

// Delete clears the method bit and removes the record. Idempotent.
func (p *Password) Delete(ctx context.Context, identityID uuid.UUID) error {
	return p.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := p.identities.UnbindMethod(ctx, identityID, uint8(MethodPassword)); err != nil &&
			!apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return err
		}
		err := p.db.Conn(ctx).Where("identity_id = ?", identityID).Delete(&PasswordRecord{}).Error
		return database.Translate(err, "password credential")
	})
}
