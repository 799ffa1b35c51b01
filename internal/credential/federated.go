package credential

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/auth/oidc"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// FederatedRecord binds an identity to an account at an OpenID provider.
type FederatedRecord struct {
	IdentityID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Issuer     string    `gorm:"size:512;not null;uniqueIndex:idx_federated_issuer_subject"`
	Subject    string    `gorm:"size:255;not null;uniqueIndex:idx_federated_issuer_subject"`
	Email      string    `gorm:"size:320"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (FederatedRecord) TableName() string { return "federated_credentials" }

// FederatedLogin is the login material for MethodFederated.
type FederatedLogin struct {
	IDToken string
}

// IDTokenVerifier verifies a raw ID token. *oidc.Verifier implements it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Federated is the OpenID Connect credential variant.
type Federated struct {
	db         *database.DB
	identities *identity.Store
	verifier   IDTokenVerifier
	log        *logger.Logger
}

var _ Credential = (*Federated)(nil)

// NewFederated creates the federated variant.
func NewFederated(db *database.DB, identities *identity.Store, verifier IDTokenVerifier, log *logger.Logger) *Federated {
	return &Federated{
		db:         db,
		identities: identities,
		verifier:   verifier,
		log:        log.WithComponent("credential.federated"),
	}
}

// Method returns MethodFederated.
func (f *Federated) Method() Method { return MethodFederated }

// Create verifies idToken and binds the provider account to ident.
func (f *Federated) Create(ctx context.Context, ident *identity.Identity, idToken string) (*FederatedRecord, error) {
	tok, err := f.verifier.Verify(ctx, idToken)
	if err != nil {
		f.log.Warn("Rejected id token on bind", logger.ErrorFields("federated_bind", err))
		return nil, apperrors.InvalidLogin()
	}
	rec := &FederatedRecord{
		IdentityID: ident.ID,
		Issuer:     tok.Issuer,
		Subject:    tok.Subject,
		Email:      tok.Email,
		CreatedAt:  time.Now().UTC(),
	}
	err = f.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := f.db.Conn(ctx).Create(rec).Error; err != nil {
			return database.Translate(err, "federated credential")
		}
		return f.identities.BindMethod(ctx, ident.ID, uint8(MethodFederated))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Authenticate verifies a FederatedLogin.
func (f *Federated) Authenticate(ctx context.Context, creds any) (*identity.Identity, error) {
	login, ok := creds.(FederatedLogin)
	if !ok {
		return nil, ErrUnsupportedCredentials
	}
	tok, err := f.verifier.Verify(ctx, login.IDToken)
	if err != nil {
		f.log.Warn("Rejected id token", logger.ErrorFields("federated_login", err))
		return nil, apperrors.InvalidLogin()
	}

	var rec FederatedRecord
	err = f.db.Conn(ctx).Where("issuer = ? AND subject = ?", tok.Issuer, tok.Subject).First(&rec).Error
	if database.IsNotFound(err) {
		return nil, apperrors.InvalidLogin()
	}
	if err != nil {
		return nil, database.Translate(err, "federated credential")
	}

	ident, err := f.identities.Get(ctx, rec.IdentityID)
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

// Delete clears the method bit and removes the binding. Idempotent.
func (f *Federated) Delete(ctx context.Context, identityID uuid.UUID) error {
	return f.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := f.identities.UnbindMethod(ctx, identityID, uint8(MethodFederated)); err != nil &&
			!apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return err
		}
		err := f.db.Conn(ctx).Where("identity_id = ?", identityID).Delete(&FederatedRecord{}).Error
		return database.Translate(err, "federated credential")
	})
}
