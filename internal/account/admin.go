package account

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/credential"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// ResetPassword replaces the identity's password. Issued access tokens and
// the refresh token stay valid.
func (s *Service) ResetPassword(ctx context.Context, identityID uuid.UUID, newPassword string) error {
	if err := s.passwords.Reset(ctx, identityID, newPassword); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("Password reset", logger.Fields("identity_id", identityID.String()))
	return nil
}

// DisableIdentity blocks logins and refreshes for the identity and drops
// its refresh token.
func (s *Service) DisableIdentity(ctx context.Context, identityID uuid.UUID) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.Disable(ctx, identityID); err != nil {
			return err
		}
		return s.sessions.Destroy(ctx, identityID)
	})
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("Identity disabled", logger.Fields("identity_id", identityID.String()))
	return nil
}

// EnableIdentity reverses DisableIdentity.
func (s *Service) EnableIdentity(ctx context.Context, identityID uuid.UUID) error {
	return s.identities.Enable(ctx, identityID)
}

// DeleteIdentity removes every credential and the refresh token, then
// soft-deletes the identity.
func (s *Service) DeleteIdentity(ctx context.Context, identityID uuid.UUID) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.identities.Get(ctx, identityID); err != nil {
			return err
		}
		if err := s.registry.DeleteAll(ctx, identityID); err != nil {
			return err
		}
		if err := s.sessions.Destroy(ctx, identityID); err != nil {
			return err
		}
		return s.identities.Delete(ctx, identityID)
	})
	if err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("Identity deleted", logger.Fields("identity_id", identityID.String()))
	return nil
}

// LinkFederated binds the provider account behind idToken to the identity.
func (s *Service) LinkFederated(ctx context.Context, subject, idToken string) error {
	if s.federated == nil {
		return apperrors.InvalidAuthenticationMethod(int(credential.MethodFederated))
	}
	ident, err := s.activeIdentity(ctx, subject)
	if err != nil {
		return err
	}
	if _, err := s.federated.Create(ctx, ident, idToken); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("Federated credential linked", logger.Fields("identity_id", subject))
	return nil
}

// EnsureGroup returns the group called name, creating it if needed.
func (s *Service) EnsureGroup(ctx context.Context, name string, description *string) (*identity.Group, error) {
	g, err := s.identities.GetGroupByName(ctx, name)
	if err == nil {
		return g, nil
	}
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil, err
	}
	return s.identities.CreateGroup(ctx, name, description)
}

// AddToGroup adds the identity to the group called name, creating the
// group if needed. Idempotent.
func (s *Service) AddToGroup(ctx context.Context, identityID uuid.UUID, name string) error {
	g, err := s.EnsureGroup(ctx, name, nil)
	if err != nil {
		return err
	}
	return s.identities.AddMember(ctx, identityID, g.ID)
}

// RemoveFromGroup removes the identity from the group called name.
// Idempotent.
func (s *Service) RemoveFromGroup(ctx context.Context, identityID uuid.UUID, name string) error {
	g, err := s.identities.GetGroupByName(ctx, name)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.identities.RemoveMember(ctx, identityID, g.ID)
}
