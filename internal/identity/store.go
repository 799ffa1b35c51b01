// Package identity stores identities, groups and group memberships.
//
// An identity's enabled credential methods are a bitmask: bit n is set when
// a credential of method id n is bound to it. Credential variants keep the
// bit in step with their own rows inside the same transaction.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/guiqiqi/itmo-moodle-agent/database"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

// Store persists identities and groups.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new active identity. The email must not belong to
// another non-deleted identity.
func (s *Store) Create(ctx context.Context, in NewIdentity) (*Identity, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, apperrors.MissingField("email")
	}
	now := s.now().UTC()
	ident := &Identity{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: in.DisplayName,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		var n int64
		err := s.db.Conn(ctx).Model(&Identity{}).
			Where("email = ? AND is_deleted = ?", email, false).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.AlreadyExists("identity")
		}
		return s.db.Conn(ctx).Create(ident).Error
	})
	if err != nil {
		return nil, database.Translate(err, "identity")
	}
	return ident, nil
}

// Get returns the identity with id, deleted or not.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Identity, error) {
	var ident Identity
	if err := s.db.Conn(ctx).First(&ident, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "identity", id.String())
	}
	return &ident, nil
}

// GetByEmail returns the non-deleted identity with email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	var ident Identity
	err := s.db.Conn(ctx).
		Where("email = ? AND is_deleted = ?", NormalizeEmail(email), false).
		First(&ident).Error
	if err != nil {
		return nil, notFound(err, "identity", "")
	}
	return &ident, nil
}

// Disable blocks authentication without deleting the identity.
func (s *Store) Disable(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx, id, map[string]interface{}{"is_disabled": true})
}

// Enable reverses Disable.
func (s *Store) Enable(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx, id, map[string]interface{}{"is_disabled": false})
}

// Delete soft-deletes the identity. Its email becomes free for reuse.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx, id, map[string]interface{}{
		"is_deleted": true,
		"deleted_at": s.now().UTC(),
	})
}

// BindMethod sets bit method on the identity. Idempotent.
func (s *Store) BindMethod(ctx context.Context, id uuid.UUID, method uint8) error {
	if method >= MaxMethods {
		return apperrors.InvalidAuthenticationMethod(int(method))
	}
	return s.update(ctx, id, map[string]interface{}{
		"enabled_methods": gorm.Expr("enabled_methods | ?", int64(1)<<method),
	})
}

// UnbindMethod clears bit method on the identity. Idempotent.
func (s *Store) UnbindMethod(ctx context.Context, id uuid.UUID, method uint8) error {
	if method >= MaxMethods {
		return apperrors.InvalidAuthenticationMethod(int(method))
	}
	mask := int64(^(uint32(1) << method))
	return s.update(ctx, id, map[string]interface{}{
		"enabled_methods": gorm.Expr("enabled_methods & ?", mask),
	})
}

func (s *Store) update(ctx context.Context, id uuid.UUID, values map[string]interface{}) error {
	values["updated_at"] = s.now().UTC()
	res := s.db.Conn(ctx).Model(&Identity{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return database.Translate(res.Error, "identity")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("identity", id.String())
	}
	return nil
}

// CreateGroup inserts a group with a unique name.
func (s *Store) CreateGroup(ctx context.Context, name string, description *string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.MissingField("name")
	}
	g := &Group{ID: uuid.New(), Name: name, Description: description, CreatedAt: s.now().UTC()}
	if err := s.db.Conn(ctx).Create(g).Error; err != nil {
		return nil, database.Translate(err, "group")
	}
	return g, nil
}

// GetGroup returns a group by id.
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*Group, error) {
	var g Group
	if err := s.db.Conn(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "group", id.String())
	}
	return &g, nil
}

// GetGroupByName returns a group by name.
func (s *Store) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	var g Group
	if err := s.db.Conn(ctx).First(&g, "name = ?", name).Error; err != nil {
		return nil, notFound(err, "group", name)
	}
	return &g, nil
}

// ListGroups returns every group ordered by name.
func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := s.db.Conn(ctx).Order("name").Find(&groups).Error; err != nil {
		return nil, database.Translate(err, "group")
	}
	return groups, nil
}

// DeleteGroup removes a group and its memberships.
func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.db.Conn(ctx).Where("group_id = ?", id).Delete(&Membership{}).Error; err != nil {
			return database.Translate(err, "membership")
		}
		res := s.db.Conn(ctx).Where("id = ?", id).Delete(&Group{})
		if res.Error != nil {
			return database.Translate(res.Error, "group")
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("group", id.String())
		}
		return nil
	})
}

// AddMember puts an identity in a group. Adding an existing member is a
// no-op.
func (s *Store) AddMember(ctx context.Context, identityID, groupID uuid.UUID) error {
	m := &Membership{IdentityID: identityID, GroupID: groupID, JoinedAt: s.now().UTC()}
	err := s.db.Conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
	return database.Translate(err, "membership")
}

// RemoveMember takes an identity out of a group. Removing a non-member is a
// no-op.
func (s *Store) RemoveMember(ctx context.Context, identityID, groupID uuid.UUID) error {
	err := s.db.Conn(ctx).
		Where("identity_id = ? AND group_id = ?", identityID, groupID).
		Delete(&Membership{}).Error
	return database.Translate(err, "membership")
}

// GroupsOf returns the groups an identity belongs to, ordered by name.
func (s *Store) GroupsOf(ctx context.Context, identityID uuid.UUID) ([]Group, error) {
	var groups []Group
	err := s.db.Conn(ctx).
		Joins("JOIN memberships ON memberships.group_id = groups.id").
		Where("memberships.identity_id = ?", identityID).
		Order("groups.name").
		Find(&groups).Error
	if err != nil {
		return nil, database.Translate(err, "group")
	}
	return groups, nil
}

// MembersOf returns the non-deleted identities in a group.
func (s *Store) MembersOf(ctx context.Context, groupID uuid.UUID) ([]Identity, error) {
	var members []Identity
	err := s.db.Conn(ctx).
		Joins("JOIN memberships ON memberships.identity_id = identities.id").
		Where("memberships.group_id = ? AND identities.is_deleted = ?", groupID, false).
		Order("identities.email").
		Find(&members).Error
	if err != nil {
		return nil, database.Translate(err, "identity")
	}
	return members, nil
}

// GroupNames implements authz.GroupSource. A malformed identityID is
// INVALID_TOKEN since it can only come from a token subject.
func (s *Store) GroupNames(ctx context.Context, identityID string) ([]string, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return nil, apperrors.InvalidToken().WithCause(err)
	}
	var names []string
	err = s.db.Conn(ctx).Model(&Group{}).
		Joins("JOIN memberships ON memberships.group_id = groups.id").
		Where("memberships.identity_id = ?", id).
		Pluck("groups.name", &names).Error
	if err != nil {
		return nil, database.Translate(err, "group")
	}
	return names, nil
}

func notFound(err error, resource, id string) error {
	if database.IsNotFound(err) {
		return apperrors.NotFound(resource, id)
	}
	return database.Translate(err, resource)
}
