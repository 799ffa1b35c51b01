package identity

import (
	"time"

	"github.com/google/uuid"
)

// MaxMethods is the number of credential method ids an identity can hold.
const MaxMethods = 32

// Identity is a user account. Rows are never removed; Delete marks them.
type Identity struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email       string     `gorm:"size:320;not null;uniqueIndex:idx_identities_email_active,where:is_deleted = false"`
	DisplayName *string    `gorm:"size:256"`
	Description *string    `gorm:"size:1024"`
	IsDisabled  bool       `gorm:"not null"`
	IsDeleted   bool       `gorm:"not null"`
	Methods     uint32     `gorm:"column:enabled_methods;not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
}

// TableName pins the table name.
func (Identity) TableName() string { return "identities" }

// Active reports whether the identity may authenticate.
func (i *Identity) Active() bool { return !i.IsDisabled && !i.IsDeleted }

// HasMethod reports whether method bit id is set.
func (i *Identity) HasMethod(id uint8) bool {
	return id < MaxMethods && i.Methods&(1<<id) != 0
}

// EnabledMethods lists the set method ids in ascending order.
func (i *Identity) EnabledMethods() []uint8 {
	var out []uint8
	for id := uint8(0); id < MaxMethods; id++ {
		if i.HasMethod(id) {
			out = append(out, id)
		}
	}
	return out
}

// Group is a named set of identities used for authorization.
type Group struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"size:128;not null;uniqueIndex"`
	Description *string   `gorm:"size:1024"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (Group) TableName() string { return "groups" }

// Membership links an identity to a group.
type Membership struct {
	IdentityID uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	JoinedAt   time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (Membership) TableName() string { return "memberships" }

// NewIdentity is the input to Store.Create.
type NewIdentity struct {
	Email       string
	DisplayName *string
	Description *string
}

// Models lists the tables owned by this package for auto-migration.
func Models() []interface{} {
	return []interface{}{&Identity{}, &Group{}, &Membership{}}
}
