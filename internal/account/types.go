package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/guiqiqi/itmo-moodle-agent/internal/credential"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
)

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// Tokens is the result of a login or refresh. RefreshToken is empty on
// refresh because refresh tokens are not rotated.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// GroupInfo describes one group of the caller.
type GroupInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
}

// UserInfo is the public view of an identity.
type UserInfo struct {
	ID          uuid.UUID   `json:"id"`
	Email       string      `json:"email"`
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	Methods     []string    `json:"methods"`
	Groups      []GroupInfo `json:"groups"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Registration is the input of Register.
type Registration struct {
	Email       string  `json:"email" form:"email" validate:"required,email,max=320"`
	Name        *string `json:"name" form:"name" validate:"omitempty,max=256"`
	Description *string `json:"description" form:"description" validate:"omitempty,max=1024"`
	Password    string  `json:"password" form:"password" validate:"required,max=128"`
}

func newUserInfo(ident *identity.Identity, groups []identity.Group) *UserInfo {
	info := &UserInfo{
		ID:          ident.ID,
		Email:       ident.Email,
		Name:        ident.DisplayName,
		Description: ident.Description,
		Methods:     make([]string, 0, 2),
		Groups:      make([]GroupInfo, 0, len(groups)),
		CreatedAt:   ident.CreatedAt,
	}
	for _, id := range ident.EnabledMethods() {
		info.Methods = append(info.Methods, credential.Method(id).String())
	}
	for _, g := range groups {
		info.Groups = append(info.Groups, GroupInfo{ID: g.ID, Name: g.Name, Description: g.Description})
	}
	return info
}
