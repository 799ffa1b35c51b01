package auth

import "github.com/guiqiqi/itmo-moodle-agent/auth/jwt"

// TokenValidator validates a bearer token. *jwt.Issuer implements it; the
// HTTP bearer middleware depends on this interface only.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(token string) (*jwt.Claims, error)

// Validate implements TokenValidator.
func (f TokenValidatorFunc) Validate(token string) (*jwt.Claims, error) {
	return f(token)
}

var _ TokenValidator = (*jwt.Issuer)(nil)
