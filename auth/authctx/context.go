// Package authctx carries validated access token claims through a request
// context.
//
//	ctx = authctx.WithClaims(ctx, claims) // bearer middleware
//	sub, ok := authctx.Subject(ctx)       // handlers
package authctx

import (
	"context"

	"github.com/guiqiqi/itmo-moodle-agent/auth/jwt"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

type claimsKey struct{}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// Claims returns the claims stored by WithClaims.
func Claims(ctx context.Context) (*jwt.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*jwt.Claims)
	return c, ok && c != nil
}

// Subject returns the identity id of the authenticated caller.
func Subject(ctx context.Context) (string, bool) {
	c, ok := Claims(ctx)
	if !ok {
		return "", false
	}
	return c.Subject, true
}

// RequireSubject is Subject that reports a missing caller as INVALID_TOKEN.
func RequireSubject(ctx context.Context) (string, error) {
	sub, ok := Subject(ctx)
	if !ok {
		return "", apperrors.InvalidToken()
	}
	return sub, nil
}
