package errors

import "net/http"

// InvalidAuthenticationMethod is returned when no credential variant is
// registered for a method id.
func InvalidAuthenticationMethod(method int) *AppError {
	return New(ErrCodeInvalidAuthenticationMethod, "unsupported authentication method", http.StatusBadRequest).
		WithDetail("method", method)
}

// InvalidLogin is the single user-facing answer to any credential failure.
// It never says which check failed.
func InvalidLogin() *AppError {
	return New(ErrCodeInvalidLogin, "invalid credentials", http.StatusUnauthorized)
}

// Unauthenticated is returned when a protected route is called without a
// bearer token.
func Unauthenticated() *AppError {
	return New(ErrCodeUnauthenticated, "not authenticated", http.StatusUnauthorized)
}

// TokenExpired creates a new AppError for an expired access token.
func TokenExpired() *AppError {
	return New(ErrCodeTokenExpired, "access token has expired", http.StatusUnauthorized)
}

// InvalidToken creates a new AppError for a malformed, forged or
// not-yet-valid access token.
func InvalidToken() *AppError {
	return New(ErrCodeInvalidToken, "invalid credentials", http.StatusForbidden)
}

// Forbidden creates a new AppError for forbidden access.
func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "not authorized to access this resource"
	}
	return New(ErrCodeForbidden, reason, http.StatusForbidden)
}

// RefreshTokenInvalid covers unknown, superseded, revoked and expired refresh tokens.
func RefreshTokenInvalid() *AppError {
	return New(ErrCodeRefreshTokenInvalid, "refresh token is invalid or expired", http.StatusForbidden)
}

// InactiveIdentity is returned when a valid access token belongs to a
// disabled or deleted identity.
func InactiveIdentity() *AppError {
	return New(ErrCodeInactiveIdentity, "inactive user", http.StatusUnprocessableEntity)
}
