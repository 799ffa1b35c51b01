package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
)

// Resource errors
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"
)

// Validation errors
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication and authorization errors.
const (
	// ErrCodeInvalidAuthenticationMethod is returned when no credential
	// variant is registered for the requested method id.
	ErrCodeInvalidAuthenticationMethod ErrorCode = "INVALID_AUTHENTICATION_METHOD"
	// ErrCodeUnauthenticated is a request to a protected route without a
	// bearer token.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	// ErrCodeInvalidLogin covers every credential failure: unknown account,
	// wrong secret, disabled or deleted identity.
	ErrCodeInvalidLogin ErrorCode = "INVALID_LOGIN"
	// ErrCodeTokenExpired is a validly signed access token past its exp claim.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	// ErrCodeInvalidToken is a malformed or forged access token, or one
	// issued in the future.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	// ErrCodeForbidden is an authenticated caller outside the required groups.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeRefreshTokenInvalid is an unknown, superseded or expired refresh token.
	ErrCodeRefreshTokenInvalid ErrorCode = "REFRESH_TOKEN_INVALID"
	// ErrCodeInactiveIdentity is a valid token whose identity is disabled or deleted.
	ErrCodeInactiveIdentity ErrorCode = "INACTIVE_IDENTITY"
)

// Moodle integration errors
const (
	ErrCodeMoodleAuthentication  ErrorCode = "MOODLE_AUTHENTICATION"
	ErrCodeMoodleSiteInfoMissing ErrorCode = "MOODLE_SITE_INFO_MISSING"
	ErrCodeMoodleAPICall         ErrorCode = "MOODLE_API_CALL"
)

// Internal errors
const (
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeDatabaseError:      true,
	ErrCodeMoodleAPICall:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
