package database

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"driver: bad connection",
	"database is locked",
}

// IsConnectionError reports whether err looks like a transient connection
// failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range connectionPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsNotFound reports a GORM record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports a unique-constraint violation. Relies on
// gorm.Config.TranslateError, which New always sets.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// FromDatabase converts a database error to an AppError. AppErrors pass
// through unchanged.
func FromDatabase(err error, resource string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	switch {
	case IsNotFound(err):
		return apperrors.NotFound(resource, "")
	case IsDuplicate(err):
		return apperrors.AlreadyExists(resource).WithCause(err)
	case IsConnectionError(err):
		return apperrors.New(apperrors.ErrCodeDatabaseError, "database is temporarily unavailable", http.StatusServiceUnavailable).
			WithCause(err)
	}
	return apperrors.DatabaseError(err)
}

// Translate is FromDatabase returning a plain error, nil when err is nil.
func Translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	return FromDatabase(err, resource)
}
