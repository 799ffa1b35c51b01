package errors

import (
	"fmt"
	"net/http"
)

// MoodleAuthentication reports a rejected or failed Moodle token exchange,
// or a web-service token Moodle no longer accepts.
func MoodleAuthentication(reason string) *AppError {
	return New(ErrCodeMoodleAuthentication, fmt.Sprintf("moodle authentication failed: %s", reason), http.StatusBadGateway)
}

// MoodleSiteInfoMissing is returned when a call needs the Moodle user id
// before site info has been synchronized.
func MoodleSiteInfoMissing() *AppError {
	return New(ErrCodeMoodleSiteInfoMissing, "moodle site info is not synchronized", http.StatusConflict)
}

// MoodleAPICall reports a failed web-service call.
func MoodleAPICall(function string, cause error) *AppError {
	return New(ErrCodeMoodleAPICall, fmt.Sprintf("moodle call %s failed", function), http.StatusBadGateway).
		WithDetail("function", function).
		WithCause(cause)
}
