package middleware

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

const defaultMaxBodySize = 1 << 20

const codePayloadTooLarge apperrors.ErrorCode = "PAYLOAD_TOO_LARGE"

// BodySizeLimit restricts request bodies to maxSize ("1MB", "512KB").
// Reads past the limit fail and the handler reports the error.
func BodySizeLimit(maxSize string) Middleware {
	size := ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > size {
				writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}

// ParseSize parses "10MB", "512KB", "2GB" or a plain byte count. It returns
// def when s is empty or malformed.
func ParseSize(s string, def int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return def
	}

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1 << 30
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1 << 20
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1 << 10
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || val <= 0 {
		return def
	}
	return val * multiplier
}
