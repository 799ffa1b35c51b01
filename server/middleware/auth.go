package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/guiqiqi/itmo-moodle-agent/auth"
	"github.com/guiqiqi/itmo-moodle-agent/auth/authctx"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// Bearer requires an "Authorization: Bearer <token>" header and stores the
// validated claims in the request context (see authctx).
//
// A missing or non-bearer header is UNAUTHENTICATED (401). Validation
// failures keep the validator's error: TOKEN_EXPIRED (401) or
// INVALID_TOKEN (403).
func Bearer(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			abortWithError(c, apperrors.Unauthenticated())
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		ctx := authctx.WithClaims(c.Request.Context(), claims)
		ctx = logger.ContextWithUserID(ctx, claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
