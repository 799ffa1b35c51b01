package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

// abortWithError stops the gin chain with err rendered as the error
// envelope.
func abortWithError(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, apperrors.Internal(err).ToResponse())
}
