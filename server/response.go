package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

// RespondWithError writes err as an error envelope. An *apperrors.AppError
// chooses the status; anything else is a 500 INTERNAL_ERROR.
func RespondWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.JSON(status, body)
}

// AbortWithError is RespondWithError for middleware: the remaining
// handlers are skipped.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, apperrors.ErrorResponse) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.HTTPStatus, appErr.ToResponse()
	}
	return http.StatusInternalServerError, apperrors.Internal(err).ToResponse()
}

// RespondOK sends a 200 with data as the body.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
