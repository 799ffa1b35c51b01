package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guiqiqi/itmo-moodle-agent/version"
)

// Version reports build information.
func Version(service, apiVersion string) gin.HandlerFunc {
	info := version.Get(service, apiVersion)
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, info)
	}
}
