// Package api exposes the account and task operations as gin routes. The
// caller mounts them under /api/{version}.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/guiqiqi/itmo-moodle-agent/auth"
	"github.com/guiqiqi/itmo-moodle-agent/authz"
	"github.com/guiqiqi/itmo-moodle-agent/internal/account"
	"github.com/guiqiqi/itmo-moodle-agent/internal/task"
	"github.com/guiqiqi/itmo-moodle-agent/observability"
	"github.com/guiqiqi/itmo-moodle-agent/resilience"
	"github.com/guiqiqi/itmo-moodle-agent/server/middleware"
)

// ConfidentialGroup is the group allowed on GET /auth/confidential.
const ConfidentialGroup = "test-group"

// Deps holds what the routes need.
type Deps struct {
	Accounts *account.Service
	Tokens   auth.TokenValidator
	// Tasks is optional; without it GET /task/:id is not registered.
	Tasks   *task.Tracker
	Metrics *observability.Metrics
	// LoginLimit throttles the login routes per client address.
	LoginLimit resilience.RateLimiterConfig
	// Confidential guards GET /auth/confidential. Nil leaves the route out.
	Confidential *authz.Guard
	// Federated registers the OIDC login and link routes.
	Federated bool
}

// Register mounts every route on rg.
func Register(rg *gin.RouterGroup, d Deps) {
	rg.Use(middleware.Metrics(d.Metrics))
	bearer := middleware.Bearer(d.Tokens)
	throttle := middleware.Throttle(d.LoginLimit)

	a := &authHandler{accounts: d.Accounts, guard: d.Confidential}
	g := rg.Group("/auth")
	g.POST("/basic/login", throttle, a.login)
	g.POST("/basic/register", a.register)
	g.GET("/me", bearer, a.me)
	g.POST("/token/refresh", a.refresh)
	g.POST("/logout", bearer, a.logout)
	if d.Confidential != nil {
		g.GET("/confidential", bearer, a.confidential)
	}
	if d.Federated {
		g.POST("/federated/login", throttle, a.federatedLogin)
		g.POST("/federated/link", bearer, a.federatedLink)
	}

	if d.Tasks != nil {
		t := &taskHandler{tracker: d.Tasks}
		rg.GET("/task/:id", bearer, t.get)
	}
}
