package api

import (
	"github.com/gin-gonic/gin"

	"github.com/guiqiqi/itmo-moodle-agent/auth/authctx"
	"github.com/guiqiqi/itmo-moodle-agent/authz"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/account"
	"github.com/guiqiqi/itmo-moodle-agent/server"
	"github.com/guiqiqi/itmo-moodle-agent/validation"
)

// loginRequest accepts the OAuth2 password form (username) as well as a
// JSON body that names the field email.
type loginRequest struct {
	Username string `form:"username" json:"username" validate:"required_without=Email"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password" validate:"required"`
}

func (r loginRequest) email() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

type idTokenRequest struct {
	IDToken string `form:"id_token" json:"id_token" validate:"required"`
}

type loggedOut struct {
	Detail string `json:"detail"`
}

type authHandler struct {
	accounts *account.Service
	guard    *authz.Guard
}

// bind decodes the body by content type and validates it.
func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBind(dst); err != nil {
		return apperrors.Validation("malformed request body").WithCause(err)
	}
	return validation.Validate(dst)
}

func (h *authHandler) login(c *gin.Context) {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	tokens, err := h.accounts.LoginWithPassword(c.Request.Context(), req.email(), req.Password)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, tokens)
}

func (h *authHandler) me(c *gin.Context) {
	ctx := c.Request.Context()
	subject, err := authctx.RequireSubject(ctx)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	info, err := h.accounts.Current(ctx, subject)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, info)
}

func (h *authHandler) register(c *gin.Context) {
	var reg account.Registration
	if err := c.ShouldBind(&reg); err != nil {
		server.RespondWithError(c, apperrors.Validation("malformed request body").WithCause(err))
		return
	}
	info, err := h.accounts.Register(c.Request.Context(), reg)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, info)
}

func (h *authHandler) refresh(c *gin.Context) {
	token := c.Query("refresh_token")
	if token == "" {
		server.RespondWithError(c, apperrors.MissingField("refresh_token"))
		return
	}
	tokens, err := h.accounts.Refresh(c.Request.Context(), token)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, tokens)
}

func (h *authHandler) logout(c *gin.Context) {
	ctx := c.Request.Context()
	subject, err := authctx.RequireSubject(ctx)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.accounts.Logout(ctx, subject); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, loggedOut{Detail: "logged out"})
}

// confidential lists the caller's groups, for members of ConfidentialGroup
// only.
func (h *authHandler) confidential(c *gin.Context) {
	ctx := c.Request.Context()
	subject, err := authctx.RequireSubject(ctx)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.accounts.Authorize(ctx, h.guard, subject); err != nil {
		server.RespondWithError(c, err)
		return
	}
	info, err := h.accounts.Current(ctx, subject)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, info.Groups)
}

func (h *authHandler) federatedLogin(c *gin.Context) {
	var req idTokenRequest
	if err := bind(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	tokens, err := h.accounts.LoginFederated(c.Request.Context(), req.IDToken)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, tokens)
}

func (h *authHandler) federatedLink(c *gin.Context) {
	ctx := c.Request.Context()
	subject, err := authctx.RequireSubject(ctx)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	var req idTokenRequest
	if err := bind(c, &req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.accounts.LinkFederated(ctx, subject, req.IDToken); err != nil {
		server.RespondWithError(c, err)
		return
	}
	info, err := h.accounts.Current(ctx, subject)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, info)
}
