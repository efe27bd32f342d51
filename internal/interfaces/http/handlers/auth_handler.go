// Package handlers implements the HTTP endpoints.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wardenauth/warden/internal/application/service"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/interfaces/http/middleware"
	"github.com/wardenauth/warden/pkg/errors"
)

// AuthHandler exposes the direct authentication operations.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.CodeInvalidArgument, "invalid login request"))
		return
	}

	tokens, err := h.auth.Login(c.Request.Context(), &req, meta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Logout handles POST /api/v1/auth/logout. Always succeeds: a dead
// authority or an unknown token still results in a local logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.CurrentToken(c)
	if token == "" {
		// Route is not behind Authenticate; pull the header directly.
		if t, err := bearerToken(c); err == nil {
			token = t
		}
	}
	if token != "" {
		h.auth.Logout(c.Request.Context(), token, meta(c))
	}
	c.Status(http.StatusNoContent)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.CodeInvalidArgument, "invalid refresh request"))
		return
	}

	tokens, err := h.auth.RefreshToken(c.Request.Context(), req.RefreshToken, meta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Validate handles POST /api/v1/auth/validate. Invalid tokens yield a
// 200 with a tagged result; only an authority outage is an error.
func (h *AuthHandler) Validate(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.CodeInvalidArgument, "invalid validate request"))
		return
	}

	result, err := h.auth.ValidateToken(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Generate handles POST /api/v1/admin/token/generate, the privileged
// service-to-service issuance path. The admin middleware chain guards
// the route.
func (h *AuthHandler) Generate(c *gin.Context) {
	var input models.GenerateTokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, errors.Wrap(err, errors.CodeInvalidArgument, "invalid generate request"))
		return
	}

	tokens, err := h.auth.GenerateToken(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// Me handles GET /api/v1/me, returning the authenticated identity.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		respondError(c, errors.New(errors.CodeUnauthenticated, "no authenticated identity"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// UserInfo handles GET /api/v1/userinfo. Unlike Me it asks the
// authority directly, so the answer reflects the live session rather
// than a cached validation.
func (h *AuthHandler) UserInfo(c *gin.Context) {
	user, err := h.auth.UserInfo(c.Request.Context(), middleware.CurrentToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func respondError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), errors.ToResponse(err))
}

func meta(c *gin.Context) *models.RequestMeta {
	return &models.RequestMeta{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Path:      c.Request.URL.Path,
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New(errors.CodeUnauthenticated, "malformed authorization header")
	}
	return parts[1], nil
}
