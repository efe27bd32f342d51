// Package middleware implements the identity middleware chain:
// authentication followed by role, permission, MFA and context checks.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wardenauth/warden/internal/application/hooks"
	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/pkg/constants"
	"github.com/wardenauth/warden/pkg/errors"
)

// Identity is the slice of the auth service the middleware needs.
type Identity interface {
	ResolveToken(ctx context.Context, token string) (*models.UserContext, error)
	FireUnauthorized(ctx context.Context, reason string, meta *models.RequestMeta)
	Hooks() *hooks.Manager
}

// Authenticate extracts the bearer token, resolves it to an identity
// and attaches both to the request context. Authentication always runs
// before any authorization check in the chain. An unreachable
// authority aborts with 503, a rejected credential with 401; the two
// must stay distinguishable so callers can retry the former.
func Authenticate(identity Identity, headerPrefix string) gin.HandlerFunc {
	if headerPrefix == "" {
		headerPrefix = constants.DefaultTokenHeaderPrefix
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, err := extractToken(c, headerPrefix)
		if err != nil {
			identity.FireUnauthorized(ctx, "missing or malformed credential", requestMeta(c))
			abortWith(c, err)
			return
		}

		user, err := identity.ResolveToken(ctx, token)
		if err != nil {
			if !errors.IsAuthorityUnavailable(err) {
				identity.FireUnauthorized(ctx, "credential rejected", requestMeta(c))
			}
			abortWith(c, err)
			return
		}

		c.Set(constants.CtxKeyUser, user)
		c.Set(constants.CtxKeyToken, token)
		c.Next()
	}
}

// RequireRoles passes when the identity holds at least one of the
// required roles. The role check hook fires on both outcomes so
// observers can audit grants as well as denials.
func RequireRoles(identity Identity, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWith(c, errors.New(errors.CodeUnauthenticated, "no authenticated identity"))
			return
		}

		granted := user.HasAnyRole(roles...)
		identity.Hooks().Fire(c.Request.Context(), constants.HookRoleCheck, func(e *models.HookEvent) {
			e.User = user
			e.RequiredRoles = roles
			e.Granted = granted
			applyMeta(e, requestMeta(c))
		})

		if !granted {
			abortWith(c, errors.New(errors.CodeForbidden, "missing required role"))
			return
		}
		c.Next()
	}
}

// RequirePermissions passes only when the identity holds every listed
// permission. No hook fires here; permission checks are high-volume
// and fine-grained.
func RequirePermissions(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWith(c, errors.New(errors.CodeUnauthenticated, "no authenticated identity"))
			return
		}
		if !user.HasAllPermissions(permissions...) {
			abortWith(c, errors.New(errors.CodeForbidden, "missing required permission"))
			return
		}
		c.Next()
	}
}

// RequireMFA enforces the MFA policy: globally, or for the policy
// domains listed in configuration. A session without a verified second
// factor is rejected with the dedicated mfa_required code so clients
// can drive the user into an MFA flow instead of a generic error page.
func RequireMFA(identity Identity, policy config.MFAConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWith(c, errors.New(errors.CodeUnauthenticated, "no authenticated identity"))
			return
		}
		if policy.RequiresFor(user.Context) && !user.MFAVerified {
			identity.Hooks().Fire(c.Request.Context(), constants.HookMFARequired, func(e *models.HookEvent) {
				e.User = user
				applyMeta(e, requestMeta(c))
			})
			abortWith(c, errors.New(errors.CodeMFARequired, "second factor required"))
			return
		}
		c.Next()
	}
}

// RequireContext pins a route group to one policy domain. A user-realm
// token on an admin route is forbidden even when its roles would pass.
func RequireContext(domain constants.PolicyDomain) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abortWith(c, errors.New(errors.CodeUnauthenticated, "no authenticated identity"))
			return
		}
		if user.Context != string(domain) {
			abortWith(c, errors.New(errors.CodeForbidden, "wrong policy domain"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity attached by Authenticate, or nil.
func CurrentUser(c *gin.Context) *models.UserContext {
	v, ok := c.Get(constants.CtxKeyUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.UserContext)
	return user
}

// CurrentToken returns the raw token attached by Authenticate.
func CurrentToken(c *gin.Context) string {
	v, ok := c.Get(constants.CtxKeyToken)
	if !ok {
		return ""
	}
	token, _ := v.(string)
	return token
}

func extractToken(c *gin.Context, prefix string) (string, error) {
	header := c.GetHeader(constants.HeaderAuthorization)
	if header == "" {
		return "", errors.New(errors.CodeUnauthenticated, "no authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], prefix) || parts[1] == "" {
		return "", errors.New(errors.CodeUnauthenticated, "malformed authorization header")
	}
	return parts[1], nil
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.HTTPStatus(err), errors.ToResponse(err))
}

func requestMeta(c *gin.Context) *models.RequestMeta {
	return &models.RequestMeta{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Path:      c.Request.URL.Path,
	}
}

func applyMeta(e *models.HookEvent, meta *models.RequestMeta) {
	if meta == nil {
		return
	}
	e.ClientIP = meta.ClientIP
	e.UserAgent = meta.UserAgent
	e.Path = meta.Path
}
