// Package service implements the application-level authentication
// operations shared by the HTTP middleware and direct callers.
package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wardenauth/warden/internal/application/hooks"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/pkg/constants"
	"github.com/wardenauth/warden/pkg/errors"
	"github.com/wardenauth/warden/pkg/logger"
)

// Authority is the upstream identity service consumed by the auth
// service. The production implementation lives in
// internal/infrastructure/authority.
type Authority interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Validate(ctx context.Context, token string) (*models.UserContext, error)
	UserInfo(ctx context.Context, token string) (*models.UserContext, error)
	GenerateToken(ctx context.Context, input *models.GenerateTokenInput) (*models.TokenResponse, error)
}

// TokenCache is the validation cache contract. A nil cache disables
// caching; every call then goes to the authority.
type TokenCache interface {
	Get(token string) *models.UserContext
	Put(token string, user *models.UserContext, tokenExpiresAt time.Time)
	Invalidate(token string)
}

// AuthService composes the authority, the validation cache and the
// hook manager into the single authentication entry point.
type AuthService struct {
	authority Authority
	cache     TokenCache
	hooks     *hooks.Manager
	logger    logger.Logger
}

// NewAuthService wires the service. cache may be nil.
func NewAuthService(authority Authority, cache TokenCache, hookManager *hooks.Manager, log logger.Logger) *AuthService {
	return &AuthService{
		authority: authority,
		cache:     cache,
		hooks:     hookManager,
		logger:    log.WithComponent("auth_service"),
	}
}

// Hooks exposes the hook manager for callback registration.
func (s *AuthService) Hooks() *hooks.Manager { return s.hooks }

// ResolveToken resolves a presented token to its identity: cache
// first, then the authority's validation endpoint. An authority outage
// surfaces as CodeAuthorityUnavailable, never as a rejected
// credential and never as an anonymous pass.
func (s *AuthService) ResolveToken(ctx context.Context, token string) (*models.UserContext, error) {
	if token == "" {
		return nil, errors.New(errors.CodeUnauthenticated, "no credential presented")
	}
	if s.cache != nil {
		if user := s.cache.Get(token); user != nil {
			return user, nil
		}
	}

	user, err := s.authority.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(token, user, tokenExpiry(token))
	}
	return user, nil
}

// Login forwards credentials to the authority, resolves the issued
// token's identity and fires the login hook. The token response is
// returned to the caller untouched.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, meta *models.RequestMeta) (*models.TokenResponse, error) {
	tokens, err := s.authority.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	user, err := s.ResolveToken(ctx, tokens.AccessToken)
	if err != nil {
		s.logger.Warn(ctx, "issued token failed resolution", logger.Error(err))
		return nil, errors.Wrap(err, errors.CodeInternal, "resolve issued token")
	}

	s.hooks.Fire(ctx, constants.HookLogin, func(e *models.HookEvent) {
		e.User = user
		e.Token = tokens.AccessToken
		applyMeta(e, meta)
	})
	return tokens, nil
}

// Logout surrenders a token. The authority call is best-effort; logout
// always succeeds locally so a dead authority cannot pin a session
// alive on this side.
func (s *AuthService) Logout(ctx context.Context, token string, meta *models.RequestMeta) {
	var user *models.UserContext
	if s.cache != nil {
		user = s.cache.Get(token)
	}
	if user == nil {
		if resolved, err := s.authority.Validate(ctx, token); err == nil {
			user = resolved
		}
	}

	if err := s.authority.Logout(ctx, token); err != nil {
		s.logger.Warn(ctx, "authority logout failed, continuing", logger.Error(err))
	}
	if s.cache != nil {
		s.cache.Invalidate(token)
	}

	if user != nil {
		s.hooks.Fire(ctx, constants.HookLogout, func(e *models.HookEvent) {
			e.User = user
			applyMeta(e, meta)
		})
	}
}

// RefreshToken exchanges a refresh token for a new pair and fires the
// token refresh hook with both token references.
func (s *AuthService) RefreshToken(ctx context.Context, oldToken string, meta *models.RequestMeta) (*models.TokenResponse, error) {
	tokens, err := s.authority.Refresh(ctx, oldToken)
	if err != nil {
		return nil, err
	}

	s.hooks.Fire(ctx, constants.HookTokenRefresh, func(e *models.HookEvent) {
		e.OldToken = oldToken
		e.NewToken = tokens.AccessToken
		applyMeta(e, meta)
	})
	return tokens, nil
}

// ValidateToken is the direct validation entry point. A rejected
// credential yields a tagged invalid result; only an authority outage
// is reported as an error, since the token's standing is then unknown.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.ValidationResult, error) {
	user, err := s.ResolveToken(ctx, token)
	if err != nil {
		if errors.IsAuthorityUnavailable(err) {
			return nil, err
		}
		return &models.ValidationResult{Valid: false, Reason: "invalid or expired token"}, nil
	}
	return &models.ValidationResult{
		Valid:     true,
		User:      user,
		ExpiresAt: tokenExpiry(token),
	}, nil
}

// UserInfo fetches the authority's own view of the session behind the
// token, bypassing the cache. Session-inspection callers use this when
// they need authority-fresh attributes rather than a cached snapshot.
func (s *AuthService) UserInfo(ctx context.Context, token string) (*models.UserContext, error) {
	if token == "" {
		return nil, errors.New(errors.CodeUnauthenticated, "no credential presented")
	}
	return s.authority.UserInfo(ctx, token)
}

// GenerateToken mints a token for service-to-service use through the
// authority's privileged endpoint.
func (s *AuthService) GenerateToken(ctx context.Context, input *models.GenerateTokenInput) (*models.TokenResponse, error) {
	if input.UserID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "userId is required")
	}
	return s.authority.GenerateToken(ctx, input)
}

// FireUnauthorized reports a rejected request through the hook
// manager. Used by the middleware layer on authentication failures.
func (s *AuthService) FireUnauthorized(ctx context.Context, reason string, meta *models.RequestMeta) {
	s.hooks.Fire(ctx, constants.HookUnauthorizedAttempt, func(e *models.HookEvent) {
		e.Reason = reason
		applyMeta(e, meta)
	})
}

// tokenExpiry extracts the exp claim without verifying the signature.
// The authority has already vouched for the token; the claim only
// bounds the cache entry's life.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func applyMeta(e *models.HookEvent, meta *models.RequestMeta) {
	if meta == nil {
		return
	}
	e.ClientIP = meta.ClientIP
	e.UserAgent = meta.UserAgent
	e.Path = meta.Path
}
