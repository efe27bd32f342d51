package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/application/hooks"
	"github.com/wardenauth/warden/internal/application/service"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/infrastructure/cache"
	"github.com/wardenauth/warden/pkg/constants"
	"github.com/wardenauth/warden/pkg/errors"
	"github.com/wardenauth/warden/pkg/logger"
)

// stubAuthority scripts authority behavior and counts calls.
type stubAuthority struct {
	loginResp    *models.TokenResponse
	loginErr     error
	refreshResp  *models.TokenResponse
	refreshErr   error
	validateResp *models.UserContext
	validateErr  error
	generateResp *models.TokenResponse
	logoutErr    error

	validateCalls int
	logoutCalls   int
}

func (s *stubAuthority) Login(context.Context, *models.LoginRequest) (*models.TokenResponse, error) {
	return s.loginResp, s.loginErr
}

func (s *stubAuthority) Logout(context.Context, string) error {
	s.logoutCalls++
	return s.logoutErr
}

func (s *stubAuthority) Refresh(context.Context, string) (*models.TokenResponse, error) {
	return s.refreshResp, s.refreshErr
}

func (s *stubAuthority) Validate(context.Context, string) (*models.UserContext, error) {
	s.validateCalls++
	return s.validateResp, s.validateErr
}

func (s *stubAuthority) UserInfo(context.Context, string) (*models.UserContext, error) {
	return s.validateResp, s.validateErr
}

func (s *stubAuthority) GenerateToken(context.Context, *models.GenerateTokenInput) (*models.TokenResponse, error) {
	return s.generateResp, nil
}

type firedEvents struct {
	events map[constants.HookEvent][]*models.HookEvent
}

func captureHooks(m *hooks.Manager) *firedEvents {
	f := &firedEvents{events: make(map[constants.HookEvent][]*models.HookEvent)}
	for _, event := range []constants.HookEvent{
		constants.HookLogin, constants.HookLogout, constants.HookTokenRefresh,
		constants.HookUnauthorizedAttempt, constants.HookMFARequired, constants.HookRoleCheck,
	} {
		ev := event
		m.Register(ev, func(_ context.Context, e *models.HookEvent) error {
			f.events[ev] = append(f.events[ev], e)
			return nil
		})
	}
	return f
}

func newService(authority *stubAuthority) (*service.AuthService, *firedEvents) {
	hookManager := hooks.NewManager(logger.NewNoopLogger(), nil, nil)
	fired := captureHooks(hookManager)
	tokenCache := cache.NewTokenCache(100, time.Minute, nil)
	svc := service.NewAuthService(authority, tokenCache, hookManager, logger.NewNoopLogger())
	return svc, fired
}

func TestResolveToken_CacheAvoidsSecondAuthorityCall(t *testing.T) {
	authority := &stubAuthority{validateResp: &models.UserContext{UserID: "u1"}}
	svc, _ := newService(authority)

	first, err := svc.ResolveToken(context.Background(), "tok")
	require.NoError(t, err)
	second, err := svc.ResolveToken(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 1, authority.validateCalls)
}

func TestResolveToken_EmptyTokenIsUnauthenticated(t *testing.T) {
	svc, _ := newService(&stubAuthority{})
	_, err := svc.ResolveToken(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsUnauthenticated(err))
}

func TestResolveToken_AuthorityOutagePropagates(t *testing.T) {
	authority := &stubAuthority{
		validateErr: errors.New(errors.CodeAuthorityUnavailable, "down"),
	}
	svc, _ := newService(authority)

	_, err := svc.ResolveToken(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorityUnavailable(err))
}

func TestLogin_FiresLoginHookOnce(t *testing.T) {
	authority := &stubAuthority{
		loginResp:    &models.TokenResponse{AccessToken: "access-1", ExpiresIn: 3600},
		validateResp: &models.UserContext{UserID: "u1", Email: "u@x.com"},
	}
	svc, fired := newService(authority)

	tokens, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "u@x.com",
		Password: "p",
	}, &models.RequestMeta{ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)

	require.Len(t, fired.events[constants.HookLogin], 1)
	evt := fired.events[constants.HookLogin][0]
	assert.Equal(t, "u1", evt.User.UserID)
	assert.Equal(t, "access-1", evt.Token)
	assert.Equal(t, "10.0.0.1", evt.ClientIP)

	assert.Empty(t, fired.events[constants.HookUnauthorizedAttempt],
		"a successful login never reports an unauthorized attempt")
}

func TestLogin_RejectedCredentialsFireNoLoginHook(t *testing.T) {
	authority := &stubAuthority{
		loginErr: errors.New(errors.CodeUnauthenticated, "bad credentials"),
	}
	svc, fired := newService(authority)

	_, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "u@x.com",
		Password: "wrong",
	}, nil)
	require.Error(t, err)
	assert.Empty(t, fired.events[constants.HookLogin])
}

func TestLogout_AlwaysSucceedsLocally(t *testing.T) {
	authority := &stubAuthority{
		validateResp: &models.UserContext{UserID: "u1"},
		logoutErr:    errors.New(errors.CodeAuthorityUnavailable, "down"),
	}
	svc, fired := newService(authority)

	// Warm the cache so logout can resolve the identity locally.
	_, err := svc.ResolveToken(context.Background(), "tok")
	require.NoError(t, err)

	svc.Logout(context.Background(), "tok", nil)

	require.Len(t, fired.events[constants.HookLogout], 1)
	assert.Equal(t, "u1", fired.events[constants.HookLogout][0].User.UserID)

	// The cached entry is gone: the next resolution hits the authority.
	before := authority.validateCalls
	_, _ = svc.ResolveToken(context.Background(), "tok")
	assert.Equal(t, before+1, authority.validateCalls)
}

func TestRefreshToken_FiresHookWithBothTokens(t *testing.T) {
	authority := &stubAuthority{
		refreshResp: &models.TokenResponse{AccessToken: "new-access"},
	}
	svc, fired := newService(authority)

	tokens, err := svc.RefreshToken(context.Background(), "old-refresh", nil)
	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)

	require.Len(t, fired.events[constants.HookTokenRefresh], 1)
	evt := fired.events[constants.HookTokenRefresh][0]
	assert.Equal(t, "old-refresh", evt.OldToken)
	assert.Equal(t, "new-access", evt.NewToken)
}

func TestValidateToken_InvalidIsTaggedNotError(t *testing.T) {
	authority := &stubAuthority{
		validateErr: errors.New(errors.CodeUnauthenticated, "rejected"),
	}
	svc, _ := newService(authority)

	result, err := svc.ValidateToken(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Reason)
	assert.Nil(t, result.User)
}

func TestValidateToken_OutageIsAnError(t *testing.T) {
	authority := &stubAuthority{
		validateErr: errors.New(errors.CodeAuthorityUnavailable, "down"),
	}
	svc, _ := newService(authority)

	_, err := svc.ValidateToken(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorityUnavailable(err))
}

func TestValidateToken_ValidCarriesIdentity(t *testing.T) {
	authority := &stubAuthority{
		validateResp: &models.UserContext{UserID: "u1", Roles: []string{"user"}},
	}
	svc, _ := newService(authority)

	result, err := svc.ValidateToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.User)
	assert.Equal(t, "u1", result.User.UserID)
}

func TestGenerateToken_RequiresUserID(t *testing.T) {
	svc, _ := newService(&stubAuthority{generateResp: &models.TokenResponse{}})

	_, err := svc.GenerateToken(context.Background(), &models.GenerateTokenInput{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err))

	_, err = svc.GenerateToken(context.Background(), &models.GenerateTokenInput{UserID: "svc-1"})
	require.NoError(t, err)
}
