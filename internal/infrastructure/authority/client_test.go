package authority_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/infrastructure/authority"
	"github.com/wardenauth/warden/pkg/errors"
	"github.com/wardenauth/warden/pkg/logger"
)

func newClient(baseURL string) *authority.Client {
	return authority.NewClient(config.AuthorityConfig{
		BaseURL:          baseURL,
		ClientID:         "warden-test",
		SystemCredential: "system-secret",
		Timeout:          2 * time.Second,
	}, logger.NewNoopLogger(), nil)
}

func TestClient_LoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u@x.com", req.Email)

		json.NewEncoder(w).Encode(models.TokenResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	tokens, err := newClient(srv.URL).Login(context.Background(), &models.LoginRequest{
		Email:    "u@x.com",
		Password: "p",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)
}

func TestClient_ValidateSendsSystemCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/validate", r.URL.Path)
		assert.Equal(t, "Bearer system-secret", r.Header.Get("Authorization"))
		assert.Equal(t, "warden-test", r.Header.Get("X-Client-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-token", body["token"])

		json.NewEncoder(w).Encode(models.UserContext{
			UserID: "u1",
			Roles:  []string{"user"},
		})
	}))
	defer srv.Close()

	user, err := newClient(srv.URL).Validate(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
}

func TestClient_RejectionIsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Validate(context.Background(), "bad-token")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnauthenticated, errors.CodeOf(err))
}

func TestClient_ServerErrorIsAuthorityUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Validate(context.Background(), "token")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorityUnavailable(err))
}

func TestClient_UnreachableIsAuthorityUnavailable(t *testing.T) {
	// Grab a port nobody is listening on.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := newClient(srv.URL).Validate(context.Background(), "token")
	require.Error(t, err)
	assert.True(t, errors.IsAuthorityUnavailable(err))
	assert.False(t, errors.IsUnauthenticated(err),
		"an outage must never look like a rejected credential")
}

func TestClient_LogoutIgnoresBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/logout", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, newClient(srv.URL).Logout(context.Background(), "user-token"))
}

func TestClient_UserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/userinfo", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(models.UserContext{UserID: "u1", Context: "user"})
	}))
	defer srv.Close()

	user, err := newClient(srv.URL).UserInfo(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
}

func TestClient_GenerateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/token/generate", r.URL.Path)
		assert.Equal(t, "Bearer system-secret", r.Header.Get("Authorization"))

		var input models.GenerateTokenInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "svc-1", input.UserID)
		assert.Equal(t, []string{"service"}, input.Roles)

		json.NewEncoder(w).Encode(models.TokenResponse{AccessToken: "svc-token"})
	}))
	defer srv.Close()

	tokens, err := newClient(srv.URL).GenerateToken(context.Background(), &models.GenerateTokenInput{
		UserID: "svc-1",
		Roles:  []string{"service"},
	})
	require.NoError(t, err)
	assert.Equal(t, "svc-token", tokens.AccessToken)
}
