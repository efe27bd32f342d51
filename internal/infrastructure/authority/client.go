// Package authority implements the HTTP client for the upstream
// identity authority that owns credentials and token issuance.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/internal/domain/models"
	"github.com/wardenauth/warden/internal/infrastructure/monitoring"
	"github.com/wardenauth/warden/pkg/errors"
	"github.com/wardenauth/warden/pkg/logger"
)

// Client calls the authority's auth endpoints. Network failures and
// timeouts surface as CodeAuthorityUnavailable, never as a rejected
// credential, so callers can tell an outage from a bad token.
type Client struct {
	baseURL          string
	clientID         string
	systemCredential string
	httpClient       *http.Client
	logger           logger.Logger
	metrics          *monitoring.Metrics
}

// NewClient builds the authority client from configuration.
func NewClient(cfg config.AuthorityConfig, log logger.Logger, metrics *monitoring.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:          cfg.BaseURL,
		clientID:         cfg.ClientID,
		systemCredential: cfg.SystemCredential,
		httpClient:       &http.Client{Timeout: timeout},
		logger:           log.WithComponent("authority_client"),
		metrics:          metrics,
	}
}

// Login forwards end-user credentials and returns the issued tokens.
func (c *Client) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	err := c.post(ctx, "login", "/auth/login", req, "", &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout notifies the authority that the token is surrendered. The
// bearer token itself is the only credential.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.post(ctx, "logout", "/auth/logout", nil, token, nil)
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	err := c.post(ctx, "refresh", "/auth/refresh", &models.RefreshRequest{RefreshToken: refreshToken}, "", &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate resolves a token to its identity using the system
// credential.
func (c *Client) Validate(ctx context.Context, token string) (*models.UserContext, error) {
	var resp models.UserContext
	body := map[string]string{"token": token}
	err := c.post(ctx, "validate", "/auth/validate", body, c.systemCredential, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserInfo resolves the identity behind a bearer token through the
// authority's session-inspection endpoint.
func (c *Client) UserInfo(ctx context.Context, token string) (*models.UserContext, error) {
	var resp models.UserContext
	if err := c.get(ctx, "userinfo", "/userinfo", token, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateToken asks the authority to mint a token for a given
// identity. System credential only; not an end-user flow.
func (c *Client) GenerateToken(ctx context.Context, input *models.GenerateTokenInput) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	err := c.post(ctx, "generate", "/auth/token/generate", input, c.systemCredential, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, operation, path string, body any, bearer string, out any) error {
	return c.do(ctx, operation, http.MethodPost, path, body, bearer, out)
}

func (c *Client) get(ctx context.Context, operation, path, bearer string, out any) error {
	return c.do(ctx, operation, http.MethodGet, path, nil, bearer, out)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "encode %s request", operation)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "build %s request", operation)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.AuthorityRequest(operation, "unavailable")
		c.logger.Warn(ctx, "authority unreachable",
			logger.String("operation", operation), logger.Error(err))
		return errors.Wrap(err, errors.CodeAuthorityUnavailable, "authority %s", operation)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.metrics.AuthorityRequest(operation, "ok")
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, errors.CodeAuthorityUnavailable, "decode %s response", operation)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.metrics.AuthorityRequest(operation, "rejected")
		return errors.New(errors.CodeUnauthenticated, "authority rejected %s", operation)
	case resp.StatusCode >= 500:
		c.metrics.AuthorityRequest(operation, "unavailable")
		return errors.New(errors.CodeAuthorityUnavailable, "authority %s returned %d", operation, resp.StatusCode)
	default:
		c.metrics.AuthorityRequest(operation, "error")
		return errors.New(errors.CodeInvalidArgument, "authority %s returned %d", operation, resp.StatusCode)
	}
}
