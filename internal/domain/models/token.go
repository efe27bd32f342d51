package models

import "time"

// TokenResponse is the authority's token payload, returned to callers
// untouched.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// LoginRequest carries end-user credentials to the authority.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totpCode,omitempty"`
	Context  string `json:"context,omitempty"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// GenerateTokenInput is the privileged service-to-service issuance
// request; requires the system credential.
type GenerateTokenInput struct {
	UserID      string            `json:"userId" binding:"required"`
	Email       string            `json:"email,omitempty"`
	Name        string            `json:"name,omitempty"`
	Roles       []string          `json:"roles,omitempty"`
	Permissions []string          `json:"permissions,omitempty"`
	Context     string            `json:"context,omitempty"`
	ExpiresIn   int64             `json:"expiresIn,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ValidationResult is the tagged outcome of a direct token validation.
// "Invalid" is an expected, not exceptional, outcome for this entry
// point, so it is a value, not an error.
type ValidationResult struct {
	Valid     bool         `json:"valid"`
	User      *UserContext `json:"user,omitempty"`
	ExpiresAt time.Time    `json:"expiresAt,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}
