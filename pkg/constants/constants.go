// Package constants defines system-wide constants for the Warden identity core.
package constants

import "time"

// PolicyDomain tags which population/policy a token or route belongs to.
type PolicyDomain string

const (
	// DomainUser is the default policy domain for end-user traffic.
	DomainUser PolicyDomain = "user"

	// DomainAdmin is the policy domain for administrative traffic.
	DomainAdmin PolicyDomain = "admin"
)

// HookEvent names a lifecycle event delivered through the hook manager.
type HookEvent string

const (
	HookLogin               HookEvent = "login"
	HookLogout              HookEvent = "logout"
	HookTokenRefresh        HookEvent = "token_refresh"
	HookUnauthorizedAttempt HookEvent = "unauthorized_attempt"
	HookMFARequired         HookEvent = "mfa_required"
	HookRoleCheck           HookEvent = "role_check"
)

// Runtime profiles. The rotation schedule is only armed in production;
// lower environments rotate on demand.
const (
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
)

// Gin context keys used to attach the resolved identity to a request.
const (
	CtxKeyUser  = "warden.user"
	CtxKeyToken = "warden.token"
)

// HTTP header names.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// Defaults for the configuration surface.
const (
	DefaultTokenHeaderPrefix = "Bearer"
	DefaultCacheCapacity     = 1000
	DefaultCacheTTL          = 5 * time.Minute
	DefaultAuthorityTimeout  = 10 * time.Second
	DefaultRotationInterval  = 30 * 24 * time.Hour
	DefaultRetentionWindow   = 90 * 24 * time.Hour

	// DefaultPublicationWindow is how long a retired key stays in the
	// published key set, so verifiers holding a slightly stale set can
	// still verify tokens signed just before a rotation.
	DefaultPublicationWindow = 24 * time.Hour
)
