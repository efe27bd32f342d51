package models

import "time"

// RequestMeta carries the request attributes included in hook event
// contexts. Direct (non-HTTP) callers may pass nil.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Path      string
}

// HookEvent is the context object handed to a registered hook callback.
// The request id is for correlation only, not security.
type HookEvent struct {
	Name      string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	RequestID string       `json:"requestId"`
	ClientIP  string       `json:"clientIp,omitempty"`
	UserAgent string       `json:"userAgent,omitempty"`
	Path      string       `json:"path,omitempty"`
	User      *UserContext `json:"user,omitempty"`
	Token     string       `json:"token,omitempty"`
	OldToken  string       `json:"oldToken,omitempty"`
	NewToken  string       `json:"newToken,omitempty"`
	Reason    string       `json:"reason,omitempty"`

	// Role-check outcome reporting: the hook fires on success and
	// failure so observers can audit both.
	RequiredRoles []string `json:"requiredRoles,omitempty"`
	Granted       bool     `json:"granted,omitempty"`
}
