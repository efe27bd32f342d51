package models

// UserContext is the resolved identity asserted by a validated token.
// Values are immutable snapshots shared between the cache, the
// middleware layer and hook invocations; never mutated after creation.
type UserContext struct {
	UserID      string            `json:"userId"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Roles       []string          `json:"roles"`
	Permissions []string          `json:"permissions"`
	Context     string            `json:"context"`
	MFAVerified bool              `json:"mfaVerified"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HasAnyRole reports whether the identity holds at least one of the
// required role names. An empty requirement always passes.
func (u *UserContext) HasAnyRole(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasAllPermissions reports whether the identity holds every required
// permission name. Stricter than role checking by design: permissions
// are granular and additive.
func (u *UserContext) HasAllPermissions(required ...string) bool {
	for _, want := range required {
		found := false
		for _, have := range u.Permissions {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
