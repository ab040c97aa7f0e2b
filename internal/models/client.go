package models

import (
	"strings"
	"time"
)

// APIClient represents an authenticated caller of the engine API.
// The engine itself never authorizes operations; the boundary layer
// checks permissions before calling in.
type APIClient struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	APIKey      string     `json:"-"` // never serialized
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Permissions []string   `json:"permissions"`
}

// HasPermission checks whether the client holds the required permission.
// Wildcards like "projects:*" and the global "*" are supported.
func (c *APIClient) HasPermission(required string) bool {
	if c == nil || !c.IsActive {
		return false
	}

	for _, perm := range c.Permissions {
		if perm == required || perm == "*" {
			return true
		}
		if strings.HasSuffix(perm, ":*") && strings.HasPrefix(required, strings.TrimSuffix(perm, "*")) {
			return true
		}
	}

	return false
}

// MaskedAPIKey returns a loggable prefix of the API key
func (c *APIClient) MaskedAPIKey() string {
	if len(c.APIKey) < 8 {
		return "***"
	}
	return c.APIKey[:8] + "..."
}
