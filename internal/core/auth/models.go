package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Permissions checked by the CRM API
const (
	PermWorkflowsRead   = "workflows:read"
	PermWorkflowsCreate = "workflows:create"
	PermWorkflowsUpdate = "workflows:update"
	PermWorkflowsDelete = "workflows:delete"
	PermEventsPublish   = "events:publish"
)

// RoleAdmin holds every permission
const RoleAdmin = "admin"

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the claims grant the permission
func (c *TokenClaims) HasPermission(permission string) bool {
	if c.Role == RoleAdmin {
		return true
	}
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// UserInfo is the authenticated caller as stored in the request context
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}
