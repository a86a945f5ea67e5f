package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload minted by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email,omitempty"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID   string
	TenantID string
	Role     UserRole
}

// Actor extracts the caller identity from the claims.
func (c *JWTClaims) Actor() Actor {
	return Actor{UserID: c.UserID, TenantID: c.TenantID, Role: c.Role}
}
