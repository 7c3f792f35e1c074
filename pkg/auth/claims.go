// Package auth provides bearer-token authentication for the gateway.
// The gateway never issues tokens; it validates what the OAuth2 provider
// issued and forwards the raw token to backend services unchanged.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure issued by the OAuth2 provider.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the custom claims that scope a request to a tenant.
type Claims struct {
	jwt.RegisteredClaims
	CoreUserUUID     string `json:"core_user_uuid,omitempty"`    // User UUID
	OrganizationUUID string `json:"organization_uuid,omitempty"` // Tenant UUID
	Username         string `json:"username,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// WithClaims stores claims and the raw token in the context.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}

// GetOrganizationUUID extracts the organization UUID from JWT claims in the
// context. Returns uuid.Nil and false if not authenticated or the claim is
// missing or malformed. Use this when the caller can handle a missing tenant.
func GetOrganizationUUID(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.OrganizationUUID == "" {
		return uuid.Nil, false
	}

	orgUUID, err := uuid.Parse(claims.OrganizationUUID)
	if err != nil {
		return uuid.Nil, false
	}

	return orgUUID, true
}

// RequireOrganizationUUID extracts the organization UUID from context and
// returns an error if not found. Use this for endpoints that demand a tenant.
func RequireOrganizationUUID(ctx context.Context) (uuid.UUID, error) {
	orgUUID, ok := GetOrganizationUUID(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("organization UUID not found in context")
	}
	return orgUUID, nil
}

// GetCoreUserUUID extracts the user UUID from JWT claims in the context.
// Returns uuid.Nil and false if not present or malformed.
func GetCoreUserUUID(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.CoreUserUUID == "" {
		return uuid.Nil, false
	}

	userUUID, err := uuid.Parse(claims.CoreUserUUID)
	if err != nil {
		return uuid.Nil, false
	}

	return userUUID, true
}
