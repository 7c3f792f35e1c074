// Package testhelpers provides utilities for testing gateway components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
func GenerateTestJWT(coreUserUUID, organizationUUID string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, coreUserUUID)
	if coreUserUUID != "" {
		payload += fmt.Sprintf(`,"core_user_uuid":"%s"`, coreUserUUID)
	}
	if organizationUUID != "" {
		payload += fmt.Sprintf(`,"organization_uuid":"%s"`, organizationUUID)
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for
// the Authorization header.
func GenerateTestJWTWithBearer(coreUserUUID, organizationUUID string) string {
	return "Bearer " + GenerateTestJWT(coreUserUUID, organizationUUID)
}

// GenerateSignedTestJWT creates an HS256-signed token for exercising the
// shared-secret validation path.
func GenerateSignedTestJWT(secret, coreUserUUID, organizationUUID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": coreUserUUID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	if coreUserUUID != "" {
		claims["core_user_uuid"] = coreUserUUID
	}
	if organizationUUID != "" {
		claims["organization_uuid"] = organizationUUID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
