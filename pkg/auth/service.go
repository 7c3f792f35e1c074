package auth

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/apperrors"
)

// Common authentication errors. Each wraps the apperrors sentinel that
// drives the HTTP status mapping.
var (
	ErrMissingAuthorization = fmt.Errorf("%w: no bearer token", apperrors.ErrAuthMissing)
	ErrInvalidAuthFormat    = fmt.Errorf("%w: malformed authorization header", apperrors.ErrAuthInvalid)
	ErrMissingOrganization  = fmt.Errorf("%w: token carries no organization", apperrors.ErrOrgRequired)
)

// AuthService defines the interface for authentication operations.
// This abstraction enables clean separation between HTTP handling
// and authentication logic, making both easier to test.
type AuthService interface {
	// ValidateRequest extracts and validates the bearer token from the
	// Authorization header. Returns the validated claims and the raw token
	// string; the raw token travels with the request so backend sub-requests
	// can re-inject it unchanged.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireOrganization validates that the claims carry an organization
	// UUID. Used by endpoints that demand tenant scope.
	RequireOrganization(claims *Claims) error
}

// authService implements AuthService.
type authService struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService with the given validator and logger.
func NewAuthService(validator TokenValidator, logger *zap.Logger) AuthService {
	return &authService{
		validator: validator,
		logger:    logger,
	}
}

// ValidateRequest extracts and validates a bearer token from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No bearer token found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return nil, "", ErrInvalidAuthFormat
	}
	tokenString := parts[1]

	claims, err := s.validator.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("Token validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return nil, "", err
	}

	return claims, tokenString, nil
}

// RequireOrganization validates that the claims carry an organization UUID.
func (s *authService) RequireOrganization(claims *Claims) error {
	if claims.OrganizationUUID == "" {
		return ErrMissingOrganization
	}
	return nil
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
