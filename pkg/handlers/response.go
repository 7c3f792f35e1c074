package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corebridge/corebridge/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError maps a service error to its HTTP status and writes the JSON
// error body.
func WriteError(w http.ResponseWriter, err error) error {
	status, code := statusForError(err)
	return ErrorResponse(w, status, code, err.Error())
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrRouteNotFound):
		return http.StatusNotFound, "route_not_found"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrSpecUnavailable):
		return http.StatusBadGateway, "spec_unavailable"
	case errors.Is(err, apperrors.ErrBackendUnreachable):
		return http.StatusBadGateway, "backend_unreachable"
	case errors.Is(err, apperrors.ErrBackendTimeout):
		return http.StatusGatewayTimeout, "backend_timeout"
	case errors.Is(err, apperrors.ErrAuthMissing), errors.Is(err, apperrors.ErrAuthInvalid):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrOrgRequired):
		return http.StatusBadRequest, "organization_required"
	case errors.Is(err, apperrors.ErrRelationshipMisconfigured):
		return http.StatusInternalServerError, "relationship_misconfigured"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
