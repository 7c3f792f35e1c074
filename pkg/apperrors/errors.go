package apperrors

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrConflict                  = errors.New("conflict")
	ErrRouteNotFound             = errors.New("no logic module matches request path")
	ErrSpecUnavailable           = errors.New("service specification unavailable")
	ErrBackendTimeout            = errors.New("backend request timed out")
	ErrBackendUnreachable        = errors.New("backend request failed")
	ErrRelationshipMisconfigured = errors.New("relationship is misconfigured")
	ErrAuthMissing               = errors.New("authorization required")
	ErrAuthInvalid               = errors.New("authorization invalid")
	ErrOrgRequired               = errors.New("organization context required")
)
