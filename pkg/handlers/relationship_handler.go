package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/auth"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/repositories"
)

// ModelRef names a registered model by its service and model name.
type ModelRef struct {
	Service string `json:"service"`
	Model   string `json:"model"`
}

// CreateRelationshipRequest registers a directed relationship between two
// registered models.
type CreateRelationshipRequest struct {
	Origin      ModelRef `json:"origin"`
	Related     ModelRef `json:"related"`
	Key         string   `json:"key"`
	FKFieldName string   `json:"fk_field_name"`
}

// RelationshipHandler serves the relationship registry admin API.
type RelationshipHandler struct {
	modules       repositories.LogicModuleRepository
	relationships repositories.RelationshipRepository
	logger        *zap.Logger
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(modules repositories.LogicModuleRepository, relationships repositories.RelationshipRepository, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{
		modules:       modules,
		relationships: relationships,
		logger:        logger,
	}
}

// RegisterRoutes registers the relationship admin routes on the given mux.
func (h *RelationshipHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/relationships", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/relationships", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/relationships/{key}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("DELETE /api/relationships/{key}", authMiddleware.RequireAuth(h.Delete))
}

// List handles GET /api/relationships.
func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	rels, err := h.relationships.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list relationships", zap.Error(err))
		_ = WriteError(w, err)
		return
	}
	if rels == nil {
		rels = []*models.Relationship{}
	}
	_ = WriteJSON(w, http.StatusOK, rels)
}

// Create handles POST /api/relationships. Both endpoints must already be
// registered; the upsert is idempotent on (origin, related, key).
func (h *RelationshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Key == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "key is required")
		return
	}

	origin, err := h.modules.GetModel(r.Context(), req.Origin.Service, req.Origin.Model)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request",
			"origin model is not registered")
		return
	}
	related, err := h.modules.GetModel(r.Context(), req.Related.Service, req.Related.Model)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request",
			"related model is not registered")
		return
	}

	rel := &models.Relationship{
		OriginModelID:  origin.ID,
		RelatedModelID: related.ID,
		Key:            req.Key,
		FKFieldName:    req.FKFieldName,
	}
	if err := h.relationships.Upsert(r.Context(), rel); err != nil {
		h.logger.Error("Failed to upsert relationship",
			zap.String("key", req.Key), zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, rel)
}

// Get handles GET /api/relationships/{key} and returns the edge with both
// endpoint models resolved.
func (h *RelationshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	edge, err := h.relationships.FindByKey(r.Context(), r.PathValue("key"))
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, edge)
}

// Delete handles DELETE /api/relationships/{key}. Join records cascade away
// with the relationship.
func (h *RelationshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.relationships.Delete(r.Context(), r.PathValue("key")); err != nil {
		_ = WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
