package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/auth"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/repositories"
	"github.com/corebridge/corebridge/pkg/specs"
)

// CreateLogicModuleRequest registers or updates a backend service.
type CreateLogicModuleRequest struct {
	Name         string `json:"name"`
	EndpointName string `json:"endpoint_name"`
	Endpoint     string `json:"endpoint"`
	DocsEndpoint string `json:"docs_endpoint"`
	IsLocal      bool   `json:"is_local"`
}

// CreateLogicModuleModelRequest registers a resource model under a service.
type CreateLogicModuleModelRequest struct {
	Model           string `json:"model"`
	Endpoint        string `json:"endpoint"`
	LookupFieldName string `json:"lookup_field_name"`
	IsLocal         bool   `json:"is_local"`
}

// LogicModuleHandler serves the service registry admin API.
type LogicModuleHandler struct {
	modules   repositories.LogicModuleRepository
	specCache *specs.Cache
	logger    *zap.Logger
}

// NewLogicModuleHandler creates a new LogicModuleHandler.
func NewLogicModuleHandler(modules repositories.LogicModuleRepository, specCache *specs.Cache, logger *zap.Logger) *LogicModuleHandler {
	return &LogicModuleHandler{
		modules:   modules,
		specCache: specCache,
		logger:    logger,
	}
}

// RegisterRoutes registers the logic module admin routes on the given mux.
func (h *LogicModuleHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/logicmodules", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/logicmodules", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/logicmodules/{endpointName}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/logicmodules/{endpointName}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/logicmodules/{endpointName}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/logicmodules/{endpointName}/models", authMiddleware.RequireAuth(h.ListModels))
	mux.HandleFunc("POST /api/logicmodules/{endpointName}/models", authMiddleware.RequireAuth(h.CreateModel))
}

// List handles GET /api/logicmodules.
func (h *LogicModuleHandler) List(w http.ResponseWriter, r *http.Request) {
	modules, err := h.modules.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list logic modules", zap.Error(err))
		_ = WriteError(w, err)
		return
	}
	if modules == nil {
		modules = []*models.LogicModule{}
	}
	_ = WriteJSON(w, http.StatusOK, modules)
}

// Create handles POST /api/logicmodules.
func (h *LogicModuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLogicModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	lm, errMsg := h.moduleFromRequest(&req)
	if errMsg != "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", errMsg)
		return
	}

	if err := h.modules.Upsert(r.Context(), lm); err != nil {
		h.logger.Error("Failed to upsert logic module",
			zap.String("endpoint_name", lm.EndpointName), zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	h.specCache.Invalidate(r.Context(), lm.EndpointName)
	_ = WriteJSON(w, http.StatusCreated, lm)
}

// Get handles GET /api/logicmodules/{endpointName}.
func (h *LogicModuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	lm, err := h.modules.GetByEndpointName(r.Context(), r.PathValue("endpointName"))
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, lm)
}

// Update handles PUT /api/logicmodules/{endpointName}. The endpoint name in
// the path wins over any name in the body; endpoint_name is immutable.
func (h *LogicModuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	endpointName := r.PathValue("endpointName")

	if _, err := h.modules.GetByEndpointName(r.Context(), endpointName); err != nil {
		_ = WriteError(w, err)
		return
	}

	var req CreateLogicModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.EndpointName = endpointName

	lm, errMsg := h.moduleFromRequest(&req)
	if errMsg != "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", errMsg)
		return
	}

	if err := h.modules.Upsert(r.Context(), lm); err != nil {
		h.logger.Error("Failed to update logic module",
			zap.String("endpoint_name", endpointName), zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	h.specCache.Invalidate(r.Context(), endpointName)
	_ = WriteJSON(w, http.StatusOK, lm)
}

// Delete handles DELETE /api/logicmodules/{endpointName}. Registered models
// and their relationships cascade away with the module.
func (h *LogicModuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	endpointName := r.PathValue("endpointName")

	if err := h.modules.Delete(r.Context(), endpointName); err != nil {
		_ = WriteError(w, err)
		return
	}

	h.specCache.Invalidate(r.Context(), endpointName)
	w.WriteHeader(http.StatusNoContent)
}

// ListModels handles GET /api/logicmodules/{endpointName}/models.
func (h *LogicModuleHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	endpointName := r.PathValue("endpointName")

	if _, err := h.modules.GetByEndpointName(r.Context(), endpointName); err != nil {
		_ = WriteError(w, err)
		return
	}

	lmms, err := h.modules.ListModels(r.Context(), endpointName)
	if err != nil {
		h.logger.Error("Failed to list logic module models",
			zap.String("endpoint_name", endpointName), zap.Error(err))
		_ = WriteError(w, err)
		return
	}
	if lmms == nil {
		lmms = []*models.LogicModuleModel{}
	}
	_ = WriteJSON(w, http.StatusOK, lmms)
}

// CreateModel handles POST /api/logicmodules/{endpointName}/models.
func (h *LogicModuleHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	endpointName := r.PathValue("endpointName")

	if _, err := h.modules.GetByEndpointName(r.Context(), endpointName); err != nil {
		_ = WriteError(w, err)
		return
	}

	var req CreateLogicModuleModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Model == "" || req.Endpoint == "" || req.LookupFieldName == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request",
			"model, endpoint, and lookup_field_name are required")
		return
	}

	lmm := &models.LogicModuleModel{
		LogicModuleEndpointName: endpointName,
		Model:                   req.Model,
		Endpoint:                normalizeEndpointPath(req.Endpoint),
		LookupFieldName:         req.LookupFieldName,
		IsLocal:                 req.IsLocal,
	}

	if err := h.modules.UpsertModel(r.Context(), lmm); err != nil {
		h.logger.Error("Failed to upsert logic module model",
			zap.String("endpoint_name", endpointName),
			zap.String("model", req.Model), zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, lmm)
}

func (h *LogicModuleHandler) moduleFromRequest(req *CreateLogicModuleRequest) (*models.LogicModule, string) {
	if req.Name == "" || req.EndpointName == "" {
		return nil, "name and endpoint_name are required"
	}
	if !req.IsLocal && req.Endpoint == "" {
		return nil, "endpoint is required for remote modules"
	}

	return &models.LogicModule{
		Name:         req.Name,
		EndpointName: strings.Trim(req.EndpointName, "/"),
		Endpoint:     strings.TrimSuffix(req.Endpoint, "/"),
		DocsEndpoint: req.DocsEndpoint,
		IsLocal:      req.IsLocal,
	}, ""
}

// normalizeEndpointPath forces the "/name/" shape model endpoints are stored
// and matched in.
func normalizeEndpointPath(endpoint string) string {
	return "/" + strings.Trim(endpoint, "/") + "/"
}
