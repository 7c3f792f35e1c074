package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/auth"
	"github.com/corebridge/corebridge/pkg/datamesh"
	"github.com/corebridge/corebridge/pkg/gateway"
)

// Response headers copied back from the backend. Content-Length is
// recomputed; hop-by-hop headers are dropped.
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Language",
	"Cache-Control",
	"ETag",
	"Location",
}

// GatewayHandler is the catch-all proxy: the first path segment names a
// registered logic module, the rest is forwarded to its backend, and the
// mesh query flags trigger relationship processing around the response.
type GatewayHandler struct {
	dispatcher     *gateway.Dispatcher
	orchestrator   *datamesh.Orchestrator
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewGatewayHandler creates a new GatewayHandler. requestTimeout bounds the
// whole inbound request including mesh fan-out.
func NewGatewayHandler(dispatcher *gateway.Dispatcher, orchestrator *datamesh.Orchestrator, requestTimeout time.Duration, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{
		dispatcher:     dispatcher,
		orchestrator:   orchestrator,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// RegisterRoutes mounts the catch-all route. More specific admin and health
// patterns take precedence on the same mux.
func (h *GatewayHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("/", authMiddleware.RequireAuth(h.Handle))
}

// Handle proxies one request to its logic module and post-processes the
// response through the mesh orchestrator when requested.
func (h *GatewayHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	service, subPath := splitServicePath(r.URL.Path)
	if service == "" {
		_ = ErrorResponse(w, http.StatusNotFound, "route_not_found", "no service in request path")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	orgUUID, orgForward := organizationFrom(ctx)
	flags := datamesh.FlagsFromQuery(r.URL.Query())

	call := &gateway.Call{
		Service:          service,
		Method:           r.Method,
		Path:             subPath,
		Query:            forwardedQuery(r.URL.Query()),
		Body:             body,
		Header:           r.Header,
		OrganizationUUID: orgForward,
	}

	module, resp, err := h.dispatcher.Dispatch(ctx, call)
	if err != nil {
		h.writeDispatchError(w, r, err)
		return
	}

	meshable := (flags.Active() || r.Method == http.MethodDelete) && resp.IsSuccess()
	if !meshable {
		h.writeBackendResponse(w, resp)
		return
	}

	data, err := resp.DecodeJSON()
	if err != nil {
		// Not JSON; nothing to mesh over.
		h.writeBackendResponse(w, resp)
		return
	}

	var inbound map[string]any
	if len(body) > 0 {
		// A non-object body is legal for the backend but carries no
		// relationship data.
		_ = json.Unmarshal(body, &inbound)
	}

	processed, err := h.orchestrator.Process(ctx, &datamesh.MeshRequest{
		Module:           module,
		Method:           r.Method,
		Path:             subPath,
		Header:           r.Header,
		Flags:            flags,
		Body:             inbound,
		Data:             data,
		OrganizationUUID: orgUUID,
	})
	if err != nil {
		h.logger.Error("Mesh processing failed",
			zap.String("service", service),
			zap.String("path", subPath),
			zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	copyHeaders(w, resp)
	if processed == nil {
		w.WriteHeader(resp.StatusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if err := json.NewEncoder(w).Encode(processed); err != nil {
		h.logger.Error("Failed to encode meshed response", zap.Error(err))
	}
}

func (h *GatewayHandler) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.ErrBackendTimeout
	}
	if !errors.Is(err, apperrors.ErrRouteNotFound) {
		h.logger.Warn("Dispatch failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	_ = WriteError(w, err)
}

func (h *GatewayHandler) writeBackendResponse(w http.ResponseWriter, resp *gateway.Response) {
	copyHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func copyHeaders(w http.ResponseWriter, resp *gateway.Response) {
	if resp.Header == nil {
		return
	}
	for _, name := range passthroughHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
}

// splitServicePath cuts "/products/u1/?x" into ("products", "/u1/").
func splitServicePath(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/")
	service, rest, _ := strings.Cut(trimmed, "/")
	return service, "/" + rest
}

// forwardedQuery strips the mesh flags so backends only see their own
// parameters.
func forwardedQuery(q url.Values) url.Values {
	forwarded := url.Values{}
	for k, vs := range q {
		switch k {
		case "join", "extend", "aggregate":
			continue
		}
		forwarded[k] = vs
	}
	return forwarded
}

func organizationFrom(ctx context.Context) (*uuid.UUID, string) {
	org, ok := auth.GetOrganizationUUID(ctx)
	if !ok {
		return nil, ""
	}
	return &org, org.String()
}
