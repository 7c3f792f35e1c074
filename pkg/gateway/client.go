// Package gateway routes inbound requests to registered logic modules and
// proxies them to the owning backend service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/logging"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/specs"
)

// Headers forwarded from the caller to the backend. Hop-by-hop and
// gateway-internal headers stay behind.
var forwardedHeaders = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"Accept-Language",
	"X-Request-ID",
}

// Request is a single backend call the gateway makes on behalf of a caller.
type Request struct {
	Module *models.LogicModule
	Method string
	// Path is the portion after the service segment, starting with "/".
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
	// OrganizationUUID, when set, is forwarded as X-Forwarded-Org so
	// backends can scope queries without re-parsing the token.
	OrganizationUUID string
}

// Response carries the backend's answer back verbatim. Status and body are
// passed through untouched for both success and error statuses.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON parses the body as JSON. Returns nil for an empty body.
func (r *Response) DecodeJSON() (any, error) {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal(r.Body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}
	return data, nil
}

// IsSuccess reports whether the backend answered with a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs HTTP calls to backend services. Requests are validated
// against the module's cached OpenAPI document before leaving the gateway.
type Client struct {
	http   *http.Client
	specs  *specs.Cache
	logger *zap.Logger
}

// NewClient creates a backend client with the given per-request timeout.
func NewClient(specCache *specs.Cache, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		specs:  specCache,
		logger: logger.Named("backend-client"),
	}
}

// Do resolves the operation against the module's spec, forwards the request,
// and returns the backend's response. Backend 4xx/5xx statuses are returned
// as a normal Response; only transport-level failures produce an error:
// ErrBackendTimeout for timeouts, ErrBackendUnreachable for connection
// failures, ErrRouteNotFound when the spec declares no matching operation.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	doc, err := c.specs.Get(ctx, req.Module)
	if err != nil {
		return nil, err
	}

	if !doc.HasOperation(req.Path, req.Method) {
		return nil, fmt.Errorf("%w: %s %s on %s",
			apperrors.ErrRouteNotFound, req.Method, req.Path, req.Module.EndpointName)
	}

	target, err := buildURL(req.Module.Endpoint, doc.BasePath, req.Path, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend url: %w", err)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend request: %w", err)
	}
	for _, name := range forwardedHeaders {
		if v := req.Header.Get(name); v != "" {
			httpReq.Header.Set(name, v)
		}
	}
	if req.OrganizationUUID != "" {
		httpReq.Header.Set("X-Forwarded-Org", req.OrganizationUUID)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, req)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %v",
			apperrors.ErrBackendUnreachable, req.Module.EndpointName, err)
	}

	c.logger.Debug("backend request",
		zap.String("module", req.Module.EndpointName),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// FetchDetail retrieves a single record of a registered model by primary key.
// Used by the data mesh to expand related records.
func (c *Client) FetchDetail(ctx context.Context, module *models.LogicModule, model *models.LogicModuleModel, pk string, header http.Header, orgUUID string) (map[string]any, error) {
	req := &Request{
		Module:           module,
		Method:           http.MethodGet,
		Path:             joinPath(model.Endpoint, pk),
		Header:           header,
		OrganizationUUID: orgUUID,
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%s returned HTTP %d for %s %s",
			module.EndpointName, resp.StatusCode, model.Model, pk)
	}

	data, err := resp.DecodeJSON()
	if err != nil {
		return nil, err
	}
	record, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s returned a non-object body for %s %s",
			module.EndpointName, model.Model, pk)
	}
	return record, nil
}

func buildURL(endpoint, basePath, path string, query url.Values) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}

	full := strings.TrimSuffix(base.Path, "/") + basePath + path
	if !strings.HasSuffix(full, "/") && !strings.Contains(lastSegment(full), ".") {
		full += "/"
	}
	base.Path = full
	base.RawQuery = query.Encode()
	return base.String(), nil
}

func joinPath(endpoint, pk string) string {
	return strings.TrimSuffix(endpoint, "/") + "/" + pk + "/"
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func classifyTransportError(err error, req *Request) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s %s on %s",
			apperrors.ErrBackendTimeout, req.Method, req.Path, req.Module.EndpointName)
	}
	// Transport errors embed the full target URL, which may carry credentials.
	return fmt.Errorf("%w: %s %s on %s: %s",
		apperrors.ErrBackendUnreachable, req.Method, req.Path, req.Module.EndpointName, logging.SanitizeError(err))
}
