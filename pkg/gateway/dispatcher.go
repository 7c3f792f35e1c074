package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/repositories"
)

// Call is an inbound request after the service segment has been split off
// the URL: GET /products/1234/?join=true arrives as
// {Service: "products", Method: "GET", Path: "/1234/"}.
type Call struct {
	Service          string
	Method           string
	Path             string
	Query            url.Values
	Body             []byte
	Header           http.Header
	OrganizationUUID string
}

// LocalHandler serves a logic module hosted inside the gateway process
// instead of behind an HTTP endpoint.
type LocalHandler interface {
	Handle(ctx context.Context, call *Call) (*Response, error)
}

// Dispatcher resolves the service segment of a request to a registered logic
// module and routes the call either to an in-process handler or to the
// backend over HTTP.
type Dispatcher struct {
	modules repositories.LogicModuleRepository
	client  *Client
	locals  map[string]LocalHandler
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher over the module registry.
func NewDispatcher(modules repositories.LogicModuleRepository, client *Client, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		modules: modules,
		client:  client,
		locals:  make(map[string]LocalHandler),
		logger:  logger.Named("dispatcher"),
	}
}

// RegisterLocal mounts an in-process handler for a logic module registered
// with is_local = true. Registration panics on duplicates since it happens
// once at startup.
func (d *Dispatcher) RegisterLocal(endpointName string, handler LocalHandler) {
	if _, exists := d.locals[endpointName]; exists {
		panic(fmt.Sprintf("local handler already registered for %q", endpointName))
	}
	d.locals[endpointName] = handler
}

// Resolve maps a service segment to its logic module. Unknown segments
// return ErrRouteNotFound.
func (d *Dispatcher) Resolve(ctx context.Context, service string) (*models.LogicModule, error) {
	module, err := d.modules.GetByEndpointName(ctx, service)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrRouteNotFound, service)
		}
		return nil, fmt.Errorf("failed to resolve service %q: %w", service, err)
	}
	return module, nil
}

// Dispatch resolves and executes the call, returning the module that served
// it alongside the response.
func (d *Dispatcher) Dispatch(ctx context.Context, call *Call) (*models.LogicModule, *Response, error) {
	module, err := d.Resolve(ctx, call.Service)
	if err != nil {
		return nil, nil, err
	}

	resp, err := d.dispatchTo(ctx, module, call)
	if err != nil {
		return module, nil, err
	}
	return module, resp, nil
}

// DispatchTo executes a call against an already-resolved module. The data
// mesh uses this for follow-up requests to related services.
func (d *Dispatcher) DispatchTo(ctx context.Context, module *models.LogicModule, call *Call) (*Response, error) {
	return d.dispatchTo(ctx, module, call)
}

func (d *Dispatcher) dispatchTo(ctx context.Context, module *models.LogicModule, call *Call) (*Response, error) {
	if module.IsLocal {
		local, ok := d.locals[module.EndpointName]
		if !ok {
			d.logger.Error("local module has no registered handler",
				zap.String("module", module.EndpointName))
			return nil, fmt.Errorf("%w: local module %q has no handler",
				apperrors.ErrRouteNotFound, module.EndpointName)
		}
		return local.Handle(ctx, call)
	}

	return d.client.Do(ctx, &Request{
		Module:           module,
		Method:           call.Method,
		Path:             call.Path,
		Query:            call.Query,
		Body:             call.Body,
		Header:           call.Header,
		OrganizationUUID: call.OrganizationUUID,
	})
}

// Client returns the underlying backend client.
func (d *Dispatcher) Client() *Client {
	return d.client
}
