package datamesh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/gateway"
	"github.com/corebridge/corebridge/pkg/models"
)

// MeshErrorsField is attached to a response object when one or more
// relationships failed to process. The primary payload is still returned.
const MeshErrorsField = "_mesh_errors"

// Control fields recognised inside relationship sub-objects. They steer
// orchestration and are stripped before the sub-object is forwarded.
const (
	previousPKField  = "previous_pk"
	joinControlField = "join"
)

// Flags are the query parameters that switch mesh processing on.
type Flags struct {
	Join      bool
	Extend    bool
	Aggregate bool
}

// FlagsFromQuery reads the mesh mode flags. Presence switches a flag on
// unless the value is explicitly "false".
func FlagsFromQuery(q url.Values) Flags {
	return Flags{
		Join:      hasFlag(q, "join"),
		Extend:    hasFlag(q, "extend"),
		Aggregate: hasFlag(q, "aggregate"),
	}
}

// Active reports whether any mesh processing was requested.
func (f Flags) Active() bool {
	return f.Join || f.Extend || f.Aggregate
}

func hasFlag(q url.Values, name string) bool {
	if !q.Has(name) {
		return false
	}
	return q.Get(name) != "false"
}

// Backend executes sub-requests against logic modules. Satisfied by
// *gateway.Dispatcher, which keeps local and remote modules interchangeable.
type Backend interface {
	DispatchTo(ctx context.Context, module *models.LogicModule, call *gateway.Call) (*gateway.Response, error)
}

// MeshRequest carries everything the orchestrator needs after the primary
// request has been executed: the inbound call, its decoded body, and the
// backend's decoded response.
type MeshRequest struct {
	Module *models.LogicModule
	Method string
	// Path is the sub-path under the module, e.g. "/products/u1/".
	Path   string
	Header http.Header
	Flags  Flags
	// Body is the decoded inbound request body; nil for GET and DELETE.
	Body map[string]any
	// Data is the decoded primary response. Mutated in place during
	// processing and returned to the caller.
	Data             any
	OrganizationUUID *uuid.UUID
}

func (r *MeshRequest) orgForward() string {
	if r.OrganizationUUID == nil {
		return ""
	}
	return r.OrganizationUUID.String()
}

// Orchestrator runs relationship processing around the primary request.
// It is explicitly not transactional: sibling relationships run concurrently,
// each one's failure is isolated into MeshErrorsField, and partial success is
// a documented outcome.
type Orchestrator struct {
	resolver *Resolver
	joins    JoinService
	backend  Backend
	logger   *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(resolver *Resolver, joins JoinService, backend Backend, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		joins:    joins,
		backend:  backend,
		logger:   logger.Named("mesh"),
	}
}

// Process applies the mesh dispatch matrix to an executed request and returns
// the (possibly enriched) response data. Errors returned here are
// configuration-level; per-relationship failures land in MeshErrorsField
// instead.
func (o *Orchestrator) Process(ctx context.Context, req *MeshRequest) (any, error) {
	if req.Method == http.MethodDelete {
		o.unlinkDeleted(ctx, req)
		return req.Data, nil
	}

	if !req.Flags.Active() {
		return req.Data, nil
	}

	model, err := o.resolver.PrimaryModel(ctx, req.Module, req.Path)
	if err != nil {
		// No registered model means nothing to mesh; the primary response
		// stands on its own.
		o.logger.Debug("no mesh model for path",
			zap.String("service", req.Module.EndpointName),
			zap.String("path", req.Path))
		return req.Data, nil
	}

	switch req.Method {
	case http.MethodGet:
		if req.Flags.Aggregate {
			return o.aggregate(ctx, req, model), nil
		}
	case http.MethodPost:
		switch {
		case req.Flags.Extend:
			return o.extend(ctx, req, model), nil
		case req.Flags.Join:
			return o.join(ctx, req, model), nil
		}
	case http.MethodPut, http.MethodPatch:
		if req.Flags.Join {
			return o.update(ctx, req, model), nil
		}
	}

	return req.Data, nil
}

// unlinkDeleted removes every join record touching the deleted PK. Failures
// are logged, never surfaced: the backend deletion already succeeded.
func (o *Orchestrator) unlinkDeleted(ctx context.Context, req *MeshRequest) {
	pk := pkFromPath(req.Path)
	if pk == "" {
		return
	}
	if err := o.joins.Unlink(ctx, pk); err != nil {
		o.logger.Warn("failed to unlink deleted record",
			zap.String("pk", pk), zap.Error(err))
	}
}

// extend links the primary record to already-existing related records whose
// PKs arrive in the inbound body. No sub-requests are issued.
func (o *Orchestrator) extend(ctx context.Context, req *MeshRequest, model *models.LogicModuleModel) any {
	record, ok := req.Data.(map[string]any)
	if !ok {
		return req.Data
	}

	params, err := o.resolver.ParamsFor(ctx, model)
	if err != nil {
		attachMeshError(record, "registry", err.Error())
		return record
	}

	failures := make([]string, len(params))
	var wg sync.WaitGroup
	for i, p := range params {
		relatedRaw, present := req.Body[p.RelatedPKName]
		if !present {
			continue
		}

		originPKs := pkValues(record[p.PrimaryPKName])
		relatedPKs := pkValues(relatedRaw)

		wg.Add(1)
		go func(i int, p *RelationshipParams) {
			defer wg.Done()

			for _, pair := range pkPairs(originPKs, relatedPKs) {
				if err := o.joins.ValidateJoin(ctx, p.Edge, pair[0], pair[1], req.OrganizationUUID); err != nil {
					failures[i] = err.Error()
					return
				}
			}
		}(i, p)
	}
	wg.Wait()

	mergeFailures(record, params, failures)
	return record
}

// join creates related sub-objects carried in the inbound body and links them
// to the primary record. An empty relationship array still triggers the
// inline-FK check so joins expressed as plain foreign keys are preserved.
func (o *Orchestrator) join(ctx context.Context, req *MeshRequest, model *models.LogicModuleModel) any {
	record, ok := req.Data.(map[string]any)
	if !ok {
		return req.Data
	}

	params, err := o.resolver.ParamsFor(ctx, model)
	if err != nil {
		attachMeshError(record, "registry", err.Error())
		return record
	}

	failures := make([]string, len(params))
	var wg sync.WaitGroup
	for i, p := range params {
		instances := subObjects(req.Body[p.Edge.Relationship.Key])
		primaryPK := firstPK(record[p.PrimaryPKName])

		var originPKs, inlinePKs []string
		if len(instances) == 0 && p.FKFieldName != "" {
			originPKs = pkValues(record[p.PrimaryPKName])
			inlinePKs = pkValues(record[p.FKFieldName])
		}

		wg.Add(1)
		go func(i int, p *RelationshipParams) {
			defer wg.Done()

			if len(instances) == 0 {
				if err := o.validateInlineFK(ctx, req, p, originPKs, inlinePKs); err != nil {
					failures[i] = err.Error()
				}
				return
			}

			for _, instance := range instances {
				if err := o.createRelated(ctx, req, p, primaryPK, instance); err != nil {
					failures[i] = err.Error()
					return
				}
			}
		}(i, p)
	}
	wg.Wait()

	mergeFailures(record, params, failures)
	return record
}

// update applies PUT/PATCH semantics per sub-object: an existing PK means a
// forwarded update, a missing PK falls back to create-and-join, and a
// previous_pk re-links the join from the old record to the new one.
func (o *Orchestrator) update(ctx context.Context, req *MeshRequest, model *models.LogicModuleModel) any {
	record, ok := req.Data.(map[string]any)
	if !ok {
		return req.Data
	}

	params, err := o.resolver.ParamsFor(ctx, model)
	if err != nil {
		attachMeshError(record, "registry", err.Error())
		return record
	}

	failures := make([]string, len(params))
	var wg sync.WaitGroup
	for i, p := range params {
		instances := subObjects(req.Body[p.Edge.Relationship.Key])
		if len(instances) == 0 {
			continue
		}
		primaryPK := firstPK(record[p.PrimaryPKName])

		wg.Add(1)
		go func(i int, p *RelationshipParams, instances []map[string]any) {
			defer wg.Done()

			for _, instance := range instances {
				if err := o.updateRelated(ctx, req, p, primaryPK, instance); err != nil {
					failures[i] = err.Error()
					return
				}
			}
		}(i, p, instances)
	}
	wg.Wait()

	mergeFailures(record, params, failures)
	return record
}

func (o *Orchestrator) createRelated(ctx context.Context, req *MeshRequest, p *RelationshipParams, primaryPK string, instance map[string]any) error {
	if primaryPK == "" {
		return fmt.Errorf("primary response carries no %q", p.PrimaryPKName)
	}

	payload := stripControlFields(instance)
	// The primary's PK is only injected when the sub-object already carries
	// the FK field; absent fields stay absent.
	if p.FKFieldName != "" {
		if _, present := payload[p.FKFieldName]; present {
			payload[p.FKFieldName] = primaryPK
		}
	}

	created, err := o.send(ctx, req, p, http.MethodPost, p.RelatedModel.Endpoint, payload)
	if err != nil {
		return err
	}

	relatedPK := firstPK(created[p.RelatedPKName])
	if relatedPK == "" {
		return fmt.Errorf("created %s carries no %q", p.RelatedModel.Model, p.RelatedPKName)
	}

	return o.joins.ValidateJoin(ctx, p.Edge, primaryPK, relatedPK, req.OrganizationUUID)
}

func (o *Orchestrator) updateRelated(ctx context.Context, req *MeshRequest, p *RelationshipParams, primaryPK string, instance map[string]any) error {
	relatedPK := models.StringifyPK(instance[p.RelatedPKName])
	if relatedPK == "" {
		return o.createRelated(ctx, req, p, primaryPK, instance)
	}

	payload := stripControlFields(instance)
	path := p.RelatedModel.Endpoint + relatedPK + "/"
	if _, err := o.send(ctx, req, p, req.Method, path, payload); err != nil {
		return err
	}

	if primaryPK == "" {
		return fmt.Errorf("primary response carries no %q", p.PrimaryPKName)
	}

	if previousPK := models.StringifyPK(instance[previousPKField]); previousPK != "" {
		return o.joins.Relink(ctx, p.Edge, primaryPK, previousPK, relatedPK, req.OrganizationUUID)
	}
	return nil
}

// validateInlineFK creates joins for relationships expressed as a foreign key
// inside the primary payload itself, keeping them linked without an explicit
// sub-object. PKs arrive pre-extracted so callers can fan out without sharing
// the response map.
func (o *Orchestrator) validateInlineFK(ctx context.Context, req *MeshRequest, p *RelationshipParams, originPKs, relatedPKs []string) error {
	if p.FKFieldName == "" {
		return nil
	}
	if len(originPKs) == 0 || len(relatedPKs) == 0 {
		return nil
	}

	for _, pair := range pkPairs(originPKs, relatedPKs) {
		if err := o.joins.ValidateJoin(ctx, p.Edge, pair[0], pair[1], req.OrganizationUUID); err != nil {
			return err
		}
	}
	return nil
}

// send forwards a sub-request to the related module and decodes the response
// object. Backend 4xx/5xx answers fail the relationship.
func (o *Orchestrator) send(ctx context.Context, req *MeshRequest, p *RelationshipParams, method, path string, payload map[string]any) (map[string]any, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", p.RelatedModel.Model, err)
		}
	}

	resp, err := o.backend.DispatchTo(ctx, p.RelatedModule, &gateway.Call{
		Service:          p.RelatedModule.EndpointName,
		Method:           method,
		Path:             path,
		Body:             body,
		Header:           req.Header,
		OrganizationUUID: req.orgForward(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%s returned HTTP %d: %s",
			p.RelatedModule.EndpointName, resp.StatusCode, truncateBody(resp.Body))
	}

	data, err := resp.DecodeJSON()
	if err != nil {
		return nil, err
	}
	obj, _ := data.(map[string]any)
	if obj == nil {
		return nil, fmt.Errorf("%s returned a non-object body", p.RelatedModule.EndpointName)
	}
	return obj, nil
}

// mergeFailures files the collected per-relationship failures on the record.
// failures is indexed parallel to params; empty slots mean success.
func mergeFailures(record map[string]any, params []*RelationshipParams, failures []string) {
	for i, msg := range failures {
		if msg != "" {
			attachMeshError(record, params[i].Edge.Relationship.Key, msg)
		}
	}
}

// attachMeshError files a relationship failure on the record. The record map
// is unsynchronized; call only after the relationship fan-out has finished.
func attachMeshError(record map[string]any, key, msg string) {
	errs, _ := record[MeshErrorsField].(map[string]any)
	if errs == nil {
		errs = make(map[string]any)
		record[MeshErrorsField] = errs
	}
	errs[key] = msg
}
