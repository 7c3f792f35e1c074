package datamesh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/repositories"
)

// RelationshipParams is the resolved metadata one relationship contributes to
// orchestration. The primary side is the model whose record sits in the
// backend response; the related side is the model fanned out to.
type RelationshipParams struct {
	Edge          *models.RelationshipEdge
	PrimaryModel  *models.LogicModuleModel
	RelatedModel  *models.LogicModuleModel
	RelatedModule *models.LogicModule

	PrimaryPKName string
	RelatedPKName string
	FKFieldName   string
	// IsForwardLookup mirrors the edge: the primary side is the declared
	// origin of the relationship.
	IsForwardLookup bool
}

// Resolver turns relationship keys and request paths into orchestration
// parameters using the registry.
type Resolver struct {
	modules       repositories.LogicModuleRepository
	relationships repositories.RelationshipRepository
}

// NewResolver creates a Resolver over the registry repositories.
func NewResolver(modules repositories.LogicModuleRepository, relationships repositories.RelationshipRepository) *Resolver {
	return &Resolver{modules: modules, relationships: relationships}
}

// PrimaryModel resolves the resource model addressed by a request sub-path
// within a logic module, e.g. "/products/u1/" resolves to the model
// registered at "/products/".
func (r *Resolver) PrimaryModel(ctx context.Context, module *models.LogicModule, path string) (*models.LogicModuleModel, error) {
	endpoint := modelEndpoint(path)
	if endpoint == "" {
		return nil, apperrors.ErrNotFound
	}
	return r.modules.GetModelByEndpoint(ctx, module.EndpointName, endpoint)
}

// ParamsForKey resolves a single relationship by key and orients it around
// the primary model. A key naming a relationship that does not touch the
// primary model is a misconfiguration.
func (r *Resolver) ParamsForKey(ctx context.Context, primary *models.LogicModuleModel, key string) (*RelationshipParams, error) {
	edge, err := r.relationships.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown relationship %q", apperrors.ErrRelationshipMisconfigured, key)
		}
		return nil, err
	}

	switch primary.ID {
	case edge.OriginModel.ID:
		edge.IsForwardLookup = true
	case edge.RelatedModel.ID:
		edge.IsForwardLookup = false
	default:
		return nil, fmt.Errorf("%w: relationship %q does not touch model %s",
			apperrors.ErrRelationshipMisconfigured, key, primary.Model)
	}

	return r.buildParams(ctx, edge)
}

// ParamsFor resolves every relationship touching the primary model. Used on
// GET expansion, where the client names no keys.
func (r *Resolver) ParamsFor(ctx context.Context, primary *models.LogicModuleModel) ([]*RelationshipParams, error) {
	edges, err := r.relationships.RelationshipsFor(ctx, primary.ID)
	if err != nil {
		return nil, err
	}

	params := make([]*RelationshipParams, 0, len(edges))
	for _, edge := range edges {
		p, err := r.buildParams(ctx, edge)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func (r *Resolver) buildParams(ctx context.Context, edge *models.RelationshipEdge) (*RelationshipParams, error) {
	primary, related := edge.OriginModel, edge.RelatedModel
	if !edge.IsForwardLookup {
		primary, related = related, primary
	}

	module, err := r.modules.GetByEndpointName(ctx, related.LogicModuleEndpointName)
	if err != nil {
		return nil, fmt.Errorf("%w: relationship %q references unregistered service %q",
			apperrors.ErrRelationshipMisconfigured, edge.Relationship.Key, related.LogicModuleEndpointName)
	}

	return &RelationshipParams{
		Edge:            edge,
		PrimaryModel:    primary,
		RelatedModel:    related,
		RelatedModule:   module,
		PrimaryPKName:   primary.LookupFieldName,
		RelatedPKName:   related.LookupFieldName,
		FKFieldName:     edge.Relationship.FKFieldName,
		IsForwardLookup: edge.IsForwardLookup,
	}, nil
}

// modelEndpoint extracts the first path segment as the model endpoint:
// "/products/u1/" yields "/products/".
func modelEndpoint(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	first, _, _ := strings.Cut(trimmed, "/")
	return "/" + first + "/"
}
