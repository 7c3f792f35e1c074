package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/database"
	"github.com/corebridge/corebridge/pkg/models"
)

// RelationshipRepository provides data access for the directed labelled graph
// of relationships between logic module models.
type RelationshipRepository interface {
	// Upsert is idempotent: an equal identifying tuple
	// (origin_model_id, related_model_id, key) returns the existing row.
	Upsert(ctx context.Context, rel *models.Relationship) error
	// FindByKey returns the relationship with both endpoint models resolved.
	// The returned edge is in forward orientation.
	FindByKey(ctx context.Context, key string) (*models.RelationshipEdge, error)
	// RelationshipsFor returns every edge touching the given model: forward
	// edges where it is the origin, reverse edges where it is the related
	// side. Expansion walks exactly these one-hop edges.
	RelationshipsFor(ctx context.Context, modelID uuid.UUID) ([]*models.RelationshipEdge, error)
	List(ctx context.Context) ([]*models.Relationship, error)
	Delete(ctx context.Context, key string) error
}

type relationshipRepository struct {
	db *database.DB
}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(db *database.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

func (r *relationshipRepository) Upsert(ctx context.Context, rel *models.Relationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}

	// DO UPDATE on the conflicting row so RETURNING always yields the
	// canonical id; key itself is immutable.
	query := `
		INSERT INTO gateway_relationships (
			id, origin_model_id, related_model_id, key, fk_field_name, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (origin_model_id, related_model_id, key)
		DO UPDATE SET fk_field_name = EXCLUDED.fk_field_name
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		rel.ID, rel.OriginModelID, rel.RelatedModelID, rel.Key, rel.FKFieldName, rel.CreatedAt,
	).Scan(&rel.ID, &rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}

	return nil
}

const relationshipEdgeColumns = `
	r.id, r.origin_model_id, r.related_model_id, r.key, r.fk_field_name, r.created_at,
	om.id, om.logic_module_endpoint_name, om.model, om.endpoint, om.lookup_field_name, om.is_local, om.created_at,
	rm.id, rm.logic_module_endpoint_name, rm.model, rm.endpoint, rm.lookup_field_name, rm.is_local, rm.created_at`

const relationshipEdgeJoins = `
	FROM gateway_relationships r
	JOIN gateway_logic_module_models om ON r.origin_model_id = om.id
	JOIN gateway_logic_module_models rm ON r.related_model_id = rm.id`

func (r *relationshipRepository) FindByKey(ctx context.Context, key string) (*models.RelationshipEdge, error) {
	query := `SELECT` + relationshipEdgeColumns + relationshipEdgeJoins + `
	WHERE r.key = $1`

	edge, err := scanRelationshipEdge(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	edge.IsForwardLookup = true
	return edge, nil
}

func (r *relationshipRepository) RelationshipsFor(ctx context.Context, modelID uuid.UUID) ([]*models.RelationshipEdge, error) {
	query := `SELECT` + relationshipEdgeColumns + relationshipEdgeJoins + `
	WHERE r.origin_model_id = $1 OR r.related_model_id = $1
	ORDER BY r.key`

	rows, err := r.db.Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var edges []*models.RelationshipEdge
	for rows.Next() {
		edge, err := scanRelationshipEdge(rows)
		if err != nil {
			return nil, err
		}

		// A self-referencing relationship (origin == related) is treated as
		// forward; otherwise direction follows which side the model is on.
		edge.IsForwardLookup = edge.Relationship.OriginModelID == modelID
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return edges, nil
}

func (r *relationshipRepository) List(ctx context.Context) ([]*models.Relationship, error) {
	query := `
		SELECT id, origin_model_id, related_model_id, key, fk_field_name, created_at
		FROM gateway_relationships
		ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var rels []*models.Relationship
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(&rel.ID, &rel.OriginModelID, &rel.RelatedModelID, &rel.Key, &rel.FKFieldName, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rels = append(rels, &rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return rels, nil
}

func (r *relationshipRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM gateway_relationships WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanRelationshipEdge(row pgx.Row) (*models.RelationshipEdge, error) {
	var rel models.Relationship
	var om, rm models.LogicModuleModel

	err := row.Scan(
		&rel.ID, &rel.OriginModelID, &rel.RelatedModelID, &rel.Key, &rel.FKFieldName, &rel.CreatedAt,
		&om.ID, &om.LogicModuleEndpointName, &om.Model, &om.Endpoint, &om.LookupFieldName, &om.IsLocal, &om.CreatedAt,
		&rm.ID, &rm.LogicModuleEndpointName, &rm.Model, &rm.Endpoint, &rm.LookupFieldName, &rm.IsLocal, &rm.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan relationship edge: %w", err)
	}

	return &models.RelationshipEdge{
		Relationship: &rel,
		OriginModel:  &om,
		RelatedModel: &rm,
	}, nil
}
