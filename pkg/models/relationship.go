package models

import (
	"time"

	"github.com/google/uuid"
)

// Relationship is a directed edge type between two logic module models.
// (OriginModelID, RelatedModelID, Key) is unique and Key is immutable after
// creation. Stored in gateway_relationships.
type Relationship struct {
	ID             uuid.UUID `json:"id"`
	OriginModelID  uuid.UUID `json:"origin_model_id"`
	RelatedModelID uuid.UUID `json:"related_model_id"`
	Key            string    `json:"key"` // stable slug, e.g. "product_product_team_relationship"
	// FKFieldName names the payload field that carries the join as a foreign
	// key, when the relationship is expressed inline. Empty when the join is
	// only materialised through join records.
	FKFieldName string    `json:"fk_field_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RelationshipEdge is a Relationship joined with both endpoint models and the
// direction it was reached from. IsForwardLookup is true when the model the
// edge was looked up for is the origin side; reverse edges swap the two sides
// throughout orchestration.
type RelationshipEdge struct {
	Relationship    *Relationship     `json:"relationship"`
	OriginModel     *LogicModuleModel `json:"origin_model"`
	RelatedModel    *LogicModuleModel `json:"related_model"`
	IsForwardLookup bool              `json:"is_forward_lookup"`
}
