// Package datamesh links records across backend services. Relationships are
// registered as directed edges between logic module models; join records
// materialise the individual links and are expanded back into responses on
// read.
package datamesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/models"
	"github.com/corebridge/corebridge/pkg/repositories"
)

// JoinService is the canonical write path for join records. Every link
// between two records goes through ValidateJoin so idempotency holds no
// matter how many callers race.
type JoinService interface {
	// ValidateJoin links originPK and relatedPK under the relationship,
	// creating the join record only if it does not already exist. A
	// concurrent duplicate insert is treated as success.
	ValidateJoin(ctx context.Context, edge *models.RelationshipEdge, originPK, relatedPK string, organizationUUID *uuid.UUID) error
	// RelatedPKs returns the PKs joined to pk across the edge, oriented by
	// the edge's lookup direction.
	RelatedPKs(ctx context.Context, edge *models.RelationshipEdge, pk string, organizationUUID *uuid.UUID) ([]string, error)
	// Relink replaces the join (pk, previousPK) with (pk, newPK).
	Relink(ctx context.Context, edge *models.RelationshipEdge, pk, previousPK, newPK string, organizationUUID *uuid.UUID) error
	// Unlink removes every join record touching pk on either side.
	Unlink(ctx context.Context, pk string) error
}

type joinService struct {
	joins  repositories.JoinRecordRepository
	logger *zap.Logger
}

// NewJoinService creates a JoinService over the join record store.
func NewJoinService(joins repositories.JoinRecordRepository, logger *zap.Logger) JoinService {
	return &joinService{
		joins:  joins,
		logger: logger.Named("join-service"),
	}
}

var _ JoinService = (*joinService)(nil)

func (s *joinService) ValidateJoin(ctx context.Context, edge *models.RelationshipEdge, originPK, relatedPK string, organizationUUID *uuid.UUID) error {
	if originPK == "" || relatedPK == "" {
		return fmt.Errorf("%w: join for %q needs both primary keys", apperrors.ErrRelationshipMisconfigured, edge.Relationship.Key)
	}

	// Reverse edges store the tuple in the relationship's declared
	// orientation, so lookups from either side agree.
	if !edge.IsForwardLookup {
		originPK, relatedPK = relatedPK, originPK
	}

	exists, err := s.joins.Exists(ctx, edge.Relationship.Key, originPK, relatedPK)
	if err != nil {
		return fmt.Errorf("failed to check join existence: %w", err)
	}
	if exists {
		return nil
	}

	_, err = s.joins.Insert(ctx, edge.Relationship.ID, originPK, relatedPK, organizationUUID)
	if errors.Is(err, apperrors.ErrConflict) {
		// A concurrent caller won the race; the row exists.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert join record: %w", err)
	}

	s.logger.Debug("join record created",
		zap.String("relationship", edge.Relationship.Key),
		zap.String("origin_pk", originPK),
		zap.String("related_pk", relatedPK))

	return nil
}

func (s *joinService) RelatedPKs(ctx context.Context, edge *models.RelationshipEdge, pk string, organizationUUID *uuid.UUID) ([]string, error) {
	pks, err := s.joins.FindRelated(ctx, edge.Relationship.ID, pk, edge.IsForwardLookup, organizationUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up joins for %q: %w", edge.Relationship.Key, err)
	}
	return pks, nil
}

func (s *joinService) Relink(ctx context.Context, edge *models.RelationshipEdge, pk, previousPK, newPK string, organizationUUID *uuid.UUID) error {
	if err := s.joins.DeleteMatching(ctx, pk, previousPK); err != nil {
		return fmt.Errorf("failed to delete previous join: %w", err)
	}
	return s.ValidateJoin(ctx, edge, pk, newPK, organizationUUID)
}

func (s *joinService) Unlink(ctx context.Context, pk string) error {
	if err := s.joins.DeleteTouching(ctx, pk); err != nil {
		return fmt.Errorf("failed to delete joins touching %q: %w", pk, err)
	}
	return nil
}
