package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/corebridge/corebridge/pkg/apperrors"
	"github.com/corebridge/corebridge/pkg/database"
	"github.com/corebridge/corebridge/pkg/models"
)

// JoinRecordRepository provides data access for materialised join records.
// Each write is its own transaction; idempotency rides on the unique index
// over (relationship, origin PK, related PK, organization).
type JoinRecordRepository interface {
	// Insert persists a join tuple. The id/uuid column pair for each side is
	// selected by models.ClassifyPK. A unique-constraint collision is
	// reported as apperrors.ErrConflict so callers can treat it as success.
	Insert(ctx context.Context, relationshipID uuid.UUID, originPK, relatedPK string, organizationUUID *uuid.UUID) (*models.JoinRecord, error)
	// Exists reports whether a join tuple for the relationship key already
	// links the two PKs, regardless of PK kind.
	Exists(ctx context.Context, relationshipKey string, originPK, relatedPK string) (bool, error)
	// FindRelated returns the other-side PKs joined to pk. With forward=true
	// pk is matched against the origin side; otherwise against the related
	// side. When organizationUUID is set, reads include global (NULL
	// organization) joins; otherwise only global joins are visible.
	FindRelated(ctx context.Context, relationshipID uuid.UUID, pk string, forward bool, organizationUUID *uuid.UUID) ([]string, error)
	// DeleteMatching removes join tuples linking pk and previousPK in either
	// direction, regardless of PK kind.
	DeleteMatching(ctx context.Context, pk, previousPK string) error
	// DeleteTouching removes every join record referencing pk on either side.
	// Used after a record deletion has been forwarded to its backend.
	DeleteTouching(ctx context.Context, pk string) error
}

type joinRecordRepository struct {
	db *database.DB
}

// NewJoinRecordRepository creates a new JoinRecordRepository.
func NewJoinRecordRepository(db *database.DB) JoinRecordRepository {
	return &joinRecordRepository{db: db}
}

var _ JoinRecordRepository = (*joinRecordRepository)(nil)

// pkColumns holds the parsed form of a primary key: exactly one field is set.
type pkColumns struct {
	id   *int64
	uuid *uuid.UUID
}

// parsePK classifies and parses a PK string into its column pair.
func parsePK(value string) (pkColumns, error) {
	if models.ClassifyPK(value) == models.PKKindUUID {
		u, err := uuid.Parse(value)
		if err != nil {
			return pkColumns{}, fmt.Errorf("failed to parse uuid pk %q: %w", value, err)
		}
		return pkColumns{uuid: &u}, nil
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return pkColumns{}, fmt.Errorf("pk %q is neither a uuid nor an integer id", value)
	}
	return pkColumns{id: &id}, nil
}

// text returns the canonical textual form used for kind-agnostic matching.
func (p pkColumns) text() string {
	if p.uuid != nil {
		return p.uuid.String()
	}
	return strconv.FormatInt(*p.id, 10)
}

func (r *joinRecordRepository) Insert(ctx context.Context, relationshipID uuid.UUID, originPK, relatedPK string, organizationUUID *uuid.UUID) (*models.JoinRecord, error) {
	origin, err := parsePK(originPK)
	if err != nil {
		return nil, err
	}
	related, err := parsePK(relatedPK)
	if err != nil {
		return nil, err
	}

	record := &models.JoinRecord{
		ID:                uuid.New(),
		RelationshipID:    relationshipID,
		RecordID:          origin.id,
		RecordUUID:        origin.uuid,
		RelatedRecordID:   related.id,
		RelatedRecordUUID: related.uuid,
		OrganizationUUID:  organizationUUID,
		CreatedAt:         time.Now(),
	}

	query := `
		INSERT INTO gateway_join_records (
			id, relationship_id, record_id, record_uuid,
			related_record_id, related_record_uuid, organization_uuid, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		record.ID, record.RelationshipID, record.RecordID, record.RecordUUID,
		record.RelatedRecordID, record.RelatedRecordUUID, record.OrganizationUUID, record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to insert join record: %w", err)
	}

	return record, nil
}

func (r *joinRecordRepository) Exists(ctx context.Context, relationshipKey string, originPK, relatedPK string) (bool, error) {
	origin, err := parsePK(originPK)
	if err != nil {
		return false, err
	}
	related, err := parsePK(relatedPK)
	if err != nil {
		return false, err
	}

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM gateway_join_records j
			JOIN gateway_relationships r ON j.relationship_id = r.id
			WHERE r.key = $1
			  AND COALESCE(j.record_uuid::text, j.record_id::text) = $2
			  AND COALESCE(j.related_record_uuid::text, j.related_record_id::text) = $3
		)`

	var exists bool
	err = r.db.QueryRow(ctx, query, relationshipKey, origin.text(), related.text()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check join record existence: %w", err)
	}

	return exists, nil
}

func (r *joinRecordRepository) FindRelated(ctx context.Context, relationshipID uuid.UUID, pk string, forward bool, organizationUUID *uuid.UUID) ([]string, error) {
	parsed, err := parsePK(pk)
	if err != nil {
		return nil, err
	}

	matchSide := `COALESCE(record_uuid::text, record_id::text)`
	returnSide := `COALESCE(related_record_uuid::text, related_record_id::text)`
	if !forward {
		matchSide, returnSide = returnSide, matchSide
	}

	query := `
		SELECT ` + returnSide + `
		FROM gateway_join_records
		WHERE relationship_id = $1
		  AND ` + matchSide + ` = $2
		  AND (organization_uuid IS NULL OR organization_uuid = $3)
		ORDER BY created_at`

	// Without tenant context only global joins are visible.
	var orgParam *uuid.UUID
	if organizationUUID != nil {
		orgParam = organizationUUID
	}

	rows, err := r.db.Query(ctx, query, relationshipID, parsed.text(), orgParam)
	if err != nil {
		return nil, fmt.Errorf("failed to query join records: %w", err)
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var related string
		if err := rows.Scan(&related); err != nil {
			return nil, fmt.Errorf("failed to scan join record: %w", err)
		}
		pks = append(pks, related)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating join records: %w", err)
	}

	return pks, nil
}

func (r *joinRecordRepository) DeleteMatching(ctx context.Context, pk, previousPK string) error {
	pkParsed, err := parsePK(pk)
	if err != nil {
		return err
	}
	prevParsed, err := parsePK(previousPK)
	if err != nil {
		return err
	}

	query := `
		DELETE FROM gateway_join_records
		WHERE (COALESCE(record_uuid::text, record_id::text) = $1
		       AND COALESCE(related_record_uuid::text, related_record_id::text) = $2)
		   OR (COALESCE(record_uuid::text, record_id::text) = $2
		       AND COALESCE(related_record_uuid::text, related_record_id::text) = $1)`

	_, err = r.db.Exec(ctx, query, pkParsed.text(), prevParsed.text())
	if err != nil {
		return fmt.Errorf("failed to delete matching join records: %w", err)
	}

	return nil
}

func (r *joinRecordRepository) DeleteTouching(ctx context.Context, pk string) error {
	parsed, err := parsePK(pk)
	if err != nil {
		return err
	}

	query := `
		DELETE FROM gateway_join_records
		WHERE COALESCE(record_uuid::text, record_id::text) = $1
		   OR COALESCE(related_record_uuid::text, related_record_id::text) = $1`

	_, err = r.db.Exec(ctx, query, parsed.text())
	if err != nil {
		return fmt.Errorf("failed to delete join records touching pk: %w", err)
	}

	return nil
}
