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

// LogicModuleRepository provides data access for registered backend services
// and their resource models.
type LogicModuleRepository interface {
	Upsert(ctx context.Context, lm *models.LogicModule) error
	GetByEndpointName(ctx context.Context, endpointName string) (*models.LogicModule, error)
	List(ctx context.Context) ([]*models.LogicModule, error)
	Delete(ctx context.Context, endpointName string) error

	UpsertModel(ctx context.Context, lmm *models.LogicModuleModel) error
	GetModel(ctx context.Context, logicModuleEndpointName, model string) (*models.LogicModuleModel, error)
	GetModelByID(ctx context.Context, id uuid.UUID) (*models.LogicModuleModel, error)
	// GetModelByEndpoint resolves a resource model from the request sub-path
	// under a logic module (e.g. "/products/").
	GetModelByEndpoint(ctx context.Context, logicModuleEndpointName, endpoint string) (*models.LogicModuleModel, error)
	ListModels(ctx context.Context, logicModuleEndpointName string) ([]*models.LogicModuleModel, error)
}

type logicModuleRepository struct {
	db *database.DB
}

// NewLogicModuleRepository creates a new LogicModuleRepository.
func NewLogicModuleRepository(db *database.DB) LogicModuleRepository {
	return &logicModuleRepository{db: db}
}

var _ LogicModuleRepository = (*logicModuleRepository)(nil)

func (r *logicModuleRepository) Upsert(ctx context.Context, lm *models.LogicModule) error {
	if lm.ID == uuid.Nil {
		lm.ID = uuid.New()
	}
	if lm.CreatedAt.IsZero() {
		lm.CreatedAt = time.Now()
	}

	// endpoint_name is the identity and immutable; conflicting upserts only
	// refresh the mutable columns.
	query := `
		INSERT INTO gateway_logic_modules (
			id, name, endpoint_name, endpoint, docs_endpoint, is_local, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (endpoint_name)
		DO UPDATE SET
			name = EXCLUDED.name,
			endpoint = EXCLUDED.endpoint,
			docs_endpoint = EXCLUDED.docs_endpoint,
			is_local = EXCLUDED.is_local,
			updated_at = now()
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		lm.ID, lm.Name, lm.EndpointName, lm.Endpoint, lm.DocsEndpoint, lm.IsLocal, lm.CreatedAt,
	).Scan(&lm.ID, &lm.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert logic module: %w", err)
	}

	return nil
}

func (r *logicModuleRepository) GetByEndpointName(ctx context.Context, endpointName string) (*models.LogicModule, error) {
	query := `
		SELECT id, name, endpoint_name, endpoint, docs_endpoint, is_local, created_at, updated_at
		FROM gateway_logic_modules
		WHERE endpoint_name = $1`

	lm, err := scanLogicModule(r.db.QueryRow(ctx, query, endpointName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return lm, nil
}

func (r *logicModuleRepository) List(ctx context.Context) ([]*models.LogicModule, error) {
	query := `
		SELECT id, name, endpoint_name, endpoint, docs_endpoint, is_local, created_at, updated_at
		FROM gateway_logic_modules
		ORDER BY endpoint_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query logic modules: %w", err)
	}
	defer rows.Close()

	var modules []*models.LogicModule
	for rows.Next() {
		lm, err := scanLogicModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, lm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logic modules: %w", err)
	}

	return modules, nil
}

func (r *logicModuleRepository) Delete(ctx context.Context, endpointName string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM gateway_logic_modules WHERE endpoint_name = $1`, endpointName)
	if err != nil {
		return fmt.Errorf("failed to delete logic module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *logicModuleRepository) UpsertModel(ctx context.Context, lmm *models.LogicModuleModel) error {
	if lmm.ID == uuid.Nil {
		lmm.ID = uuid.New()
	}
	if lmm.CreatedAt.IsZero() {
		lmm.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO gateway_logic_module_models (
			id, logic_module_endpoint_name, model, endpoint, lookup_field_name, is_local, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (logic_module_endpoint_name, model)
		DO UPDATE SET
			endpoint = EXCLUDED.endpoint,
			lookup_field_name = EXCLUDED.lookup_field_name,
			is_local = EXCLUDED.is_local
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		lmm.ID, lmm.LogicModuleEndpointName, lmm.Model, lmm.Endpoint, lmm.LookupFieldName, lmm.IsLocal, lmm.CreatedAt,
	).Scan(&lmm.ID, &lmm.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert logic module model: %w", err)
	}

	return nil
}

func (r *logicModuleRepository) GetModel(ctx context.Context, logicModuleEndpointName, model string) (*models.LogicModuleModel, error) {
	query := `
		SELECT id, logic_module_endpoint_name, model, endpoint, lookup_field_name, is_local, created_at
		FROM gateway_logic_module_models
		WHERE logic_module_endpoint_name = $1 AND model = $2`

	lmm, err := scanLogicModuleModel(r.db.QueryRow(ctx, query, logicModuleEndpointName, model))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return lmm, nil
}

func (r *logicModuleRepository) GetModelByID(ctx context.Context, id uuid.UUID) (*models.LogicModuleModel, error) {
	query := `
		SELECT id, logic_module_endpoint_name, model, endpoint, lookup_field_name, is_local, created_at
		FROM gateway_logic_module_models
		WHERE id = $1`

	lmm, err := scanLogicModuleModel(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return lmm, nil
}

func (r *logicModuleRepository) GetModelByEndpoint(ctx context.Context, logicModuleEndpointName, endpoint string) (*models.LogicModuleModel, error) {
	query := `
		SELECT id, logic_module_endpoint_name, model, endpoint, lookup_field_name, is_local, created_at
		FROM gateway_logic_module_models
		WHERE logic_module_endpoint_name = $1 AND endpoint = $2`

	lmm, err := scanLogicModuleModel(r.db.QueryRow(ctx, query, logicModuleEndpointName, endpoint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return lmm, nil
}

func (r *logicModuleRepository) ListModels(ctx context.Context, logicModuleEndpointName string) ([]*models.LogicModuleModel, error) {
	query := `
		SELECT id, logic_module_endpoint_name, model, endpoint, lookup_field_name, is_local, created_at
		FROM gateway_logic_module_models
		WHERE logic_module_endpoint_name = $1
		ORDER BY model`

	rows, err := r.db.Query(ctx, query, logicModuleEndpointName)
	if err != nil {
		return nil, fmt.Errorf("failed to query logic module models: %w", err)
	}
	defer rows.Close()

	var result []*models.LogicModuleModel
	for rows.Next() {
		lmm, err := scanLogicModuleModel(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, lmm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logic module models: %w", err)
	}

	return result, nil
}

func scanLogicModule(row pgx.Row) (*models.LogicModule, error) {
	var lm models.LogicModule
	err := row.Scan(&lm.ID, &lm.Name, &lm.EndpointName, &lm.Endpoint, &lm.DocsEndpoint, &lm.IsLocal, &lm.CreatedAt, &lm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan logic module: %w", err)
	}
	return &lm, nil
}

func scanLogicModuleModel(row pgx.Row) (*models.LogicModuleModel, error) {
	var lmm models.LogicModuleModel
	err := row.Scan(&lmm.ID, &lmm.LogicModuleEndpointName, &lmm.Model, &lmm.Endpoint, &lmm.LookupFieldName, &lmm.IsLocal, &lmm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan logic module model: %w", err)
	}
	return &lmm, nil
}
