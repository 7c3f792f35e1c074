package datamesh

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/corebridge/corebridge/pkg/gateway"
	"github.com/corebridge/corebridge/pkg/models"
)

type mockLogicModuleRepo struct {
	mock.Mock
}

func (m *mockLogicModuleRepo) Upsert(ctx context.Context, lm *models.LogicModule) error {
	args := m.Called(ctx, lm)
	return args.Error(0)
}

func (m *mockLogicModuleRepo) GetByEndpointName(ctx context.Context, endpointName string) (*models.LogicModule, error) {
	args := m.Called(ctx, endpointName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogicModule), args.Error(1)
}

func (m *mockLogicModuleRepo) List(ctx context.Context) ([]*models.LogicModule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LogicModule), args.Error(1)
}

func (m *mockLogicModuleRepo) Delete(ctx context.Context, endpointName string) error {
	args := m.Called(ctx, endpointName)
	return args.Error(0)
}

func (m *mockLogicModuleRepo) UpsertModel(ctx context.Context, lmm *models.LogicModuleModel) error {
	args := m.Called(ctx, lmm)
	return args.Error(0)
}

func (m *mockLogicModuleRepo) GetModel(ctx context.Context, logicModuleEndpointName, model string) (*models.LogicModuleModel, error) {
	args := m.Called(ctx, logicModuleEndpointName, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogicModuleModel), args.Error(1)
}

func (m *mockLogicModuleRepo) GetModelByID(ctx context.Context, id uuid.UUID) (*models.LogicModuleModel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogicModuleModel), args.Error(1)
}

func (m *mockLogicModuleRepo) GetModelByEndpoint(ctx context.Context, logicModuleEndpointName, endpoint string) (*models.LogicModuleModel, error) {
	args := m.Called(ctx, logicModuleEndpointName, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LogicModuleModel), args.Error(1)
}

func (m *mockLogicModuleRepo) ListModels(ctx context.Context, logicModuleEndpointName string) ([]*models.LogicModuleModel, error) {
	args := m.Called(ctx, logicModuleEndpointName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LogicModuleModel), args.Error(1)
}

type mockRelationshipRepo struct {
	mock.Mock
}

func (m *mockRelationshipRepo) Upsert(ctx context.Context, rel *models.Relationship) error {
	args := m.Called(ctx, rel)
	return args.Error(0)
}

func (m *mockRelationshipRepo) FindByKey(ctx context.Context, key string) (*models.RelationshipEdge, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RelationshipEdge), args.Error(1)
}

func (m *mockRelationshipRepo) RelationshipsFor(ctx context.Context, modelID uuid.UUID) ([]*models.RelationshipEdge, error) {
	args := m.Called(ctx, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RelationshipEdge), args.Error(1)
}

func (m *mockRelationshipRepo) List(ctx context.Context) ([]*models.Relationship, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Relationship), args.Error(1)
}

func (m *mockRelationshipRepo) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type mockJoinRecordRepo struct {
	mock.Mock
}

func (m *mockJoinRecordRepo) Insert(ctx context.Context, relationshipID uuid.UUID, originPK, relatedPK string, organizationUUID *uuid.UUID) (*models.JoinRecord, error) {
	args := m.Called(ctx, relationshipID, originPK, relatedPK, organizationUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JoinRecord), args.Error(1)
}

func (m *mockJoinRecordRepo) Exists(ctx context.Context, relationshipKey string, originPK, relatedPK string) (bool, error) {
	args := m.Called(ctx, relationshipKey, originPK, relatedPK)
	return args.Bool(0), args.Error(1)
}

func (m *mockJoinRecordRepo) FindRelated(ctx context.Context, relationshipID uuid.UUID, pk string, forward bool, organizationUUID *uuid.UUID) ([]string, error) {
	args := m.Called(ctx, relationshipID, pk, forward, organizationUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockJoinRecordRepo) DeleteMatching(ctx context.Context, pk, previousPK string) error {
	args := m.Called(ctx, pk, previousPK)
	return args.Error(0)
}

func (m *mockJoinRecordRepo) DeleteTouching(ctx context.Context, pk string) error {
	args := m.Called(ctx, pk)
	return args.Error(0)
}

type mockJoinService struct {
	mock.Mock
}

func (m *mockJoinService) ValidateJoin(ctx context.Context, edge *models.RelationshipEdge, originPK, relatedPK string, organizationUUID *uuid.UUID) error {
	args := m.Called(ctx, edge, originPK, relatedPK, organizationUUID)
	return args.Error(0)
}

func (m *mockJoinService) RelatedPKs(ctx context.Context, edge *models.RelationshipEdge, pk string, organizationUUID *uuid.UUID) ([]string, error) {
	args := m.Called(ctx, edge, pk, organizationUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockJoinService) Relink(ctx context.Context, edge *models.RelationshipEdge, pk, previousPK, newPK string, organizationUUID *uuid.UUID) error {
	args := m.Called(ctx, edge, pk, previousPK, newPK, organizationUUID)
	return args.Error(0)
}

func (m *mockJoinService) Unlink(ctx context.Context, pk string) error {
	args := m.Called(ctx, pk)
	return args.Error(0)
}

// stubBackend records sub-requests and answers them through a configurable
// handler.
type stubBackend struct {
	mu      sync.Mutex
	calls   []*gateway.Call
	handler func(module *models.LogicModule, call *gateway.Call) (*gateway.Response, error)
}

func (s *stubBackend) DispatchTo(_ context.Context, module *models.LogicModule, call *gateway.Call) (*gateway.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if s.handler == nil {
		return &gateway.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	}
	return s.handler(module, call)
}

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
