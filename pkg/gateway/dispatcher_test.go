package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/apperrors"
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

type echoLocalHandler struct{}

func (echoLocalHandler) Handle(_ context.Context, call *Call) (*Response, error) {
	return &Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"served": "locally", "path": "` + call.Path + `"}`),
	}, nil
}

func TestDispatchRejectsUnknownService(t *testing.T) {
	repo := new(mockLogicModuleRepo)
	repo.On("GetByEndpointName", mock.Anything, "nonexistent").Return(nil, apperrors.ErrNotFound)

	d := NewDispatcher(repo, newTestClient(t, time.Second), zap.NewNop())

	_, _, err := d.Dispatch(context.Background(), &Call{
		Service: "nonexistent",
		Method:  http.MethodGet,
		Path:    "/things/",
	})
	assert.ErrorIs(t, err, apperrors.ErrRouteNotFound)
	repo.AssertExpectations(t)
}

func TestDispatchRoutesToLocalHandler(t *testing.T) {
	module := &models.LogicModule{
		ID:           uuid.New(),
		EndpointName: "joins",
		IsLocal:      true,
	}
	repo := new(mockLogicModuleRepo)
	repo.On("GetByEndpointName", mock.Anything, "joins").Return(module, nil)

	d := NewDispatcher(repo, newTestClient(t, time.Second), zap.NewNop())
	d.RegisterLocal("joins", echoLocalHandler{})

	served, resp, err := d.Dispatch(context.Background(), &Call{
		Service: "joins",
		Method:  http.MethodGet,
		Path:    "/records/",
	})
	require.NoError(t, err)

	assert.Equal(t, "joins", served.EndpointName)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), `"served": "locally"`)
}

func TestDispatchRoutesToRemoteBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/", r.URL.Path)
		w.Write([]byte(`[{"product_uuid": "u1"}]`))
	}))
	defer backend.Close()

	module := moduleFor(backend.URL)
	repo := new(mockLogicModuleRepo)
	repo.On("GetByEndpointName", mock.Anything, "products").Return(module, nil)

	d := NewDispatcher(repo, newTestClient(t, 5*time.Second), zap.NewNop())

	_, resp, err := d.Dispatch(context.Background(), &Call{
		Service: "products",
		Method:  http.MethodGet,
		Path:    "/products/",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatchLocalModuleWithoutHandlerFails(t *testing.T) {
	module := &models.LogicModule{EndpointName: "orphan", IsLocal: true}
	repo := new(mockLogicModuleRepo)
	repo.On("GetByEndpointName", mock.Anything, "orphan").Return(module, nil)

	d := NewDispatcher(repo, newTestClient(t, time.Second), zap.NewNop())

	_, _, err := d.Dispatch(context.Background(), &Call{Service: "orphan", Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, apperrors.ErrRouteNotFound)
}

func TestRegisterLocalPanicsOnDuplicate(t *testing.T) {
	repo := new(mockLogicModuleRepo)
	d := NewDispatcher(repo, newTestClient(t, time.Second), zap.NewNop())
	d.RegisterLocal("joins", echoLocalHandler{})

	assert.Panics(t, func() {
		d.RegisterLocal("joins", echoLocalHandler{})
	})
}
