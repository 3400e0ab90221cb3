package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	"github.com/magabrotheeeer/subscription-entitlements/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreatePlan(ctx context.Context, plan models.Plan) (int64, error) {
	args := m.Called(ctx, plan)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}
func (m *RepoMock) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}
func (m *RepoMock) ListPlans(ctx context.Context, onlyActive bool) ([]*models.Plan, error) {
	args := m.Called(ctx, onlyActive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}
func (m *RepoMock) UpdatePlan(ctx context.Context, plan models.Plan, id int64) (int64, error) {
	args := m.Called(ctx, plan, id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) SetPlanActive(ctx context.Context, id int64, isActive bool) (int64, error) {
	args := m.Called(ctx, id, isActive)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) RemovePlan(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var activePlans = []*models.Plan{
	{ID: 1, Name: models.PlanBasic, Features: []string{"f1"}, Price: 0, IsActive: true},
	{ID: 2, Name: models.PlanStandard, Features: []string{"f1", "f2"}, Price: 9.99, IsActive: true},
}

func TestPlanService_List(t *testing.T) {
	t.Run("admin sees all plans without cache", func(t *testing.T) {
		repoMock := new(RepoMock)
		cacheMock := new(CacheMock)
		repoMock.On("ListPlans", mock.Anything, false).Return(activePlans, nil)

		service := NewPlanService(repoMock, cacheMock, newNoopLogger())

		got, err := service.List(context.Background(), true)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		cacheMock.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("user list goes through cache", func(t *testing.T) {
		repoMock := new(RepoMock)
		cacheMock := new(CacheMock)
		cacheMock.On("Get", "plans:active", mock.Anything).Return(false, nil)
		repoMock.On("ListPlans", mock.Anything, true).Return(activePlans, nil)
		cacheMock.On("Set", "plans:active", activePlans, time.Hour).Return(nil)

		service := NewPlanService(repoMock, cacheMock, newNoopLogger())

		got, err := service.List(context.Background(), false)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		cacheMock.AssertExpectations(t)
	})
}

func TestPlanService_Get(t *testing.T) {
	inactive := &models.Plan{ID: 3, Name: models.PlanPremium, IsActive: false}

	repoMock := new(RepoMock)
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(activePlans[0], nil)
	repoMock.On("GetPlan", mock.Anything, int64(3)).Return(inactive, nil)
	repoMock.On("GetPlan", mock.Anything, int64(404)).Return(nil, repository.ErrNotFound)

	service := NewPlanService(repoMock, new(CacheMock), newNoopLogger())

	got, err := service.Get(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, models.PlanBasic, got.Name)

	// отключённый план скрыт от обычного пользователя, но виден администратору
	_, err = service.Get(context.Background(), 3, false)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = service.Get(context.Background(), 3, true)
	require.NoError(t, err)

	_, err = service.Get(context.Background(), 404, true)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanService_Create(t *testing.T) {
	t.Run("success invalidates cache", func(t *testing.T) {
		repoMock := new(RepoMock)
		cacheMock := new(CacheMock)
		repoMock.On("GetPlanByName", mock.Anything, "Premium").Return(nil, repository.ErrNotFound)
		repoMock.On("CreatePlan", mock.Anything, mock.MatchedBy(func(p models.Plan) bool {
			return p.Name == "Premium" && p.IsActive
		})).Return(int64(3), nil)
		cacheMock.On("Invalidate", "plans:active").Return(nil)

		service := NewPlanService(repoMock, cacheMock, newNoopLogger())

		id, err := service.Create(context.Background(), models.DummyPlan{
			Name:     "Premium",
			Features: []string{"f1", "f2", "f3"},
			Price:    19.99,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), id)
		cacheMock.AssertExpectations(t)
	})

	t.Run("duplicate name", func(t *testing.T) {
		repoMock := new(RepoMock)
		repoMock.On("GetPlanByName", mock.Anything, "Basic").Return(activePlans[0], nil)

		service := NewPlanService(repoMock, new(CacheMock), newNoopLogger())

		_, err := service.Create(context.Background(), models.DummyPlan{Name: "Basic", Features: []string{"f1"}})
		assert.ErrorIs(t, err, ErrPlanNameTaken)
	})
}

func TestPlanService_Toggle(t *testing.T) {
	repoMock := new(RepoMock)
	cacheMock := new(CacheMock)
	disabled := &models.Plan{ID: 1, Name: models.PlanBasic, IsActive: false}
	repoMock.On("SetPlanActive", mock.Anything, int64(1), false).Return(int64(1), nil)
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(disabled, nil)
	cacheMock.On("Invalidate", "plans:active").Return(nil)

	service := NewPlanService(repoMock, cacheMock, newNoopLogger())

	got, err := service.Toggle(context.Background(), 1, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestPlanService_ToggleNotFound(t *testing.T) {
	repoMock := new(RepoMock)
	repoMock.On("SetPlanActive", mock.Anything, int64(404), true).Return(int64(0), nil)

	service := NewPlanService(repoMock, new(CacheMock), newNoopLogger())

	_, err := service.Toggle(context.Background(), 404, true)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanService_Remove(t *testing.T) {
	t.Run("plan with ledger records is protected", func(t *testing.T) {
		repoMock := new(RepoMock)
		repoMock.On("RemovePlan", mock.Anything, int64(1)).Return(int64(0), repository.ErrRestricted)

		service := NewPlanService(repoMock, new(CacheMock), newNoopLogger())

		err := service.Remove(context.Background(), 1)
		assert.ErrorIs(t, err, ErrPlanInUse)
	})

	t.Run("unused plan is removed", func(t *testing.T) {
		repoMock := new(RepoMock)
		cacheMock := new(CacheMock)
		repoMock.On("RemovePlan", mock.Anything, int64(5)).Return(int64(1), nil)
		cacheMock.On("Invalidate", "plans:active").Return(nil)

		service := NewPlanService(repoMock, cacheMock, newNoopLogger())

		require.NoError(t, service.Remove(context.Background(), 5))
		cacheMock.AssertExpectations(t)
	})
}
