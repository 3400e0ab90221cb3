package services

import (
	"context"
	"errors"
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

func (m *RepoMock) CreateSubscriptionReplacingActive(ctx context.Context, sub models.Subscription) (int64, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}
func (m *RepoMock) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}
func (m *RepoMock) ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}
func (m *RepoMock) ListSubscriptionsByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, userUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}
func (m *RepoMock) UpdateSubscriptionStatus(ctx context.Context, id int64, status string) (int64, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) RenewSubscription(ctx context.Context, id int64, endDate *time.Time) error {
	args := m.Called(ctx, id, endDate)
	return args.Error(0)
}
func (m *RepoMock) ExpireOverdueSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}
func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

const userUID = "7a9f0b1c-5d3e-4f6a-8b2c-1d0e9f8a7b6c"

var basicPlan = &models.Plan{
	ID:       1,
	Name:     models.PlanBasic,
	Features: []string{"f1", "f2"},
	Price:    9.99,
	IsActive: true,
}

func TestSubscriptionService_Create(t *testing.T) {
	inactivePlan := &models.Plan{ID: 2, Name: models.PlanStandard, IsActive: false}

	tests := []struct {
		name       string
		req        models.DummySubscription
		setupMocks func(r *RepoMock, p *PublisherMock)
		wantErr    error
	}{
		{
			name: "success without end date",
			req:  models.DummySubscription{UserUID: userUID, PlanID: 1},
			setupMocks: func(r *RepoMock, p *PublisherMock) {
				r.On("GetUser", mock.Anything, userUID).Return(&models.User{UID: userUID}, nil)
				r.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)
				r.On("CreateSubscriptionReplacingActive", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
					return sub.UserUID == userUID && sub.PlanID == 1 &&
						sub.Status == models.StatusActive && sub.EndDate == nil
				})).Return(int64(10), nil)
				r.On("GetSubscription", mock.Anything, int64(10)).Return(&models.Subscription{
					ID: 10, UserUID: userUID, PlanID: 1, Status: models.StatusActive,
				}, nil)
				p.On("Publish", "subscription.created", mock.Anything).Return(nil)
			},
		},
		{
			name: "unknown user",
			req:  models.DummySubscription{UserUID: userUID, PlanID: 1},
			setupMocks: func(r *RepoMock, _ *PublisherMock) {
				r.On("GetUser", mock.Anything, userUID).Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrUserNotFound,
		},
		{
			name: "unknown plan",
			req:  models.DummySubscription{UserUID: userUID, PlanID: 99},
			setupMocks: func(r *RepoMock, _ *PublisherMock) {
				r.On("GetUser", mock.Anything, userUID).Return(&models.User{UID: userUID}, nil)
				r.On("GetPlan", mock.Anything, int64(99)).Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrPlanNotFound,
		},
		{
			name: "inactive plan",
			req:  models.DummySubscription{UserUID: userUID, PlanID: 2},
			setupMocks: func(r *RepoMock, _ *PublisherMock) {
				r.On("GetUser", mock.Anything, userUID).Return(&models.User{UID: userUID}, nil)
				r.On("GetPlan", mock.Anything, int64(2)).Return(inactivePlan, nil)
			},
			wantErr: ErrPlanInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repoMock := new(RepoMock)
			pubMock := new(PublisherMock)
			tt.setupMocks(repoMock, pubMock)

			service := NewSubscriptionService(repoMock, pubMock, newNoopLogger(), fixedNow)

			got, err := service.Create(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.IsActive)
			assert.Nil(t, got.RemainingDays)
			assert.Equal(t, basicPlan, got.Plan)
			repoMock.AssertExpectations(t)
			pubMock.AssertExpectations(t)
		})
	}
}

func TestSubscriptionService_CreateReplacesActive(t *testing.T) {
	// замена подписки: старая активная запись отменяется в том же
	// вызове хранилища, снаружи виден только результат
	repoMock := new(RepoMock)
	pubMock := new(PublisherMock)

	repoMock.On("GetUser", mock.Anything, userUID).Return(&models.User{UID: userUID}, nil)
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)
	repoMock.On("CreateSubscriptionReplacingActive", mock.Anything, mock.Anything).Return(int64(11), nil)
	repoMock.On("GetSubscription", mock.Anything, int64(11)).Return(&models.Subscription{
		ID: 11, UserUID: userUID, PlanID: 1, Status: models.StatusActive,
	}, nil)
	pubMock.On("Publish", "subscription.created", mock.Anything).Return(nil)

	service := NewSubscriptionService(repoMock, pubMock, newNoopLogger(), fixedNow)

	got, err := service.Create(context.Background(), models.DummySubscription{UserUID: userUID, PlanID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Subscription.Status)
	repoMock.AssertCalled(t, "CreateSubscriptionReplacingActive", mock.Anything, mock.Anything)
}

func TestSubscriptionService_CancelIdempotent(t *testing.T) {
	repoMock := new(RepoMock)
	pubMock := new(PublisherMock)

	active := &models.Subscription{ID: 5, UserUID: userUID, PlanID: 1, Status: models.StatusActive}
	cancelled := &models.Subscription{ID: 5, UserUID: userUID, PlanID: 1, Status: models.StatusCancelled}

	repoMock.On("GetSubscription", mock.Anything, int64(5)).Return(active, nil).Once()
	repoMock.On("UpdateSubscriptionStatus", mock.Anything, int64(5), models.StatusCancelled).Return(int64(1), nil).Once()
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)
	pubMock.On("Publish", "subscription.cancelled", mock.Anything).Return(nil).Once()

	service := NewSubscriptionService(repoMock, pubMock, newNoopLogger(), fixedNow)

	got, err := service.Cancel(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Subscription.Status)
	assert.False(t, got.IsActive)

	// повторная отмена: статус уже cancelled, обновления и события нет
	repoMock.On("GetSubscription", mock.Anything, int64(5)).Return(cancelled, nil).Once()

	got, err = service.Cancel(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Subscription.Status)
	repoMock.AssertNumberOfCalls(t, "UpdateSubscriptionStatus", 1)
	pubMock.AssertNumberOfCalls(t, "Publish", 1)
}

func TestSubscriptionService_CancelNotFound(t *testing.T) {
	repoMock := new(RepoMock)
	repoMock.On("GetSubscription", mock.Anything, int64(404)).Return(nil, repository.ErrNotFound)

	service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)

	_, err := service.Cancel(context.Background(), 404)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestSubscriptionService_Renew(t *testing.T) {
	repoMock := new(RepoMock)
	pubMock := new(PublisherMock)

	newEnd := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repoMock.On("RenewSubscription", mock.Anything, int64(7), &newEnd).Return(nil)
	repoMock.On("GetSubscription", mock.Anything, int64(7)).Return(&models.Subscription{
		ID: 7, UserUID: userUID, PlanID: 1, Status: models.StatusActive, EndDate: &newEnd,
	}, nil)
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)
	pubMock.On("Publish", "subscription.renewed", mock.Anything).Return(nil)

	service := NewSubscriptionService(repoMock, pubMock, newNoopLogger(), fixedNow)

	got, err := service.Renew(context.Background(), 7, models.DummyRenew{EndDate: "2026-01-01"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Subscription.Status)
	require.NotNil(t, got.RemainingDays)
	assert.True(t, got.IsActive)
}

func TestSubscriptionService_RenewBadDate(t *testing.T) {
	service := NewSubscriptionService(new(RepoMock), nil, newNoopLogger(), fixedNow)

	_, err := service.Renew(context.Background(), 7, models.DummyRenew{EndDate: "01-2026"})
	assert.Error(t, err)
}

func TestSubscriptionService_My(t *testing.T) {
	endDate := now.AddDate(0, 0, 30)
	pastEnd := now.AddDate(0, 0, -1)

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		wantErr    error
		wantDays   *int
	}{
		{
			name: "active bounded subscription",
			setupMocks: func(r *RepoMock) {
				r.On("GetActiveSubscription", mock.Anything, userUID).Return(&models.Subscription{
					ID: 1, UserUID: userUID, PlanID: 1, Status: models.StatusActive, EndDate: &endDate,
				}, nil)
				r.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)
			},
			wantDays: intPtr(30),
		},
		{
			name: "no active subscription",
			setupMocks: func(r *RepoMock) {
				r.On("GetActiveSubscription", mock.Anything, userUID).Return(nil, repository.ErrNotFound)
			},
			wantErr: ErrNoActiveSubscription,
		},
		{
			name: "stale active record past end date",
			setupMocks: func(r *RepoMock) {
				r.On("GetActiveSubscription", mock.Anything, userUID).Return(&models.Subscription{
					ID: 1, UserUID: userUID, PlanID: 1, Status: models.StatusActive, EndDate: &pastEnd,
				}, nil)
			},
			wantErr: ErrNoActiveSubscription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repoMock := new(RepoMock)
			tt.setupMocks(repoMock)

			service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)

			got, err := service.My(context.Background(), userUID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.IsActive)
			require.NotNil(t, got.RemainingDays)
			assert.Equal(t, *tt.wantDays, *got.RemainingDays)
		})
	}
}

func TestSubscriptionService_Resolve(t *testing.T) {
	user := &models.User{UID: userUID, EnabledFeatures: map[string]bool{"extra": true}}

	repoMock := new(RepoMock)
	repoMock.On("GetActiveSubscription", mock.Anything, userUID).Return(&models.Subscription{
		ID: 1, UserUID: userUID, PlanID: 1, Status: models.StatusActive,
	}, nil)
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)

	service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)

	snapshot, err := service.Resolve(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, models.PlanBasic, snapshot.PlanName)
	assert.Equal(t, []string{"extra", "f1", "f2"}, snapshot.Features)
	assert.False(t, snapshot.IsExpired)
	assert.Nil(t, snapshot.RemainingDays)
}

func TestSubscriptionService_ResolveNoData(t *testing.T) {
	repoMock := new(RepoMock)
	repoMock.On("GetActiveSubscription", mock.Anything, userUID).Return(nil, repository.ErrNotFound)

	service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)

	snapshot, err := service.Resolve(context.Background(), &models.User{UID: userUID})
	require.NoError(t, err)
	assert.Equal(t, "No Plan", snapshot.PlanName)
	assert.Empty(t, snapshot.Features)
	assert.True(t, snapshot.IsExpired)
	assert.Nil(t, snapshot.RemainingDays)
}

func TestSubscriptionService_HasFeature(t *testing.T) {
	repoMock := new(RepoMock)
	repoMock.On("GetActiveSubscription", mock.Anything, userUID).Return(&models.Subscription{
		ID: 1, UserUID: userUID, PlanID: 1, Status: models.StatusActive,
	}, nil)
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)

	service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)
	user := &models.User{UID: userUID}

	got, err := service.HasFeature(context.Background(), user, "f1")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = service.HasFeature(context.Background(), user, "f3")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSubscriptionService_CanUpgrade(t *testing.T) {
	premium := &models.Plan{ID: 3, Name: models.PlanPremium,
		Features: []string{"f1", "f2", "f3", "f4"}, IsActive: true}

	repoMock := new(RepoMock)
	repoMock.On("GetPlan", mock.Anything, int64(3)).Return(premium, nil)
	repoMock.On("GetActiveSubscription", mock.Anything, userUID).Return(&models.Subscription{
		ID: 1, UserUID: userUID, PlanID: 1, Status: models.StatusActive,
	}, nil)
	repoMock.On("GetPlan", mock.Anything, int64(1)).Return(basicPlan, nil)

	service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)

	got, err := service.CanUpgrade(context.Background(), &models.User{UID: userUID}, 3)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestSubscriptionService_ExpireOverdue(t *testing.T) {
	repoMock := new(RepoMock)
	repoMock.On("ExpireOverdueSubscriptions", mock.Anything, now).Return(int64(3), nil)

	service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)

	count, err := service.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSubscriptionService_ExpireOverdueError(t *testing.T) {
	repoMock := new(RepoMock)
	repoMock.On("ExpireOverdueSubscriptions", mock.Anything, now).Return(int64(0), errors.New("db down"))

	service := NewSubscriptionService(repoMock, nil, newNoopLogger(), fixedNow)

	_, err := service.ExpireOverdue(context.Background())
	assert.Error(t, err)
}

func intPtr(v int) *int { return &v }
