package subscreate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	services "github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Create(ctx context.Context, req models.DummySubscription) (*models.SubscriptionInfo, error) {
	args := m.Called(ctx, req)
	info, _ := args.Get(0).(*models.SubscriptionInfo)
	return info, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCreateHandler_ServeHTTP(t *testing.T) {
	const userUID = "a2a44c32-7a96-4f16-a51e-1a6ad3a3c2e5"
	info := &models.SubscriptionInfo{
		Subscription: models.Subscription{ID: 1, UserUID: userUID, PlanID: 2, Status: models.StatusActive},
		IsActive:     true,
	}

	tests := []struct {
		name           string
		requestBody    any
		mockInfo       *models.SubscriptionInfo
		mockErr        error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "valid create",
			requestBody:    models.DummySubscription{UserUID: userUID, PlanID: 2, EndDate: "2026-12-31"},
			mockInfo:       info,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - useruid is not uuid",
			requestBody:    models.DummySubscription{UserUID: "not-a-uuid", PlanID: 2},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field UserUID can contain only uuid",
		},
		{
			name:           "unknown user",
			requestBody:    models.DummySubscription{UserUID: userUID, PlanID: 2},
			mockErr:        services.ErrUserNotFound,
			wantStatusCode: http.StatusNotFound,
			wantError:      "user not found",
		},
		{
			name:           "unknown plan",
			requestBody:    models.DummySubscription{UserUID: userUID, PlanID: 404},
			mockErr:        services.ErrPlanNotFound,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid plan id",
		},
		{
			name:           "inactive plan",
			requestBody:    models.DummySubscription{UserUID: userUID, PlanID: 3},
			mockErr:        services.ErrPlanInactive,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "cannot subscribe to inactive plan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(ServiceMock)
			if tt.mockInfo != nil || tt.mockErr != nil {
				serviceMock.On("Create", mock.Anything, tt.requestBody.(models.DummySubscription)).
					Return(tt.mockInfo, tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), serviceMock)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))

			if tt.wantError != "" {
				assert.Equal(t, "Error", got["status"])
				assert.Equal(t, tt.wantError, got["error"])
				return
			}
			assert.Equal(t, "OK", got["status"])
			serviceMock.AssertExpectations(t)
		})
	}
}
