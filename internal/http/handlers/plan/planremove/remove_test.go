package planremove

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	services "github.com/magabrotheeeer/subscription-entitlements/internal/services/plan"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Remove(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRemoveHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		mockErr        error
		setupMock      bool
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "unused plan is removed",
			id:             "5",
			setupMock:      true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "plan with ledger records",
			id:             "1",
			setupMock:      true,
			mockErr:        services.ErrPlanInUse,
			wantStatusCode: http.StatusConflict,
			wantError:      "plan has subscription records and cannot be deleted",
		},
		{
			name:           "unknown plan",
			id:             "404",
			setupMock:      true,
			mockErr:        services.ErrPlanNotFound,
			wantStatusCode: http.StatusNotFound,
			wantError:      "plan not found",
		},
		{
			name:           "bad id in url",
			id:             "abc",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "failed to decode id from url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(ServiceMock)
			if tt.setupMock {
				serviceMock.On("Remove", mock.Anything, mock.AnythingOfType("int64")).
					Return(tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), serviceMock)

			req := httptest.NewRequest(http.MethodDelete, "/api/v1/plans/"+tt.id, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
			req = req.WithContext(ctx)
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
		})
	}
}
