package featurecheck

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

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) HasFeatureByUID(ctx context.Context, userUID, featureName string) (bool, error) {
	args := m.Called(ctx, userUID, featureName)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCheckHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		feature        string
		userUID        string
		mockHas        bool
		setupMock      bool
		wantStatusCode int
		wantHas        bool
	}{
		{
			name:           "feature available",
			feature:        "advanced_reports",
			userUID:        "uid-123",
			setupMock:      true,
			mockHas:        true,
			wantStatusCode: http.StatusOK,
			wantHas:        true,
		},
		{
			name:           "feature not available",
			feature:        "advanced_reports",
			userUID:        "uid-123",
			setupMock:      true,
			mockHas:        false,
			wantStatusCode: http.StatusOK,
			wantHas:        false,
		},
		{
			name:           "missing identity",
			feature:        "advanced_reports",
			userUID:        "",
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(ServiceMock)
			if tt.setupMock {
				serviceMock.On("HasFeatureByUID", mock.Anything, tt.userUID, tt.feature).
					Return(tt.mockHas, nil).Once()
			}
			handler := New(newNoopLogger(), serviceMock)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/features/"+tt.feature, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("name", tt.feature)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
			if tt.userUID != "" {
				ctx = context.WithValue(ctx, middlewarectx.UserUID, tt.userUID)
			}
			req = req.WithContext(ctx)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			if tt.wantStatusCode != http.StatusOK {
				return
			}

			var got map[string]any
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			data, ok := got["data"].(map[string]any)
			assert.True(t, ok)
			assert.Equal(t, tt.feature, data["feature"])
			assert.Equal(t, tt.wantHas, data["has_feature"])
			serviceMock.AssertExpectations(t)
		})
	}
}
