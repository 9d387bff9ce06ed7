package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/account-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/account-service/internal/models"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// MockService реализует интерфейс read.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Read(ctx context.Context, id string) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ownSub := &models.Subscription{
		ID:      "sub-1",
		UserUID: "uid-123",
		PlanID:  "pro-monthly",
		Status:  models.SubscriptionStatusActive,
	}
	foreignSub := &models.Subscription{
		ID:      "sub-2",
		UserUID: "uid-other",
		PlanID:  "pro-monthly",
		Status:  models.SubscriptionStatusActive,
	}

	tests := []struct {
		name           string
		subID          string
		userUID        string
		role           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "владелец читает свою подписку",
			subID:   "sub-1",
			userUID: "uid-123",
			role:    models.RoleMember,
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "sub-1").Return(ownSub, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":"sub-1"`,
		},
		{
			name:    "чужая подписка неотличима от несуществующей",
			subID:   "sub-2",
			userUID: "uid-123",
			role:    models.RoleMember,
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "sub-2").Return(foreignSub, nil)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `subscription not found`,
		},
		{
			name:    "администратор видит любую подписку",
			subID:   "sub-2",
			userUID: "uid-admin",
			role:    models.RoleAdmin,
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "sub-2").Return(foreignSub, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":"sub-2"`,
		},
		{
			name:    "подписка не найдена",
			subID:   "missing",
			userUID: "uid-123",
			role:    models.RoleMember,
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `subscription not found`,
		},
		{
			name:           "нет uid в контексте",
			subID:          "sub-1",
			userUID:        "",
			role:           "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `unauthorized`,
		},
		{
			name:    "ошибка сервиса",
			subID:   "sub-1",
			userUID: "uid-123",
			role:    models.RoleMember,
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "sub-1").Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not read subscription`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, "/subscriptions/"+tt.subID, nil)

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.subID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			if tt.userUID != "" {
				ctx = context.WithValue(ctx, middlewarectx.UserUID, tt.userUID)
				ctx = context.WithValue(ctx, middlewarectx.Role, tt.role)
			}
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
