package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/account-service/internal/models"
	authservice "github.com/magabrotheeeer/account-service/internal/services/auth"
)

// MockService реализует интерфейс login.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) LoginUser(ctx context.Context, req models.DummyLogin) (string, *models.SanitizedUser, error) {
	args := m.Called(ctx, req)
	if user, ok := args.Get(1).(*models.SanitizedUser); ok {
		return args.String(0), user, args.Error(2)
	}
	return args.String(0), nil, args.Error(2)
}

func TestLoginHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешный вход",
			body: `{"email":"alice@example.com","password":"secret-password"}`,
			setupMock: func(m *MockService) {
				user := &models.SanitizedUser{
					UID:   "uid-123",
					Email: "alice@example.com",
					Name:  "Alice",
					Role:  models.RoleMember,
				}
				m.On("LoginUser", mock.Anything, mock.Anything).Return("token-abc", user, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"token":"token-abc"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{"email":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name:           "пустой пароль",
			body:           `{"email":"alice@example.com","password":""}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `is a required field`,
		},
		{
			name: "неверные учётные данные",
			body: `{"email":"alice@example.com","password":"wrong-password"}`,
			setupMock: func(m *MockService) {
				m.On("LoginUser", mock.Anything, mock.Anything).
					Return("", nil, authservice.ErrInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `invalid credentials`,
		},
		{
			name: "ошибка сервиса",
			body: `{"email":"alice@example.com","password":"secret-password"}`,
			setupMock: func(m *MockService) {
				m.On("LoginUser", mock.Anything, mock.Anything).
					Return("", nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not login user`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
