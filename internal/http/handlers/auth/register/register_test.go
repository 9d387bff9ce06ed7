package register

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
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// MockService реализует интерфейс register.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) RegisterUser(ctx context.Context, req models.DummyRegister) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestRegisterHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешная регистрация",
			body: `{"email":"alice@example.com","name":"Alice","password":"secret-password","confirm_password":"secret-password"}`,
			setupMock: func(m *MockService) {
				m.On("RegisterUser", mock.Anything, mock.Anything).Return("uid-123", nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"uid":"uid-123"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{"email":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name:           "невалидный email",
			body:           `{"email":"not-an-email","name":"Alice","password":"secret-password","confirm_password":"secret-password"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `must be a valid email address`,
		},
		{
			name:           "слишком короткий пароль",
			body:           `{"email":"alice@example.com","name":"Alice","password":"short","confirm_password":"short"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `is too short`,
		},
		{
			name: "пароли не совпадают",
			body: `{"email":"alice@example.com","name":"Alice","password":"secret-password","confirm_password":"other-password"}`,
			setupMock: func(m *MockService) {
				m.On("RegisterUser", mock.Anything, mock.Anything).
					Return("", authservice.ErrPasswordMismatch)
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `passwords do not match`,
		},
		{
			name: "email уже занят",
			body: `{"email":"alice@example.com","name":"Alice","password":"secret-password","confirm_password":"secret-password"}`,
			setupMock: func(m *MockService) {
				m.On("RegisterUser", mock.Anything, mock.Anything).
					Return("", repository.ErrEmailTaken)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `email already taken`,
		},
		{
			name: "ошибка сервиса",
			body: `{"email":"alice@example.com","name":"Alice","password":"secret-password","confirm_password":"secret-password"}`,
			setupMock: func(m *MockService) {
				m.On("RegisterUser", mock.Anything, mock.Anything).
					Return("", errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not register user`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
