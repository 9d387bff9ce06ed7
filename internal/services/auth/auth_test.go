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

	"github.com/magabrotheeeer/account-service/internal/lib/jwt"
	"github.com/magabrotheeeer/account-service/internal/lib/password"
	"github.com/magabrotheeeer/account-service/internal/models"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}
func (m *RepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) GetUserWithSecrets(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestMaker(t *testing.T, now func() time.Time) *jwt.MakerImpl {
	t.Helper()
	return jwt.NewMaker("test-secret", time.Hour, newNoopLogger()).WithClock(now)
}

func TestAuthService_RegisterUser(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 500000000, time.UTC)

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		req        models.DummyRegister
		wantUID    string
		wantErr    error
	}{
		{
			name: "success register normalizes email and truncates watermark",
			setupMocks: func(r *RepoMock) {
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.Email == "alice@example.com" &&
						u.Role == models.RoleMember &&
						u.PasswordChangedAt.Equal(fixed.Truncate(time.Second)) &&
						password.Verify(u.PasswordHash, "supersecret")
				})).Return("uid-1", nil).Once()
			},
			req: models.DummyRegister{
				Email:           "  Alice@Example.COM ",
				Name:            "Alice",
				Password:        "supersecret",
				ConfirmPassword: "supersecret",
			},
			wantUID: "uid-1",
		},
		{
			name:       "password mismatch",
			setupMocks: func(_ *RepoMock) {},
			req: models.DummyRegister{
				Email:           "alice@example.com",
				Name:            "Alice",
				Password:        "supersecret",
				ConfirmPassword: "different",
			},
			wantErr: ErrPasswordMismatch,
		},
		{
			name: "duplicate email",
			setupMocks: func(r *RepoMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).
					Return("", repository.ErrEmailTaken).Once()
			},
			req: models.DummyRegister{
				Email:           "alice@example.com",
				Name:            "Alice",
				Password:        "supersecret",
				ConfirmPassword: "supersecret",
			},
			wantErr: repository.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			svc := NewAuthService(repo, newTestMaker(t, func() time.Time { return fixed }), newNoopLogger()).
				WithClock(func() time.Time { return fixed })

			tt.setupMocks(repo)

			uid, err := svc.RegisterUser(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUID, uid)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_LoginUser(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hash, err := password.GetHash("supersecret")
	require.NoError(t, err)

	user := &models.User{
		UID:          "uid-1",
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: hash,
		Role:         models.RoleMember,
		IsActive:     true,
	}

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		req        models.DummyLogin
		wantErr    error
	}{
		{
			name: "success login",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil).Once()
			},
			req: models.DummyLogin{Email: "alice@example.com", Password: "supersecret"},
		},
		{
			name: "unknown email and wrong password are indistinguishable",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "ghost@example.com").
					Return(nil, repository.ErrNotFound).Once()
			},
			req:     models.DummyLogin{Email: "ghost@example.com", Password: "supersecret"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name: "wrong password",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil).Once()
			},
			req:     models.DummyLogin{Email: "alice@example.com", Password: "wrong"},
			wantErr: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			maker := newTestMaker(t, func() time.Time { return fixed })
			svc := NewAuthService(repo, maker, newNoopLogger()).
				WithClock(func() time.Time { return fixed })

			tt.setupMocks(repo)

			token, sanitized, err := svc.LoginUser(context.Background(), tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				assert.Nil(t, sanitized)
			} else {
				require.NoError(t, err)
				assert.Equal(t, user.UID, sanitized.UID)

				claims, err := maker.ParseToken(token, time.Time{})
				require.NoError(t, err)
				assert.Equal(t, user.UID, claims.UserUID)
				assert.Equal(t, user.Role, claims.Role)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{
		UID:               "uid-1",
		Email:             "alice@example.com",
		Role:              models.RoleMember,
		IsActive:          true,
		PasswordChangedAt: fixed.Add(-time.Hour),
	}

	t.Run("valid token returns owner", func(t *testing.T) {
		repo := new(RepoMock)
		maker := newTestMaker(t, func() time.Time { return fixed })
		svc := NewAuthService(repo, maker, newNoopLogger())

		token, err := maker.GenerateToken(user.UID, user.Role)
		require.NoError(t, err)

		repo.On("GetUserWithSecrets", mock.Anything, "uid-1").Return(user, nil).Once()

		got, err := svc.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, user.UID, got.UID)
	})

	t.Run("token issued before password change is rejected", func(t *testing.T) {
		repo := new(RepoMock)
		maker := newTestMaker(t, func() time.Time { return fixed })
		svc := NewAuthService(repo, maker, newNoopLogger())

		token, err := maker.GenerateToken(user.UID, user.Role)
		require.NoError(t, err)

		stale := *user
		stale.PasswordChangedAt = fixed.Add(time.Minute)
		repo.On("GetUserWithSecrets", mock.Anything, "uid-1").Return(&stale, nil).Once()

		got, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, got)
	})

	t.Run("deactivated owner invalidates token", func(t *testing.T) {
		repo := new(RepoMock)
		maker := newTestMaker(t, func() time.Time { return fixed })
		svc := NewAuthService(repo, maker, newNoopLogger())

		token, err := maker.GenerateToken(user.UID, user.Role)
		require.NoError(t, err)

		repo.On("GetUserWithSecrets", mock.Anything, "uid-1").
			Return(nil, repository.ErrNotFound).Once()

		got, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, got)
	})

	t.Run("garbage token", func(t *testing.T) {
		repo := new(RepoMock)
		svc := NewAuthService(repo, newTestMaker(t, func() time.Time { return fixed }), newNoopLogger())

		got, err := svc.ValidateToken(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, got)

		repo.AssertNotCalled(t, "GetUserWithSecrets", mock.Anything, mock.Anything)
	})
}
