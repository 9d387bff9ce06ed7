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

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
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
func (m *RepoMock) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *RepoMock) UpdateUserProfile(ctx context.Context, userUID string, params models.UpdateUserParams) (*models.User, error) {
	args := m.Called(ctx, userUID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) UpdatePassword(ctx context.Context, userUID, passwordHash string, changedAt time.Time) error {
	return m.Called(ctx, userUID, passwordHash, changedAt).Error(0)
}
func (m *RepoMock) DeactivateUser(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 300000000, time.UTC)

func newTestService(repo *RepoMock) (*AccountService, *jwt.MakerImpl) {
	maker := jwt.NewMaker("test-secret", time.Hour, newNoopLogger()).
		WithClock(func() time.Time { return fixedNow })
	svc := NewAccountService(repo, maker, newNoopLogger()).
		WithClock(func() time.Time { return fixedNow })
	return svc, maker
}

func TestAccountService_GetProfile(t *testing.T) {
	user := &models.User{
		UID:          "uid-1",
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: "should-not-leak",
		Role:         models.RoleMember,
	}

	t.Run("profile is sanitized", func(t *testing.T) {
		repo := new(RepoMock)
		svc, _ := newTestService(repo)

		repo.On("GetUser", mock.Anything, "uid-1").Return(user, nil).Once()

		got, err := svc.GetProfile(context.Background(), "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, models.RoleMember, got.Role)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := new(RepoMock)
		svc, _ := newTestService(repo)

		repo.On("GetUser", mock.Anything, "missing").Return(nil, repository.ErrNotFound).Once()

		got, err := svc.GetProfile(context.Background(), "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, got)
	})
}

func TestAccountService_ListUsers(t *testing.T) {
	repo := new(RepoMock)
	svc, _ := newTestService(repo)

	users := []*models.User{
		{UID: "uid-1", Email: "alice@example.com", Role: models.RoleMember},
		{UID: "uid-2", Email: "bob@example.com", Role: models.RoleAdmin},
	}
	repo.On("ListUsers", mock.Anything, 10, 0).Return(users, nil).Once()

	got, err := svc.ListUsers(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "uid-1", got[0].UID)
	assert.Equal(t, "uid-2", got[1].UID)
}

func TestAccountService_UpdateProfile(t *testing.T) {
	updated := &models.User{
		UID:   "uid-1",
		Email: "new@example.com",
		Name:  "New Name",
		Role:  models.RoleMember,
	}

	tests := []struct {
		name       string
		fields     map[string]any
		setupMocks func(r *RepoMock)
		wantErr    error
	}{
		{
			name:   "updates name and normalizes email",
			fields: map[string]any{"name": "New Name", "email": " New@Example.COM "},
			setupMocks: func(r *RepoMock) {
				r.On("UpdateUserProfile", mock.Anything, "uid-1", mock.MatchedBy(func(p models.UpdateUserParams) bool {
					return p.Name != nil && *p.Name == "New Name" &&
						p.Email != nil && *p.Email == "new@example.com"
				})).Return(updated, nil).Once()
			},
		},
		{
			name:   "unknown fields are dropped",
			fields: map[string]any{"name": "New Name", "favorite_color": "green"},
			setupMocks: func(r *RepoMock) {
				r.On("UpdateUserProfile", mock.Anything, "uid-1", mock.MatchedBy(func(p models.UpdateUserParams) bool {
					return p.Name != nil && p.Email == nil
				})).Return(updated, nil).Once()
			},
		},
		{
			name:       "password field rejects whole request",
			fields:     map[string]any{"name": "New Name", "password": "sneaky"},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrForbiddenField,
		},
		{
			name:       "password_hash field rejects whole request",
			fields:     map[string]any{"password_hash": "$2a$10$fake"},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrForbiddenField,
		},
		{
			name:       "role field rejects whole request",
			fields:     map[string]any{"role": models.RoleAdmin},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrForbiddenField,
		},
		{
			name:   "duplicate email",
			fields: map[string]any{"email": "taken@example.com"},
			setupMocks: func(r *RepoMock) {
				r.On("UpdateUserProfile", mock.Anything, "uid-1", mock.Anything).
					Return(nil, repository.ErrEmailTaken).Once()
			},
			wantErr: repository.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			svc, _ := newTestService(repo)

			tt.setupMocks(repo)

			got, err := svc.UpdateProfile(context.Background(), "uid-1", tt.fields)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, updated.UID, got.UID)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestAccountService_ChangePassword(t *testing.T) {
	hash, err := password.GetHash("oldpassword")
	require.NoError(t, err)

	user := &models.User{
		UID:               "uid-1",
		Email:             "alice@example.com",
		PasswordHash:      hash,
		PasswordChangedAt: fixedNow.Add(-24 * time.Hour),
		Role:              models.RoleMember,
	}

	req := models.DummyChangePassword{
		CurrentPassword: "oldpassword",
		Password:        "newpassword1",
		ConfirmPassword: "newpassword1",
	}

	t.Run("success issues token valid at new watermark", func(t *testing.T) {
		repo := new(RepoMock)
		svc, maker := newTestService(repo)

		changedAt := fixedNow.Truncate(time.Second)
		repo.On("GetUserWithSecrets", mock.Anything, "uid-1").Return(user, nil).Once()
		repo.On("UpdatePassword", mock.Anything, "uid-1", mock.MatchedBy(func(h string) bool {
			return password.Verify(h, "newpassword1")
		}), changedAt).Return(nil).Once()

		token, err := svc.ChangePassword(context.Background(), "uid-1", req)
		require.NoError(t, err)

		// Новый токен переживает собственный watermark.
		claims, err := maker.ParseToken(token, changedAt)
		require.NoError(t, err)
		assert.Equal(t, "uid-1", claims.UserUID)

		repo.AssertExpectations(t)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		repo := new(RepoMock)
		svc, _ := newTestService(repo)

		bad := req
		bad.ConfirmPassword = "different"

		token, err := svc.ChangePassword(context.Background(), "uid-1", bad)
		assert.ErrorIs(t, err, ErrPasswordMismatch)
		assert.Empty(t, token)

		repo.AssertNotCalled(t, "GetUserWithSecrets", mock.Anything, mock.Anything)
	})

	t.Run("wrong current password", func(t *testing.T) {
		repo := new(RepoMock)
		svc, _ := newTestService(repo)

		bad := req
		bad.CurrentPassword = "wrong"
		repo.On("GetUserWithSecrets", mock.Anything, "uid-1").Return(user, nil).Once()

		token, err := svc.ChangePassword(context.Background(), "uid-1", bad)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, token)

		repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent password change conflicts", func(t *testing.T) {
		repo := new(RepoMock)
		svc, _ := newTestService(repo)

		repo.On("GetUserWithSecrets", mock.Anything, "uid-1").Return(user, nil).Once()
		repo.On("UpdatePassword", mock.Anything, "uid-1", mock.Anything, mock.Anything).
			Return(repository.ErrConflict).Once()

		token, err := svc.ChangePassword(context.Background(), "uid-1", req)
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.Empty(t, token)
	})
}

func TestAccountService_DeactivateAccount(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := new(RepoMock)
		svc, _ := newTestService(repo)

		repo.On("DeactivateUser", mock.Anything, "uid-1").Return(nil).Once()

		err := svc.DeactivateAccount(context.Background(), "uid-1")
		require.NoError(t, err)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := new(RepoMock)
		svc, _ := newTestService(repo)

		repo.On("DeactivateUser", mock.Anything, "missing").Return(repository.ErrNotFound).Once()

		err := svc.DeactivateAccount(context.Background(), "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
