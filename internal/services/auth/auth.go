// Package services содержит бизнес-логику регистрации, входа и проверки сессионных токенов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/account-service/internal/lib/jwt"
	"github.com/magabrotheeeer/account-service/internal/lib/password"
	"github.com/magabrotheeeer/account-service/internal/lib/sl"
	"github.com/magabrotheeeer/account-service/internal/models"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// Ошибки бизнес-логики аутентификации.
var (
	// ErrInvalidCredentials — неверная пара email/пароль либо недействительный токен.
	// Одна ошибка на обе причины: ответ не должен раскрывать, существует ли учётная запись.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordMismatch — пароль и его подтверждение не совпадают.
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// UserRepository определяет методы для работы с пользователями в хранилище.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает активного пользователя по email вместе с секретными полями.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserWithSecrets возвращает активного пользователя по UID вместе с секретными полями.
	GetUserWithSecrets(ctx context.Context, userUID string) (*models.User, error)
}

// AuthService реализует регистрацию, вход и проверку сессионных токенов.
type AuthService struct {
	repo     UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
	now      func() time.Time
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(repo UserRepository, jwtMaker jwt.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		repo:     repo,
		jwtMaker: jwtMaker,
		log:      log,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// RegisterUser создает нового пользователя с ролью member и возвращает его UID.
func (s *AuthService) RegisterUser(ctx context.Context, req models.DummyRegister) (string, error) {
	const op = "services.RegisterUser"

	if req.Password != req.ConfirmPassword {
		return "", fmt.Errorf("%s: %w", op, ErrPasswordMismatch)
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// Отметка смены пароля усекается до секунды, как и iat в JWT:
	// токен, выпущенный в ту же секунду, остаётся действительным.
	user := models.User{
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		Name:              req.Name,
		PasswordHash:      hash,
		PasswordChangedAt: s.now().UTC().Truncate(time.Second),
		Role:              models.RoleMember,
	}

	uid, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("registered new user", slog.String("uid", uid))
	return uid, nil
}

// LoginUser проверяет учётные данные и выпускает сессионный токен.
// Несуществующий email и неверный пароль неразличимы для вызывающего.
func (s *AuthService) LoginUser(ctx context.Context, req models.DummyLogin) (string, *models.SanitizedUser, error) {
	const op = "services.LoginUser"

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	if !password.Verify(user.PasswordHash, req.Password) {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.jwtMaker.GenerateToken(user.UID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user logged in", slog.String("uid", user.UID))
	return token, user.Sanitize(), nil
}

// ValidateToken проверяет сессионный токен и возвращает его владельца.
//
// Токен недействителен, если подпись неверна, срок истёк, пользователь
// удалён либо токен выпущен до последней смены пароля (watermark).
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*models.User, error) {
	const op = "services.ValidateToken"

	// Первый проход без watermark: достаём uid, чтобы узнать отметку смены пароля.
	claims, err := s.jwtMaker.ParseToken(tokenStr, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.repo.GetUserWithSecrets(ctx, claims.UserUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug("token owner is gone or deactivated", slog.String("uid", claims.UserUID))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Повторный проход с watermark: токены старше последней смены пароля отзываются.
	if _, err := s.jwtMaker.ParseToken(tokenStr, user.PasswordChangedAt); err != nil {
		s.log.Debug("token superseded by password change", slog.String("uid", user.UID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return user, nil
}
