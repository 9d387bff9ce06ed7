// Package services содержит бизнес-логику управления учётной записью:
// чтение и обновление профиля, смену пароля и мягкое удаление.
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
	"github.com/magabrotheeeer/account-service/internal/models"
)

// Ошибки бизнес-логики учётной записи.
var (
	// ErrInvalidCredentials — текущий пароль не подходит.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordMismatch — новый пароль и его подтверждение не совпадают.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrForbiddenField — запрос на обновление профиля содержит защищённое поле.
	ErrForbiddenField = errors.New("field cannot be updated via profile")
)

// forbiddenProfileFields — поля, попытка обновить которые через профиль
// отклоняется целиком: пароль меняется только через отдельную операцию.
var forbiddenProfileFields = map[string]bool{
	"password":            true,
	"confirm_password":    true,
	"current_password":    true,
	"password_hash":       true,
	"password_changed_at": true,
	"role":                true,
}

// UserRepository определяет методы для работы с пользователями в хранилище.
type UserRepository interface {
	// GetUser возвращает активного пользователя по UID без секретных полей.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// GetUserWithSecrets возвращает активного пользователя по UID вместе с секретными полями.
	GetUserWithSecrets(ctx context.Context, userUID string) (*models.User, error)
	// ListUsers возвращает список активных пользователей с пагинацией.
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	// UpdateUserProfile частично обновляет профиль и возвращает обновлённую запись.
	UpdateUserProfile(ctx context.Context, userUID string, params models.UpdateUserParams) (*models.User, error)
	// UpdatePassword атомарно записывает новый хэш пароля и отметку его смены.
	UpdatePassword(ctx context.Context, userUID, passwordHash string, changedAt time.Time) error
	// DeactivateUser мягко удаляет пользователя.
	DeactivateUser(ctx context.Context, userUID string) error
}

// AccountService реализует бизнес-логику управления учётной записью.
type AccountService struct {
	repo     UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
	now      func() time.Time
}

// NewAccountService создает новый экземпляр AccountService.
func NewAccountService(repo UserRepository, jwtMaker jwt.Maker, log *slog.Logger) *AccountService {
	return &AccountService{
		repo:     repo,
		jwtMaker: jwtMaker,
		log:      log,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// GetProfile возвращает профиль пользователя без секретных полей.
func (s *AccountService) GetProfile(ctx context.Context, userUID string) (*models.SanitizedUser, error) {
	const op = "services.GetProfile"

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user.Sanitize(), nil
}

// ListUsers возвращает список активных пользователей без секретных полей.
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]*models.SanitizedUser, error) {
	const op = "services.ListUsers"

	users, err := s.repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*models.SanitizedUser, 0, len(users))
	for _, u := range users {
		result = append(result, u.Sanitize())
	}
	return result, nil
}

// UpdateProfile частично обновляет профиль пользователя.
//
// Запрос приходит произвольным JSON-объектом: защищённые поля отклоняют
// запрос целиком (ErrForbiddenField), неизвестные молча отбрасываются,
// применяются только name и email.
func (s *AccountService) UpdateProfile(ctx context.Context, userUID string, fields map[string]any) (*models.SanitizedUser, error) {
	const op = "services.UpdateProfile"

	var params models.UpdateUserParams
	for key, value := range fields {
		if forbiddenProfileFields[key] {
			return nil, fmt.Errorf("%s: %q: %w", op, key, ErrForbiddenField)
		}
		str, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "name":
			params.Name = &str
		case "email":
			normalized := strings.ToLower(strings.TrimSpace(str))
			params.Email = &normalized
		}
	}

	user, err := s.repo.UpdateUserProfile(ctx, userUID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("updated user profile", slog.String("uid", userUID))
	return user.Sanitize(), nil
}

// ChangePassword меняет пароль пользователя и выпускает новый сессионный токен.
//
// Хэш и отметка смены записываются одним оператором, после чего все токены,
// выпущенные до отметки, становятся недействительными. Новый токен выпускается
// уже после отметки и остаётся единственной живой сессией.
func (s *AccountService) ChangePassword(ctx context.Context, userUID string, req models.DummyChangePassword) (string, error) {
	const op = "services.ChangePassword"

	if req.Password != req.ConfirmPassword {
		return "", fmt.Errorf("%s: %w", op, ErrPasswordMismatch)
	}

	user, err := s.repo.GetUserWithSecrets(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !password.Verify(user.PasswordHash, req.CurrentPassword) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	changedAt := s.now().UTC().Truncate(time.Second)
	if err := s.repo.UpdatePassword(ctx, userUID, hash, changedAt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.jwtMaker.GenerateToken(user.UID, user.Role)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user changed password", slog.String("uid", userUID))
	return token, nil
}

// DeactivateAccount мягко удаляет учётную запись. Операция идемпотентна.
func (s *AccountService) DeactivateAccount(ctx context.Context, userUID string) error {
	const op = "services.DeactivateAccount"

	if err := s.repo.DeactivateUser(ctx, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("deactivated user account", slog.String("uid", userUID))
	return nil
}
