// Package services содержит бизнес-логику жизненного цикла подписки:
// создание с авторизацией платёжного метода, изменение, отмену
// и применение платёжных событий провайдера.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/account-service/internal/lib/sl"
	"github.com/magabrotheeeer/account-service/internal/models"
	"github.com/magabrotheeeer/account-service/internal/paymentprovider"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// Платёжные события провайдера, которые принимает вебхук.
const (
	PaymentEventSucceeded = "payment_succeeded"
	PaymentEventFailed    = "payment_failed"
)

// ErrInvalidState — операция недопустима для текущего статуса подписки
// либо событие неизвестно.
var ErrInvalidState = errors.New("invalid subscription state")

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// CreateSubscription вставляет новую подписку и возвращает её.
	CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	// FindSubscription возвращает подписку по ID.
	FindSubscription(ctx context.Context, id string) (*models.Subscription, error)
	// FindLiveSubscriptionByUser возвращает подписку пользователя в статусе pending или active.
	FindLiveSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error)
	// ListSubscriptions возвращает список всех подписок с пагинацией.
	ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.Subscription, error)
	// ListSubscriptionsByUser возвращает список подписок пользователя с пагинацией.
	ListSubscriptionsByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error)
	// UpdateSubscription записывает новое состояние с оптимистической проверкой версии.
	UpdateSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	// GetPlan возвращает тарифный план по ID.
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
}

// PaymentAuthorizer описывает авторизацию платёжного метода у провайдера.
type PaymentAuthorizer interface {
	// Authorize проверяет платёжный метод применительно к тарифному плану.
	Authorize(ctx context.Context, paymentMethodID, planID string) (*paymentprovider.Authorization, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// SubscriptionService реализует бизнес-логику работы с подписками, включая кеширование.
type SubscriptionService struct {
	repo     SubscriptionRepository
	payments PaymentAuthorizer
	cache    Cache
	log      *slog.Logger
	now      func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, payments PaymentAuthorizer, cache Cache, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		payments: payments,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *SubscriptionService) WithClock(now func() time.Time) *SubscriptionService {
	s.now = now
	return s
}

func cacheKey(id string) string {
	return fmt.Sprintf("subscription:%s", id)
}

// Create создает подписку пользователя на тарифный план.
//
// Платёжный метод авторизуется у провайдера до записи в хранилище:
// при отказе или недоступности провайдера ничего не сохраняется.
// Немедленное подтверждение сразу даёт статус active, отложенное — pending.
// Вторая живая подписка одного пользователя невозможна.
func (s *SubscriptionService) Create(ctx context.Context, userUID string, req models.DummyCreateSubscription) (*models.Subscription, error) {
	const op = "services.CreateSubscription"

	if _, err := s.repo.GetPlan(ctx, req.PlanID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.repo.FindLiveSubscriptionByUser(ctx, userUID)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	auth, err := s.payments.Authorize(ctx, req.PaymentMethodID, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := models.SubscriptionStatusPending
	if auth.Status == paymentprovider.AuthorizationStatusSucceeded {
		status = models.SubscriptionStatusActive
	}

	sub := models.Subscription{
		ID:              uuid.New().String(),
		UserUID:         userUID,
		PlanID:          req.PlanID,
		PaymentMethodID: req.PaymentMethodID,
		Status:          status,
		CreatedAt:       s.now().UTC(),
	}

	created, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("created new subscription",
		slog.String("id", created.ID), slog.String("status", created.Status))

	if err := s.cache.Set(cacheKey(created.ID), created, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(created.ID)), sl.Err(err))
	}

	return created, nil
}

// Read возвращает подписку по ID, используя кеш или репозиторий.
func (s *SubscriptionService) Read(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "services.ReadSubscription"

	var cached models.Subscription
	found, err := s.cache.Get(cacheKey(id), &cached)
	if err != nil {
		s.log.Warn("cache lookup failed", slog.String("key", cacheKey(id)), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	result, err := s.repo.FindSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(cacheKey(id), result, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(id)), sl.Err(err))
	}
	return result, nil
}

// List возвращает подписки: администратору — все, остальным — только свои.
func (s *SubscriptionService) List(ctx context.Context, userUID, role string, limit, offset int) ([]*models.Subscription, error) {
	const op = "services.ListSubscriptions"

	var (
		result []*models.Subscription
		err    error
	)
	if role == models.RoleAdmin {
		result, err = s.repo.ListSubscriptions(ctx, limit, offset)
	} else {
		result, err = s.repo.ListSubscriptionsByUser(ctx, userUID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Update изменяет тарифный план и/или платёжный метод подписки.
//
// Отменённая подписка не изменяется. Смена плана или платёжного метода
// заново авторизуется у провайдера до записи; подтверждение возвращает
// подписку из past_due в active. Конкурентное изменение той же записи
// завершается ErrConflict, запись остаётся без изменений.
func (s *SubscriptionService) Update(ctx context.Context, id string, req models.DummyUpdateSubscription) (*models.Subscription, error) {
	const op = "services.UpdateSubscription"

	sub, err := s.repo.FindSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if sub.Status == models.SubscriptionStatusCanceled {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidState)
	}

	planID := sub.PlanID
	if req.PlanID != "" {
		if _, err := s.repo.GetPlan(ctx, req.PlanID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		planID = req.PlanID
	}
	paymentMethodID := sub.PaymentMethodID
	if req.PaymentMethodID != "" {
		paymentMethodID = req.PaymentMethodID
	}

	status := sub.Status
	if planID != sub.PlanID || paymentMethodID != sub.PaymentMethodID {
		auth, err := s.payments.Authorize(ctx, paymentMethodID, planID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// Подтверждённый платёж возвращает должника в active.
		if sub.Status == models.SubscriptionStatusPastDue &&
			auth.Status == paymentprovider.AuthorizationStatusSucceeded {
			status = models.SubscriptionStatusActive
		}
	}

	if status != sub.Status && !models.CanTransitSubscriptionStatus(sub.Status, status) {
		return nil, fmt.Errorf("%s: %s -> %s: %w", op, sub.Status, status, ErrInvalidState)
	}

	sub.PlanID = planID
	sub.PaymentMethodID = paymentMethodID
	sub.Status = status
	sub.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("updated subscription",
		slog.String("id", updated.ID), slog.String("status", updated.Status))

	if err := s.cache.Set(cacheKey(updated.ID), updated, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(updated.ID)), sl.Err(err))
	}
	return updated, nil
}

// Cancel переводит подписку в терминальный статус canceled.
// Повторная отмена уже отменённой подписки не является ошибкой.
func (s *SubscriptionService) Cancel(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "services.CancelSubscription"

	sub, err := s.repo.FindSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if sub.Status == models.SubscriptionStatusCanceled {
		return sub, nil
	}

	sub.Status = models.SubscriptionStatusCanceled
	sub.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("canceled subscription", slog.String("id", updated.ID))

	if err := s.cache.Set(cacheKey(updated.ID), updated, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(updated.ID)), sl.Err(err))
	}
	return updated, nil
}

// ApplyPaymentEvent применяет платёжное событие провайдера к подписке.
//
// payment_succeeded: pending -> active, past_due -> active,
// повторный успешный платёж по active подписке — no-op.
// payment_failed: active -> past_due, pending -> canceled, past_due -> canceled.
// Событие для отменённой подписки отклоняется как недопустимый переход.
func (s *SubscriptionService) ApplyPaymentEvent(ctx context.Context, id, event string) (*models.Subscription, error) {
	const op = "services.ApplyPaymentEvent"

	sub, err := s.repo.FindSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var target string
	switch event {
	case PaymentEventSucceeded:
		target = models.SubscriptionStatusActive
	case PaymentEventFailed:
		switch sub.Status {
		case models.SubscriptionStatusActive:
			target = models.SubscriptionStatusPastDue
		default:
			target = models.SubscriptionStatusCanceled
		}
	default:
		return nil, fmt.Errorf("%s: unknown event %q: %w", op, event, ErrInvalidState)
	}

	if !models.CanTransitSubscriptionStatus(sub.Status, target) {
		return nil, fmt.Errorf("%s: %s -> %s: %w", op, sub.Status, target, ErrInvalidState)
	}

	if sub.Status == target {
		return sub, nil
	}

	sub.Status = target
	sub.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("applied payment event",
		slog.String("id", updated.ID), slog.String("event", event), slog.String("status", updated.Status))

	if err := s.cache.Set(cacheKey(updated.ID), updated, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(updated.ID)), sl.Err(err))
	}
	return updated, nil
}
