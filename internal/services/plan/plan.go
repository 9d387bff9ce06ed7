// Package services содержит бизнес-логику каталога тарифных планов.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/account-service/internal/lib/sl"
	"github.com/magabrotheeeer/account-service/internal/models"
)

// PlanRepository определяет методы для работы с каталогом планов в хранилище.
type PlanRepository interface {
	// ListPlans возвращает каталог тарифных планов.
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	// GetPlan возвращает тарифный план по ID.
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// PlanService отдаёт каталог тарифных планов. Каталог меняется редко,
// поэтому список живёт в кеше заметно дольше остальных сущностей.
type PlanService struct {
	repo  PlanRepository
	cache Cache
	log   *slog.Logger
}

// NewPlanService создает новый экземпляр PlanService.
func NewPlanService(repo PlanRepository, cache Cache, log *slog.Logger) *PlanService {
	return &PlanService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

const plansCacheKey = "plans:all"

// List возвращает каталог тарифных планов, используя кеш или репозиторий.
func (s *PlanService) List(ctx context.Context) ([]*models.Plan, error) {
	const op = "services.ListPlans"

	var cached []*models.Plan
	found, err := s.cache.Get(plansCacheKey, &cached)
	if err != nil {
		s.log.Warn("cache lookup failed", slog.String("key", plansCacheKey), sl.Err(err))
	}
	if found {
		return cached, nil
	}

	result, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(plansCacheKey, result, 12*time.Hour); err != nil {
		s.log.Warn("failed to cache plans", slog.String("key", plansCacheKey), sl.Err(err))
	}
	return result, nil
}

// Get возвращает тарифный план по ID.
func (s *PlanService) Get(ctx context.Context, id string) (*models.Plan, error) {
	const op = "services.GetPlan"

	result, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
