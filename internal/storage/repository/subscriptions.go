package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/account-service/internal/models"
)

// CreateSubscription вставляет новую запись подписки и возвращает её
// с заполненными служебными полями. Гонка двух создателей для одного
// пользователя гасится частичным уникальным индексом и превращается в ErrConflict.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (id, user_uid, plan_id, payment_method_id, status,
			      version, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
			  RETURNING id, user_uid, plan_id, payment_method_id, status, version,
			      created_at, updated_at`
	result := &models.Subscription{}
	row := s.DB.QueryRowContext(ctx, query,
		sub.ID, sub.UserUID, sub.PlanID, sub.PaymentMethodID, sub.Status, sub.CreatedAt)
	if err := row.Scan(&result.ID, &result.UserUID, &result.PlanID, &result.PaymentMethodID,
		&result.Status, &result.Version, &result.CreatedAt, &result.UpdatedAt); err != nil {
		if terr := translateUniqueViolation(err); terr != err {
			return nil, fmt.Errorf("%s: %w", op, terr)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindSubscription возвращает подписку по её ID.
func (s *Storage) FindSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.FindSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, payment_method_id, status, version,
			      created_at, updated_at
			  FROM subscriptions
			  WHERE id = $1`
	result := &models.Subscription{}
	row := s.DB.QueryRowContext(ctx, query, id)
	if err := row.Scan(&result.ID, &result.UserUID, &result.PlanID, &result.PaymentMethodID,
		&result.Status, &result.Version, &result.CreatedAt, &result.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindLiveSubscriptionByUser возвращает подписку пользователя в статусе
// pending или active. Таких записей не может быть больше одной.
func (s *Storage) FindLiveSubscriptionByUser(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.FindLiveSubscriptionByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, payment_method_id, status, version,
			      created_at, updated_at
			  FROM subscriptions
			  WHERE user_uid = $1 AND status IN ('pending', 'active')`
	result := &models.Subscription{}
	row := s.DB.QueryRowContext(ctx, query, userUID)
	if err := row.Scan(&result.ID, &result.UserUID, &result.PlanID, &result.PaymentMethodID,
		&result.Status, &result.Version, &result.CreatedAt, &result.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListSubscriptions возвращает список всех подписок с пагинацией.
func (s *Storage) ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, payment_method_id, status, version,
			      created_at, updated_at
			  FROM subscriptions
			  ORDER BY created_at
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.ID, &item.UserUID, &item.PlanID, &item.PaymentMethodID,
			&item.Status, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListSubscriptionsByUser возвращает список подписок пользователя с пагинацией.
func (s *Storage) ListSubscriptionsByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, payment_method_id, status, version,
			      created_at, updated_at
			  FROM subscriptions
			  WHERE user_uid = $1
			  ORDER BY created_at
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.ID, &item.UserUID, &item.PlanID, &item.PaymentMethodID,
			&item.Status, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateSubscription записывает новое состояние подписки с оптимистической
// проверкой версии. Если версию успел поднять конкурентный писатель,
// возвращается ErrConflict и запись остаётся без изменений.
func (s *Storage) UpdateSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	const op = "storage.UpdateSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET plan_id = $1, payment_method_id = $2, status = $3,
			      version = version + 1, updated_at = $4
			  WHERE id = $5 AND version = $6
			  RETURNING id, user_uid, plan_id, payment_method_id, status, version,
			      created_at, updated_at`
	result := &models.Subscription{}
	row := s.DB.QueryRowContext(ctx, query,
		sub.PlanID, sub.PaymentMethodID, sub.Status, sub.UpdatedAt, sub.ID, sub.Version)
	if err := row.Scan(&result.ID, &result.UserUID, &result.PlanID, &result.PaymentMethodID,
		&result.Status, &result.Version, &result.CreatedAt, &result.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			checkQuery := `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE id = $1)`
			if err := s.DB.QueryRowContext(ctx, checkQuery, sub.ID).Scan(&exists); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			if exists {
				return nil, fmt.Errorf("%s: %w", op, ErrConflict)
			}
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		if terr := translateUniqueViolation(err); terr != err {
			return nil, fmt.Errorf("%s: %w", op, terr)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
