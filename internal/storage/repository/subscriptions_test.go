package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/account-service/internal/models"
)

var subscriptionColumns = []string{
	"id", "user_uid", "plan_id", "payment_method_id", "status", "version",
	"created_at", "updated_at",
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	sub := models.Subscription{
		ID:              "sub-1",
		UserUID:         "uid-123",
		PlanID:          "pro-monthly",
		PaymentMethodID: "pm-1",
		Status:          models.SubscriptionStatusActive,
		CreatedAt:       now,
	}

	t.Run("success", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		rows := sqlmock.NewRows(subscriptionColumns).
			AddRow(sub.ID, sub.UserUID, sub.PlanID, sub.PaymentMethodID, sub.Status, 1, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO subscriptions`)).
			WithArgs(sub.ID, sub.UserUID, sub.PlanID, sub.PaymentMethodID, sub.Status, sub.CreatedAt).
			WillReturnRows(rows)

		got, err := storage.CreateSubscription(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second live subscription maps to ErrConflict", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO subscriptions`)).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "subscriptions_one_live_per_user_idx",
			})

		_, err := storage.CreateSubscription(ctx, sub)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindSubscription(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		rows := sqlmock.NewRows(subscriptionColumns).
			AddRow("sub-1", "uid-123", "pro-monthly", "pm-1", models.SubscriptionStatusActive, 1, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_uid, plan_id, payment_method_id`)).
			WithArgs("sub-1").
			WillReturnRows(rows)

		got, err := storage.FindSubscription(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, "uid-123", got.UserUID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_uid, plan_id, payment_method_id`)).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(subscriptionColumns))

		_, err := storage.FindSubscription(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateSubscription(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	sub := &models.Subscription{
		ID:              "sub-1",
		UserUID:         "uid-123",
		PlanID:          "pro-monthly",
		PaymentMethodID: "pm-1",
		Status:          models.SubscriptionStatusPastDue,
		Version:         1,
		UpdatedAt:       now,
	}

	t.Run("success bumps version", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		rows := sqlmock.NewRows(subscriptionColumns).
			AddRow(sub.ID, sub.UserUID, sub.PlanID, sub.PaymentMethodID, sub.Status, 2, now, now)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE subscriptions`)).
			WithArgs(sub.PlanID, sub.PaymentMethodID, sub.Status, sub.UpdatedAt, sub.ID, sub.Version).
			WillReturnRows(rows)

		got, err := storage.UpdateSubscription(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version maps to ErrConflict", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE subscriptions`)).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
			WithArgs(sub.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := storage.UpdateSubscription(ctx, sub)
		assert.ErrorIs(t, err, ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing subscription maps to ErrNotFound", func(t *testing.T) {
		storage, mock := newMockStorage(t)

		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE subscriptions`)).
			WillReturnRows(sqlmock.NewRows(subscriptionColumns))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
			WithArgs(sub.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := storage.UpdateSubscription(ctx, sub)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListSubscriptionsByUser(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	storage, mock := newMockStorage(t)

	rows := sqlmock.NewRows(subscriptionColumns).
		AddRow("sub-1", "uid-123", "pro-monthly", "pm-1", models.SubscriptionStatusActive, 1, now, now).
		AddRow("sub-2", "uid-123", "basic-monthly", "pm-2", models.SubscriptionStatusCanceled, 3, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_uid, plan_id, payment_method_id`)).
		WithArgs("uid-123", 10, 0).
		WillReturnRows(rows)

	subs, err := storage.ListSubscriptionsByUser(ctx, "uid-123", 10, 0)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "sub-2", subs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
