// Package models содержит доменные структуры подписки и таблицу допустимых
// переходов её статуса, а также вспомогательные типы для работы с данными
// из внешних источников (JSON-запросы).
package models

import "time"

// Статусы подписки.
const (
	SubscriptionStatusPending  = "pending"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// subscriptionTransitions — таблица допустимых переходов статуса подписки.
// canceled — терминальный статус, из него переходов нет.
var subscriptionTransitions = map[string]map[string]bool{
	SubscriptionStatusPending: {
		SubscriptionStatusActive:   true,
		SubscriptionStatusCanceled: true,
	},
	SubscriptionStatusActive: {
		SubscriptionStatusActive:   true,
		SubscriptionStatusPastDue:  true,
		SubscriptionStatusCanceled: true,
	},
	SubscriptionStatusPastDue: {
		SubscriptionStatusActive:   true,
		SubscriptionStatusCanceled: true,
	},
	SubscriptionStatusCanceled: {},
}

// CanTransitSubscriptionStatus сообщает, допустим ли переход статуса from -> to.
func CanTransitSubscriptionStatus(from, to string) bool {
	return subscriptionTransitions[from][to]
}

// IsLiveSubscriptionStatus сообщает, считается ли статус "живым":
// у пользователя может быть не больше одной подписки в статусе pending или active.
func IsLiveSubscriptionStatus(status string) bool {
	return status == SubscriptionStatusPending || status == SubscriptionStatusActive
}

// Subscription представляет подписку пользователя на тарифный план.
type Subscription struct {
	ID              string    `json:"id"`                // Уникальный идентификатор подписки
	UserUID         string    `json:"user_uid"`          // Владелец подписки
	PlanID          string    `json:"plan_id"`           // Тарифный план из каталога
	PaymentMethodID string    `json:"payment_method_id"` // Токен платёжного метода от провайдера
	Status          string    `json:"status"`            // Текущий статус подписки
	Version         int       `json:"-"`                 // Счётчик версий для оптимистической блокировки
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DummyCreateSubscription используется для приёма данных новой подписки из JSON-запроса.
type DummyCreateSubscription struct {
	PlanID          string `json:"plan_id" validate:"required"`
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

// DummyUpdateSubscription используется для приёма изменений подписки из JSON-запроса.
// Пустые поля не изменяются.
type DummyUpdateSubscription struct {
	PlanID          string `json:"plan_id"`
	PaymentMethodID string `json:"payment_method_id"`
}
