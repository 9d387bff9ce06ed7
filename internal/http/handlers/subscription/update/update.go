// Package update реализует HTTP-обработчик изменения подписки.
//
// Смена тарифного плана или платёжного метода заново авторизуется
// у провайдера; отменённая подписка не изменяется.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/account-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/account-service/internal/http/response"
	"github.com/magabrotheeeer/account-service/internal/lib/sl"
	"github.com/magabrotheeeer/account-service/internal/models"
	"github.com/magabrotheeeer/account-service/internal/paymentprovider"
	subservice "github.com/magabrotheeeer/account-service/internal/services/subscription"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// Handler обрабатывает запросы на изменение подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики подписок
}

// Service описывает интерфейс бизнес-логики изменения подписки.
type Service interface {
	Read(ctx context.Context, id string) (*models.Subscription, error)
	Update(ctx context.Context, id string, req models.DummyUpdateSubscription) (*models.Subscription, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Изменить подписку
// @Description Меняет тарифный план и/или платёжный метод. Изменение заново авторизуется у провайдера; подтверждённый платёж возвращает подписку из past_due в active.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Param request body models.DummyUpdateSubscription true "Изменяемые поля"
// @Success 200 {object} map[string]any "Обновлённая подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 402 {object} response.ErrorResponse "Провайдер отклонил платёжный метод"
// @Failure 404 {object} response.ErrorResponse "Подписка или план не найдены"
// @Failure 409 {object} response.ErrorResponse "Конфликт версий либо недопустимое состояние"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Failure 503 {object} response.ErrorResponse "Платёжный провайдер недоступен"
// @Router /subscriptions/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.update"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	role, _ := r.Context().Value(middlewarectx.Role).(string)

	id := chi.URLParam(r, "id")

	var req models.DummyUpdateSubscription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	sub, err := h.service.Read(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Error("subscription not found", slog.String("id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		log.Error("failed to read subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update subscription"))
		return
	}
	if role != models.RoleAdmin && sub.UserUID != userUID {
		log.Error("subscription belongs to another user", slog.String("id", id))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	}

	updated, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			log.Error("subscription or plan not found", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription or plan not found"))
		case errors.Is(err, subservice.ErrInvalidState):
			log.Error("subscription is canceled")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("canceled subscription cannot be changed"))
		case errors.Is(err, repository.ErrConflict):
			log.Error("concurrent subscription update")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("subscription was changed concurrently, retry"))
		case errors.Is(err, paymentprovider.ErrRejected):
			log.Error("payment method rejected", sl.Err(err))
			w.WriteHeader(http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("payment method rejected"))
		case errors.Is(err, paymentprovider.ErrUnavailable):
			log.Error("payment provider unavailable", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable"))
		default:
			log.Error("failed to update subscription", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not update subscription"))
		}
		return
	}

	log.Info("updated subscription", slog.String("id", updated.ID), slog.String("status", updated.Status))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": updated,
	}))
}
