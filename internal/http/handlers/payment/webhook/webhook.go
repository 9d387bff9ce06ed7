// Package webhook реализует HTTP-обработчик платёжных событий провайдера.
//
// Провайдер подписывает тело запроса HMAC-SHA256, подпись передаётся
// в заголовке X-Api-Signature. Запросы с неверной подписью отклоняются
// до какой-либо обработки.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/account-service/internal/http/response"
	"github.com/magabrotheeeer/account-service/internal/lib/sl"
	"github.com/magabrotheeeer/account-service/internal/models"
	subservice "github.com/magabrotheeeer/account-service/internal/services/subscription"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// Service описывает интерфейс применения платёжного события к подписке.
type Service interface {
	ApplyPaymentEvent(ctx context.Context, id, event string) (*models.Subscription, error)
}

// Handler обрабатывает платёжные события провайдера.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый Handler с переданными логгером, сервисом и секретом подписи.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — тело платёжного события провайдера.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		SubscriptionID string `json:"subscription_id"`
	} `json:"object"`
}

// verifySignature проверяет HMAC-SHA256 подпись тела запроса.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Принять платёжное событие провайдера
// @Description Применяет событие payment_succeeded или payment_failed к подписке. Тело запроса должно быть подписано HMAC-SHA256 (заголовок X-Api-Signature).
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Payload true "Платёжное событие"
// @Success 200 {object} map[string]any "Событие применено"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело запроса"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход состояния"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid webhook signature"))
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if payload.Object.SubscriptionID == "" {
		log.Error("webhook payload without subscription id")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("subscription_id is required"))
		return
	}

	sub, err := h.service.ApplyPaymentEvent(r.Context(), payload.Object.SubscriptionID, payload.Event)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			log.Error("subscription not found", slog.String("id", payload.Object.SubscriptionID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
		case errors.Is(err, subservice.ErrInvalidState):
			log.Error("event is not applicable", slog.String("event", payload.Event), sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("event is not applicable to subscription state"))
		case errors.Is(err, repository.ErrConflict):
			log.Error("concurrent subscription update")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("subscription was changed concurrently, retry"))
		default:
			log.Error("failed to process webhook event", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not process webhook event"))
		}
		return
	}

	log.Info("webhook processed successfully",
		slog.String("event", payload.Event), slog.String("id", sub.ID), slog.String("status", sub.Status))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": sub,
	}))
}
