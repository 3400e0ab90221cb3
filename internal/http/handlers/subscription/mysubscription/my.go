// Package mysubscription реализует HTTP-обработчик получения текущей
// подписки авторизованного пользователя.
//
// Запись со статусом active, чей срок уже прошёл, текущей не считается:
// в этом случае возвращается 404.
package mysubscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	services "github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

// Handler обрабатывает запросы на получение текущей подписки пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики текущей подписки.
type Service interface {
	My(ctx context.Context, userUID string) (*models.SubscriptionInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить текущую подписку
// @Description Возвращает действующую подписку пользователя с планом и количеством оставшихся дней.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Текущая подписка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Нет действующей подписки"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscriptions/my [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.my"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("useruid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	info, err := h.service.My(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveSubscription) {
			log.Info("no active subscription", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no active subscription found"))
			return
		}
		log.Error("failed to read current subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read current subscription"))
		return
	}

	log.Info("success to read current subscription", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": info,
	}))
}
