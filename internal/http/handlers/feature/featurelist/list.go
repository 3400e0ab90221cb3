// Package featurelist реализует HTTP-обработчик получения снимка прав
// авторизованного пользователя.
//
// Снимок строится на момент запроса: действующая подписка, её план либо
// прямая ссылка пользователя на план, функции с учётом переопределений.
package featurelist

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-entitlements/internal/entitlement"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	services "github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

// Handler обрабатывает запросы на получение снимка прав пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс разрешения прав пользователя.
type Service interface {
	ResolveByUID(ctx context.Context, userUID string) (entitlement.Snapshot, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить снимок прав
// @Description Возвращает план, список доступных функций и количество оставшихся дней на момент запроса.
// @Tags Features
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Снимок прав пользователя"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /features [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.feature.list"

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

	snapshot, err := h.service.ResolveByUID(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			log.Error("user not found", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to resolve entitlement", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not resolve entitlement"))
		return
	}

	log.Info("success to resolve entitlement", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"entitlement": snapshot,
	}))
}
