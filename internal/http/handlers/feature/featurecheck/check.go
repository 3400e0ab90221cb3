// Package featurecheck реализует HTTP-обработчик проверки доступности
// одной функции для авторизованного пользователя.
package featurecheck

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	services "github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
)

// Handler обрабатывает запросы на проверку доступности функции.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс проверки доступности функции.
type Service interface {
	HasFeatureByUID(ctx context.Context, userUID, featureName string) (bool, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить доступность функции
// @Description Сообщает, доступна ли пользователю функция с указанным именем на момент запроса.
// @Tags Features
// @Produce  json
// @Security BearerAuth
// @Param name path string true "Имя функции"
// @Success 200 {object} map[string]any "Результат проверки"
// @Failure 400 {object} response.ErrorResponse "Имя функции не указано"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /features/{name} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.feature.check"

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

	featureName := chi.URLParam(r, "name")
	if featureName == "" {
		log.Error("feature name is empty")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("feature name is required"))
		return
	}

	has, err := h.service.HasFeatureByUID(r.Context(), userUID, featureName)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			log.Error("user not found", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to check feature", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check feature"))
		return
	}

	log.Info("success to check feature",
		slog.String("feature", featureName), slog.Bool("has_feature", has))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"feature":     featureName,
		"has_feature": has,
	}))
}
