// Package planlist реализует HTTP-обработчик получения каталога тарифных планов.
//
// Обычный пользователь видит только активные планы, администратор — все,
// включая отключённые.
package planlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// Handler обрабатывает запросы на получение каталога планов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики каталога планов.
type Service interface {
	List(ctx context.Context, isAdmin bool) ([]*models.Plan, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить каталог планов
// @Description Возвращает список тарифных планов. Администратор видит все планы, пользователь — только активные.
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Список планов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	role, _ := r.Context().Value(middlewarectx.Role).(string)

	plans, err := h.service.List(r.Context(), role == models.RoleAdmin || role == models.RoleSuperAdmin)
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list plans"))
		return
	}

	log.Info("success to list plans", slog.Int("count", len(plans)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"plans": plans,
	}))
}
