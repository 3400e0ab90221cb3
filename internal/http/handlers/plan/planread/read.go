// Package planread реализует HTTP-обработчик получения тарифного плана по ID.
//
// Для обычного пользователя отключённый план считается отсутствующим.
package planread

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	services "github.com/magabrotheeeer/subscription-entitlements/internal/services/plan"
)

// Handler обрабатывает запросы на получение плана по идентификатору.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения плана.
type Service interface {
	Get(ctx context.Context, id int64, isAdmin bool) (*models.Plan, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить план по ID
// @Description Возвращает тарифный план. Отключённый план виден только администратору.
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID плана"
// @Success 200 {object} map[string]any "Данные плана"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /plans/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}

	role, _ := r.Context().Value(middlewarectx.Role).(string)

	plan, err := h.service.Get(r.Context(), id, role == models.RoleAdmin || role == models.RoleSuperAdmin)
	if err != nil {
		if errors.Is(err, services.ErrPlanNotFound) {
			log.Error("plan not found", slog.Int64("id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("plan not found"))
			return
		}
		log.Error("failed to read plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read plan"))
		return
	}

	log.Info("success to read plan", slog.Int64("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"plan": plan,
	}))
}
