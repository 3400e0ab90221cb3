// Package plantoggle реализует HTTP-обработчик включения и отключения плана.
//
// Отключённый план пропадает из самостоятельной подписки, но исторические
// записи журнала продолжают на него ссылаться. Доступен только администратору.
package plantoggle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-entitlements/internal/http/response"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	services "github.com/magabrotheeeer/subscription-entitlements/internal/services/plan"
)

// Handler обрабатывает запросы на включение и отключение планов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики переключения плана.
type Service interface {
	Toggle(ctx context.Context, id int64, isActive bool) (*models.Plan, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Включить или отключить план
// @Description Меняет признак активности плана, не удаляя его из каталога. Только для администратора.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID плана"
// @Param request body models.DummyPlanToggle true "Новое значение признака активности"
// @Success 200 {object} map[string]any "Обновлённый план"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /plans/{id}/toggle [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.toggle"

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

	var req models.DummyPlanToggle
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	plan, err := h.service.Toggle(r.Context(), id, *req.IsActive)
	if err != nil {
		if errors.Is(err, services.ErrPlanNotFound) {
			log.Error("plan not found", slog.Int64("id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("plan not found"))
			return
		}
		log.Error("failed to toggle plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not toggle plan"))
		return
	}

	log.Info("success to toggle plan", slog.Int64("id", id), slog.Bool("is_active", plan.IsActive))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"plan": plan,
	}))
}
