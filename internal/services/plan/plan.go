// Package services содержит бизнес-логику каталога тарифных планов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	"github.com/magabrotheeeer/subscription-entitlements/internal/storage/repository"
)

// Ошибки каталога планов.
var (
	ErrPlanNotFound  = errors.New("plan not found")
	ErrPlanNameTaken = errors.New("a plan with this name already exists")
	ErrPlanInUse     = errors.New("plan has subscription records and cannot be deleted")
)

const plansCacheKey = "plans:active"

// PlanRepository определяет методы для работы с каталогом планов в хранилище.
type PlanRepository interface {
	// CreatePlan добавляет новый план и возвращает его ID.
	CreatePlan(ctx context.Context, plan models.Plan) (int64, error)
	// GetPlan возвращает план по ID.
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	// GetPlanByName возвращает план по названию.
	GetPlanByName(ctx context.Context, name string) (*models.Plan, error)
	// ListPlans возвращает планы каталога, опционально только активные.
	ListPlans(ctx context.Context, onlyActive bool) ([]*models.Plan, error)
	// UpdatePlan обновляет данные плана по ID.
	UpdatePlan(ctx context.Context, plan models.Plan, id int64) (int64, error)
	// SetPlanActive включает или отключает план.
	SetPlanActive(ctx context.Context, id int64, isActive bool) (int64, error)
	// RemovePlan удаляет план по ID.
	RemovePlan(ctx context.Context, id int64) (int64, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// PlanService реализует операции каталога планов с кешированием
// публичного списка.
type PlanService struct {
	repo  PlanRepository
	cache Cache
	log   *slog.Logger
}

// NewPlanService создает новый экземпляр PlanService.
func NewPlanService(repo PlanRepository, cache Cache, log *slog.Logger) *PlanService {
	return &PlanService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// List возвращает планы каталога. Администратор видит все планы,
// обычный пользователь — только активные (этот список кешируется).
func (s *PlanService) List(ctx context.Context, isAdmin bool) ([]*models.Plan, error) {
	if isAdmin {
		return s.repo.ListPlans(ctx, false)
	}

	var cached []*models.Plan
	found, err := s.cache.Get(plansCacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read plans from cache", slog.Any("err", err))
	}
	if found {
		return cached, nil
	}

	plans, err := s.repo.ListPlans(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(plansCacheKey, plans, time.Hour); err != nil {
		s.log.Warn("failed to cache plans", slog.Any("err", err))
	}
	return plans, nil
}

// Get возвращает план по ID. Для обычного пользователя отключённый план
// считается отсутствующим.
func (s *PlanService) Get(ctx context.Context, id int64, isAdmin bool) (*models.Plan, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive && !isAdmin {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// Create добавляет план в каталог и возвращает его ID.
func (s *PlanService) Create(ctx context.Context, req models.DummyPlan) (int64, error) {
	const op = "services.plan.Create"

	if _, err := s.repo.GetPlanByName(ctx, req.Name); err == nil {
		return 0, ErrPlanNameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	plan := models.Plan{
		Name:     req.Name,
		Features: req.Features,
		Price:    req.Price,
		IsActive: isActive,
	}
	id, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("created new plan", slog.Int64("id", id), slog.String("name", req.Name))
	s.invalidate()
	return id, nil
}

// Update обновляет план каталога по ID.
func (s *PlanService) Update(ctx context.Context, req models.DummyPlan, id int64) error {
	const op = "services.plan.Update"

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	plan := models.Plan{
		Name:     req.Name,
		Features: req.Features,
		Price:    req.Price,
		IsActive: isActive,
	}
	count, err := s.repo.UpdatePlan(ctx, plan, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if count == 0 {
		return ErrPlanNotFound
	}

	s.log.Info("updated plan", slog.Int64("id", id))
	s.invalidate()
	return nil
}

// Toggle включает или отключает план, не удаляя его из каталога.
// Отключённый план пропадает из самостоятельной подписки, но
// исторические записи журнала продолжают на него ссылаться.
func (s *PlanService) Toggle(ctx context.Context, id int64, isActive bool) (*models.Plan, error) {
	const op = "services.plan.Toggle"

	count, err := s.repo.SetPlanActive(ctx, id, isActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if count == 0 {
		return nil, ErrPlanNotFound
	}

	s.log.Info("toggled plan", slog.Int64("id", id), slog.Bool("is_active", isActive))
	s.invalidate()
	return s.repo.GetPlan(ctx, id)
}

// Remove удаляет план без записей журнала. План, на который ссылаются
// подписки, защищён ограничением внешнего ключа.
func (s *PlanService) Remove(ctx context.Context, id int64) error {
	const op = "services.plan.Remove"

	count, err := s.repo.RemovePlan(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRestricted) {
			return ErrPlanInUse
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if count == 0 {
		return ErrPlanNotFound
	}

	s.log.Info("removed plan", slog.Int64("id", id))
	s.invalidate()
	return nil
}

func (s *PlanService) invalidate() {
	if err := s.cache.Invalidate(plansCacheKey); err != nil {
		s.log.Warn("failed to invalidate plans cache", slog.Any("err", err))
	}
}
