// Package services содержит бизнес-логику жизненного цикла подписок
// и разрешение прав доступа пользователей.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/entitlement"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	"github.com/magabrotheeeer/subscription-entitlements/internal/storage/repository"
)

// Ошибки жизненного цикла подписок.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrPlanNotFound         = errors.New("invalid plan id")
	ErrPlanInactive         = errors.New("cannot subscribe to inactive plan")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoActiveSubscription = errors.New("no active subscription found")
)

// SubscriptionRepository определяет методы для работы с журналом подписок в хранилище.
type SubscriptionRepository interface {
	// CreateSubscriptionReplacingActive создаёт запись, предварительно
	// отменив существующую активную запись пользователя (одна транзакция).
	CreateSubscriptionReplacingActive(ctx context.Context, sub models.Subscription) (int64, error)
	// GetSubscription возвращает запись по ID.
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	// GetActiveSubscription возвращает active-запись пользователя.
	GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	// ListSubscriptions возвращает все записи с пагинацией.
	ListSubscriptions(ctx context.Context, limit, offset int) ([]*models.Subscription, error)
	// ListSubscriptionsByUser возвращает записи одного пользователя.
	ListSubscriptionsByUser(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error)
	// UpdateSubscriptionStatus выставляет записи новый статус.
	UpdateSubscriptionStatus(ctx context.Context, id int64, status string) (int64, error)
	// RenewSubscription возвращает запись в статус active.
	RenewSubscription(ctx context.Context, id int64, endDate *time.Time) error
	// ExpireOverdueSubscriptions помечает просроченные активные записи.
	ExpireOverdueSubscriptions(ctx context.Context, now time.Time) (int64, error)
	// GetPlan возвращает план по ID.
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Publisher публикует события жизненного цикла подписок.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// SubscriptionService реализует переходы состояний записей подписок
// и разрешение прав. Текущее время берётся из инжектированного
// источника now, что делает проверки сроков детерминированными.
type SubscriptionService struct {
	repo      SubscriptionRepository
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
// nowFunc = nil означает использование time.Now.
func NewSubscriptionService(repo SubscriptionRepository, publisher Publisher, log *slog.Logger, nowFunc func() time.Time) *SubscriptionService {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &SubscriptionService{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       nowFunc,
	}
}

// Event — сообщение о переходе состояния записи подписки.
type Event struct {
	SubscriptionID int64      `json:"subscription_id"`
	UserUID        string     `json:"user_uid"`
	PlanID         int64      `json:"plan_id"`
	Status         string     `json:"status"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Create создает новую подписку пользователя на план. Существующая
// активная запись переводится в cancelled в той же транзакции, поэтому
// пользователь в любой момент наблюдает не более одной активной записи.
func (s *SubscriptionService) Create(ctx context.Context, req models.DummySubscription) (*models.SubscriptionInfo, error) {
	const op = "services.subscription.Create"

	if _, err := s.repo.GetUser(ctx, req.UserUID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan, err := s.repo.GetPlan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	endDate, err := parseEndDate(req.EndDate)
	if err != nil {
		return nil, err
	}

	sub := models.Subscription{
		UserUID: req.UserUID,
		PlanID:  req.PlanID,
		Status:  models.StatusActive,
		EndDate: endDate,
	}
	id, err := s.repo.CreateSubscriptionReplacingActive(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created subscription", slog.Int64("id", id), slog.String("user_uid", req.UserUID))

	created, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(rabbitmq.RoutingKeyCreated, created)
	return s.info(created, plan), nil
}

// Cancel переводит запись в статус cancelled. Повторная отмена уже
// отменённой записи — успешная пустая операция, а не ошибка.
func (s *SubscriptionService) Cancel(ctx context.Context, id int64) (*models.SubscriptionInfo, error) {
	return s.transition(ctx, id, models.StatusCancelled, rabbitmq.RoutingKeyCancelled)
}

// Expire переводит запись в статус expired.
func (s *SubscriptionService) Expire(ctx context.Context, id int64) (*models.SubscriptionInfo, error) {
	return s.transition(ctx, id, models.StatusExpired, rabbitmq.RoutingKeyExpired)
}

// Renew возвращает запись в статус active, при переданной дате
// продлевая срок действия.
func (s *SubscriptionService) Renew(ctx context.Context, id int64, req models.DummyRenew) (*models.SubscriptionInfo, error) {
	const op = "services.subscription.Renew"

	endDate, err := parseEndDate(req.EndDate)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RenewSubscription(ctx, id, endDate); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("renewed subscription", slog.Int64("id", id))

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.publish(rabbitmq.RoutingKeyRenewed, sub)
	return s.infoWithPlan(ctx, sub), nil
}

// My возвращает текущую подписку пользователя с планом и вычисляемыми
// полями. Запись со статусом active, чей срок уже прошёл, текущей
// не считается.
func (s *SubscriptionService) My(ctx context.Context, userUID string) (*models.SubscriptionInfo, error) {
	const op = "services.subscription.My"

	sub, err := s.repo.GetActiveSubscription(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !entitlement.IsCurrent(sub, s.now()) {
		return nil, ErrNoActiveSubscription
	}
	return s.infoWithPlan(ctx, sub), nil
}

// List возвращает записи журнала: администратору — все, пользователю — свои.
func (s *SubscriptionService) List(ctx context.Context, userUID string, isAdmin bool, limit, offset int) ([]*models.SubscriptionInfo, error) {
	var subs []*models.Subscription
	var err error
	if isAdmin {
		subs, err = s.repo.ListSubscriptions(ctx, limit, offset)
	} else {
		subs, err = s.repo.ListSubscriptionsByUser(ctx, userUID, limit, offset)
	}
	if err != nil {
		return nil, err
	}

	result := make([]*models.SubscriptionInfo, 0, len(subs))
	for _, sub := range subs {
		result = append(result, s.infoWithPlan(ctx, sub))
	}
	return result, nil
}

// Resolve строит снимок прав пользователя на текущий момент: действующая
// подписка, её план либо прямая ссылка пользователя на план, функции
// с учётом переопределений.
func (s *SubscriptionService) Resolve(ctx context.Context, user *models.User) (entitlement.Snapshot, error) {
	const op = "services.subscription.Resolve"
	now := s.now()

	if user == nil {
		return entitlement.Resolve(nil, nil, nil, nil, now), nil
	}

	var sub *models.Subscription
	var subPlan *models.Plan
	active, err := s.repo.GetActiveSubscription(ctx, user.UID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return entitlement.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	if active != nil {
		sub = active
		if subPlan, err = s.repo.GetPlan(ctx, active.PlanID); err != nil {
			return entitlement.Snapshot{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	var directPlan *models.Plan
	if user.PlanID != nil {
		directPlan, err = s.repo.GetPlan(ctx, *user.PlanID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return entitlement.Snapshot{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	return entitlement.Resolve(user, sub, subPlan, directPlan, now), nil
}

// ResolveByUID строит снимок прав по идентификатору пользователя.
func (s *SubscriptionService) ResolveByUID(ctx context.Context, userUID string) (entitlement.Snapshot, error) {
	const op = "services.subscription.ResolveByUID"

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return entitlement.Snapshot{}, ErrUserNotFound
		}
		return entitlement.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	return s.Resolve(ctx, user)
}

// HasFeatureByUID проверяет доступность функции по идентификатору пользователя.
func (s *SubscriptionService) HasFeatureByUID(ctx context.Context, userUID, featureName string) (bool, error) {
	snapshot, err := s.ResolveByUID(ctx, userUID)
	if err != nil {
		return false, err
	}
	for _, f := range snapshot.Features {
		if f == featureName {
			return true, nil
		}
	}
	return false, nil
}

// HasFeature проверяет, доступна ли пользователю функция featureName.
func (s *SubscriptionService) HasFeature(ctx context.Context, user *models.User, featureName string) (bool, error) {
	snapshot, err := s.Resolve(ctx, user)
	if err != nil {
		return false, err
	}
	for _, f := range snapshot.Features {
		if f == featureName {
			return true, nil
		}
	}
	return false, nil
}

// CanUpgrade сообщает, является ли план targetPlanID повышением
// относительно текущего плана пользователя.
func (s *SubscriptionService) CanUpgrade(ctx context.Context, user *models.User, targetPlanID int64) (bool, error) {
	const op = "services.subscription.CanUpgrade"

	target, err := s.repo.GetPlan(ctx, targetPlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrPlanNotFound
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	snapshot, err := s.Resolve(ctx, user)
	if err != nil {
		return false, err
	}
	var current *models.Plan
	if snapshot.PlanID != nil {
		current, err = s.repo.GetPlan(ctx, *snapshot.PlanID)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
	}
	return entitlement.CanUpgrade(current, target), nil
}

// ExpireOverdue помечает просроченные активные записи статусом expired.
// Возвращает число изменённых записей. Вызывается плановой задачей.
func (s *SubscriptionService) ExpireOverdue(ctx context.Context) (int64, error) {
	count, err := s.repo.ExpireOverdueSubscriptions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("expired overdue subscriptions", slog.Int64("count", count))
	}
	return count, nil
}

func (s *SubscriptionService) transition(ctx context.Context, id int64, status, routingKey string) (*models.SubscriptionInfo, error) {
	const op = "services.subscription.transition"

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if sub.Status != status {
		if _, err := s.repo.UpdateSubscriptionStatus(ctx, id, status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.Status = status
		s.log.Info("subscription status changed",
			slog.Int64("id", id), slog.String("status", status))
		s.publish(routingKey, sub)
	}
	return s.infoWithPlan(ctx, sub), nil
}

func (s *SubscriptionService) publish(routingKey string, sub *models.Subscription) {
	if s.publisher == nil {
		return
	}
	event := Event{
		SubscriptionID: sub.ID,
		UserUID:        sub.UserUID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		EndDate:        sub.EndDate,
		OccurredAt:     s.now(),
	}
	if err := s.publisher.Publish(routingKey, event); err != nil {
		s.log.Warn("failed to publish subscription event",
			slog.String("routing_key", routingKey), slog.Any("err", err))
	}
}

func (s *SubscriptionService) infoWithPlan(ctx context.Context, sub *models.Subscription) *models.SubscriptionInfo {
	plan, err := s.repo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		s.log.Warn("failed to load plan for subscription",
			slog.Int64("subscription_id", sub.ID), slog.Any("err", err))
		plan = nil
	}
	return s.info(sub, plan)
}

func (s *SubscriptionService) info(sub *models.Subscription, plan *models.Plan) *models.SubscriptionInfo {
	now := s.now()
	return &models.SubscriptionInfo{
		Subscription:  *sub,
		Plan:          plan,
		IsActive:      entitlement.IsCurrent(sub, now),
		RemainingDays: entitlement.RemainingDays(sub, now),
	}
}

func parseEndDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid end date: %w", err)
	}
	return &parsed, nil
}
