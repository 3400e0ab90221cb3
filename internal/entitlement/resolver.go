// Package entitlement реализует разрешение прав доступа пользователя:
// определение текущей подписки, плана и набора доступных функций.
//
// Все функции чистые: текущее время передаётся явным параметром now,
// поэтому результаты детерминированы и проверяемы в тестах. Для
// отсутствующего пользователя или отсутствующих данных возвращается
// ответ "нет доступа" (false, nil, пустое множество), паники исключены.
package entitlement

import (
	"sort"
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
)

// IsCurrent сообщает, действует ли запись подписки в момент now.
// Статус записи носит рекомендательный характер: запись со статусом active,
// чья дата окончания уже прошла, действующей не считается. Дата окончания,
// равная now, ещё входит в окно действия.
func IsCurrent(sub *models.Subscription, now time.Time) bool {
	if sub == nil || sub.Status != models.StatusActive {
		return false
	}
	if sub.EndDate == nil {
		return true
	}
	return !sub.EndDate.Before(now)
}

// CurrentSubscription возвращает действующую запись подписки из списка
// или nil, если такой нет. Ожидается не более одной записи со статусом
// active, но просроченная active-запись отбрасывается здесь же.
func CurrentSubscription(subs []*models.Subscription, now time.Time) *models.Subscription {
	for _, sub := range subs {
		if IsCurrent(sub, now) {
			return sub
		}
	}
	return nil
}

// CurrentPlan возвращает план, действующий для пользователя: план текущей
// подписки, иначе прямую ссылку пользователя на план, иначе nil.
// subPlan — план действующей подписки (nil, если подписки нет),
// directPlan — план по прямой ссылке пользователя (nil, если не задан).
func CurrentPlan(subPlan, directPlan *models.Plan) *models.Plan {
	if subPlan != nil {
		return subPlan
	}
	return directPlan
}

// Features возвращает множество функций, доступных пользователю:
// функции плана, объединённые с переопределениями пользователя.
// Переопределение со значением true добавляет функцию, со значением
// false — отзывает её, даже если она входит в план.
func Features(plan *models.Plan, overrides map[string]bool) map[string]struct{} {
	result := make(map[string]struct{})
	if plan != nil {
		for _, f := range plan.Features {
			result[f] = struct{}{}
		}
	}
	for name, enabled := range overrides {
		if enabled {
			result[name] = struct{}{}
		} else {
			delete(result, name)
		}
	}
	return result
}

// HasFeature проверяет, доступна ли пользователю функция featureName.
func HasFeature(plan *models.Plan, overrides map[string]bool, featureName string) bool {
	_, ok := Features(plan, overrides)[featureName]
	return ok
}

// RemainingDays возвращает число полных дней до окончания действующей
// подписки, не меньше нуля. Для бессрочной подписки и при отсутствии
// действующей подписки возвращается nil.
func RemainingDays(sub *models.Subscription, now time.Time) *int {
	if !IsCurrent(sub, now) || sub.EndDate == nil {
		return nil
	}
	days := int(sub.EndDate.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// IsExpired сообщает, истекла ли подписка пользователя: true, если
// действующей записи нет либо её окно действия закрылось.
func IsExpired(sub *models.Subscription, now time.Time) bool {
	return !IsCurrent(sub, now)
}

// CanUpgrade сообщает, является ли target повышением относительно current.
// Сравнивается мощность множеств функций: план с строго большим числом
// функций считается повышением. Это грубая эвристика, унаследованная от
// исходной модели: план с другим, но равным по размеру набором функций
// повышением не считается. При отсутствии текущего плана доступен любой.
func CanUpgrade(current, target *models.Plan) bool {
	if target == nil {
		return false
	}
	if current == nil {
		return true
	}
	return countUnique(target.Features) > countUnique(current.Features)
}

func countUnique(features []string) int {
	set := make(map[string]struct{}, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return len(set)
}

// Snapshot — снимок прав пользователя на момент времени. Встраивается
// в ответ на вход в систему и в claims выданного токена.
type Snapshot struct {
	PlanID        *int64   `json:"plan_id,omitempty"`        // Идентификатор действующего плана
	PlanName      string   `json:"plan_name"`                // Название плана ("No Plan", если плана нет)
	Features      []string `json:"features"`                 // Доступные функции
	IsExpired     bool     `json:"is_expired"`               // Истекла ли подписка
	RemainingDays *int     `json:"remaining_days,omitempty"` // Дней до окончания (nil — бессрочно или нет подписки)
}

// Resolve собирает снимок прав пользователя. sub — действующая запись
// подписки (nil допустим), subPlan и directPlan — соответствующие планы.
func Resolve(user *models.User, sub *models.Subscription, subPlan, directPlan *models.Plan, now time.Time) Snapshot {
	snapshot := Snapshot{
		PlanName: "No Plan",
		Features: []string{},
	}
	if user == nil {
		snapshot.IsExpired = true
		return snapshot
	}
	if !IsCurrent(sub, now) {
		sub = nil
		subPlan = nil
	}
	plan := CurrentPlan(subPlan, directPlan)
	if plan != nil {
		snapshot.PlanID = &plan.ID
		snapshot.PlanName = plan.Name
	}
	for f := range Features(plan, user.EnabledFeatures) {
		snapshot.Features = append(snapshot.Features, f)
	}
	sort.Strings(snapshot.Features)
	snapshot.IsExpired = IsExpired(sub, now)
	snapshot.RemainingDays = RemainingDays(sub, now)
	return snapshot
}
