package models

import "time"

// Статусы записи подписки. Статус active носит рекомендательный характер:
// действительность подписки определяется по дате окончания.
const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Subscription представляет запись журнала подписок пользователя.
// Поле EndDate может быть nil — это означает бессрочную подписку.
// На пользователя допускается не более одной записи со статусом active,
// инвариант закреплён частичным уникальным индексом в хранилище.
type Subscription struct {
	ID        int64      // Идентификатор записи
	UserUID   string     // Идентификатор пользователя
	PlanID    int64      // Идентификатор плана
	Status    string     // Статус: active, expired или cancelled
	StartDate time.Time  // Дата начала, выставляется при создании и неизменна
	EndDate   *time.Time // Дата окончания (nil — без ограничения срока)
	CreatedAt time.Time  // Дата создания записи
	UpdatedAt time.Time  // Дата последнего изменения
}

// SubscriptionInfo объединяет запись подписки с планом и вычисляемыми
// полями для выдачи наружу. IsActive и RemainingDays никогда не хранятся,
// они вычисляются на момент запроса.
type SubscriptionInfo struct {
	Subscription  Subscription `json:"subscription"`
	Plan          *Plan        `json:"plan,omitempty"`
	IsActive      bool         `json:"is_active"`
	RemainingDays *int         `json:"remaining_days,omitempty"`
}

// DummySubscription используется для приёма данных при создании подписки
// администратором. Дата окончания приходит строкой в формате 2006-01-02.
type DummySubscription struct {
	UserUID string `json:"user_uid" validate:"required,uuid"`                           // Идентификатор пользователя
	PlanID  int64  `json:"plan_id" validate:"required,gt=0"`                            // Идентификатор плана
	EndDate string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"` // Дата окончания (опционально)
}

// DummyRenew используется для приёма необязательной новой даты окончания
// при продлении подписки.
type DummyRenew struct {
	EndDate string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"` // Новая дата окончания (опционально)
}
