package models

import "time"

// Имена тарифных планов, создаваемых при инициализации каталога.
const (
	PlanBasic    = "Basic"
	PlanStandard = "Standard"
	PlanPremium  = "Premium"
)

// Plan представляет тарифный план из каталога подписок.
// Список функций хранится упорядоченным, но трактуется как множество:
// порядок и дубликаты не имеют значения при проверке принадлежности.
type Plan struct {
	ID        int64     // Идентификатор плана
	Name      string    // Уникальное название плана
	Features  []string  // Список функций, доступных в плане
	Price     float64   // Цена плана, неотрицательная
	IsActive  bool      // Доступен ли план для самостоятельной подписки
	CreatedAt time.Time // Дата создания
	UpdatedAt time.Time // Дата последнего изменения
}

// FeatureCount возвращает количество функций плана.
func (p *Plan) FeatureCount() int {
	return len(p.Features)
}

// DummyPlan используется для приёма данных плана из JSON-запроса
// при создании и обновлении каталога администратором.
type DummyPlan struct {
	Name     string   `json:"name" validate:"required,max=20"`  // Название плана
	Features []string `json:"features" validate:"required"`     // Список функций
	Price    float64  `json:"price" validate:"omitempty,gte=0"` // Цена (>= 0)
	IsActive *bool    `json:"is_active,omitempty"`              // Признак активности (по умолчанию true)
}

// DummyPlanToggle используется для включения и отключения плана.
type DummyPlanToggle struct {
	IsActive *bool `json:"is_active" validate:"required"` // Новое значение признака активности
}
