// Package models содержит доменные структуры сервиса: пользователей,
// тарифные планы и записи подписок, а также вспомогательные типы
// для приёма данных из JSON-запросов.
package models

import "time"

// Роли пользователей системы.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// User представляет зарегистрированного пользователя системы.
// Идентификация выполняется по email или телефону: хотя бы одно из двух
// полей должно быть заполнено, оба уникальны.
type User struct {
	UID             string          // Уникальный идентификатор пользователя (uuid)
	Email           *string         // Электронная почта (nil, если не указана)
	Phone           *string         // Телефон (nil, если не указан)
	Name            string          // Отображаемое имя
	PasswordHash    string          // Хэш пароля пользователя
	Role            string          // Роль: super_admin, admin или user
	PlanID          *int64          // Прямая ссылка на тарифный план (nil, если нет)
	EnabledFeatures map[string]bool // Переопределения функций поверх плана
	IsActive        bool            // Признак активной учётной записи
	DateJoined      time.Time       // Дата регистрации
}

// IsAdmin сообщает, обладает ли пользователь административными правами.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// DummyRegisterUser используется для приёма данных регистрации из JSON-запроса.
// Требуется email или телефон, проверка выполняется в сервисе.
type DummyRegisterUser struct {
	Email    string `json:"email,omitempty" validate:"omitempty,email"`  // Электронная почта (опционально)
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=15"` // Телефон (опционально)
	Name     string `json:"name" validate:"required,max=255"`            // Имя пользователя
	Password string `json:"password" validate:"required,min=6"`          // Пароль (минимум 6 символов)
	PlanID   *int64 `json:"plan_id,omitempty" validate:"omitempty,gt=0"` // Прямая ссылка на план (опционально)
}

// DummyLogin используется для приёма учётных данных при входе.
// LoginField содержит email или телефон, различение по символу '@'.
type DummyLogin struct {
	LoginField string `json:"login_field" validate:"required"` // Email или телефон
	Password   string `json:"password" validate:"required"`    // Пароль
}
