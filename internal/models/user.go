// Package models содержит доменную модель пользователя системы,
// включающую данные учётной записи, хэш пароля и отметку последней смены пароля.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// Роли пользователей системы.
const (
	RoleMember = "member" // Обычный пользователь
	RoleAdmin  = "admin"  // Администратор
)

// User представляет зарегистрированного пользователя системы.
//
// PasswordHash и PasswordChangedAt — секретные поля: хранилище заполняет их
// только при явном запросе и они никогда не сериализуются наружу.
type User struct {
	UID               string    // Уникальный идентификатор пользователя
	Email             string    // Электронная почта (уникальная, в нижнем регистре)
	Name              string    // Отображаемое имя пользователя
	PasswordHash      string    // Хэш пароля, только при явном запросе
	PasswordChangedAt time.Time // Отметка последней смены пароля (watermark для сессий)
	Role              string    // Роль пользователя, member или admin
	IsActive          bool      // false — учётная запись мягко удалена
	CreatedAt         time.Time // Дата регистрации
}

// SanitizedUser — безопасное представление пользователя для ответов API.
// Не содержит хэша пароля и отметки его смены.
type SanitizedUser struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Sanitize возвращает представление пользователя без секретных полей.
func (u *User) Sanitize() *SanitizedUser {
	return &SanitizedUser{
		UID:   u.UID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// DummyChangePassword используется для приёма запроса на смену пароля.
type DummyChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// UpdateUserParams — частичное обновление профиля. Поля nil не изменяются.
type UpdateUserParams struct {
	Name  *string
	Email *string
}
