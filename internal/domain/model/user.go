// Пакет model — доменные модели Sheets Console.
package model

import (
	"encoding/json"

	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
)

// NotAssignedDepartment — значение отдела для пользователей, созданных
// администратором без выбора отдела.
const NotAssignedDepartment = "N/A"

// User — профиль пользователя консоли (ответ remote API).
type User struct {
	// ID — идентификатор пользователя в IdP (uid)
	ID string `json:"uid"`
	// Username — отображаемое имя пользователя
	Username string `json:"username,omitempty"`
	// FirstName — имя
	FirstName string `json:"first_name"`
	// LastName — фамилия
	LastName string `json:"last_name"`
	// Email — адрес электронной почты
	Email string `json:"email"`
	// Role — уровень доступа
	Role rbac.Role `json:"role"`
	// Department — отдел (может отсутствовать)
	Department string `json:"department,omitempty"`
}

// UnmarshalJSON принимает идентификатор как в поле uid, так и в поле id.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.AltID
	}
	return nil
}

// DisplayName возвращает имя для интерфейса.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" || u.LastName != "":
		if u.LastName == "" {
			return u.FirstName
		}
		if u.FirstName == "" {
			return u.LastName
		}
		return u.FirstName + " " + u.LastName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// RolePtr возвращает указатель на роль для политик rbac; nil для пустого профиля.
func (u *User) RolePtr() *rbac.Role {
	if u == nil || u.Role == "" {
		return nil
	}
	r := u.Role
	return &r
}

// ProfilePatch — частичное обновление профиля (shallow merge).
// nil-поля не изменяются.
type ProfilePatch struct {
	Username   *string    `json:"username,omitempty"`
	FirstName  *string    `json:"first_name,omitempty"`
	LastName   *string    `json:"last_name,omitempty"`
	Email      *string    `json:"email,omitempty"`
	Role       *rbac.Role `json:"role,omitempty"`
	Department *string    `json:"department,omitempty"`
}

// Apply возвращает копию u с применёнными полями патча.
func (p ProfilePatch) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Department != nil {
		u.Department = *p.Department
	}
	return u
}
