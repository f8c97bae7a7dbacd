// users.go — видимость пользователей в управлении аккаунтами.
package service

import (
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
)

// VisibleUsers возвращает пользователей, доступных current в управлении
// аккаунтами. admin видит только пользователей своего отдела без роли
// super_admin. Текущий пользователь, если виден, идёт первым; порядок
// остальных сохраняется.
func VisibleUsers(all []model.User, current model.User) []model.User {
	out := make([]model.User, 0, len(all))
	var self *model.User
	for i := range all {
		u := all[i]
		if current.Role == rbac.RoleAdmin {
			if u.Role == rbac.RoleSuperAdmin || u.Department != current.Department {
				continue
			}
		}
		if u.ID == current.ID && self == nil {
			self = &u
			continue
		}
		out = append(out, u)
	}
	if self != nil {
		out = append([]model.User{*self}, out...)
	}
	return out
}
