// guard.go — ролевой доступ к страницам.
package middleware

import (
	"net/http"

	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/session"
)

// NotFoundPath — страница, на которую уходят запросы без доступа.
const NotFoundPath = "/404"

// Guard пропускает только пользователей, чья роль проходит политику tier.
// Отказ выглядит как отсутствующая страница.
func Guard(tier rbac.Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var role *rbac.Role
			if store := session.FromContext(r.Context()); store != nil {
				role = store.Profile().RolePtr()
			}
			if !rbac.CanAccess(role, tier) {
				http.Redirect(w, r, NotFoundPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
