// Пакет rbac — уровни доступа Sheets Console и две именованные
// политики доступа: AtLeastAdmin и ExactlySuperAdmin.
// Политики намеренно несимметричны и не сводятся к одному сравнению ≥.
package rbac

import "fmt"

// Role — уровень доступа пользователя.
type Role string

// Уровни в порядке возрастания привилегий.
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleWeight — вес уровня; используется только для сравнения.
var roleWeight = map[Role]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Tier — требуемая политика доступа к маршруту или элементу UI.
type Tier int

const (
	// TierAdmin — AtLeastAdmin: запрещает только RoleUser.
	TierAdmin Tier = iota + 1
	// TierSuperAdmin — ExactlySuperAdmin: разрешает только RoleSuperAdmin.
	TierSuperAdmin
)

// String возвращает имя политики для логов.
func (t Tier) String() string {
	switch t {
	case TierAdmin:
		return "at_least_admin"
	case TierSuperAdmin:
		return "exactly_super_admin"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseRole разбирает строку роли. Неизвестные строки отклоняются.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleWeight[r]; !ok {
		return "", fmt.Errorf("неизвестная роль %q", s)
	}
	return r, nil
}

// IsValid проверяет, является ли роль допустимой.
func (r Role) IsValid() bool {
	_, ok := roleWeight[r]
	return ok
}

// Less сообщает, что уровень r ниже other.
func (r Role) Less(other Role) bool {
	return roleWeight[r] < roleWeight[other]
}

// AtLeastAdmin — политика "admin или выше".
// Отсутствующая роль → запрет; запрещается только RoleUser.
func AtLeastAdmin(role *Role) bool {
	if role == nil || !role.IsValid() {
		return false
	}
	return *role != RoleUser
}

// ExactlySuperAdmin — политика "строго super_admin".
func ExactlySuperAdmin(role *Role) bool {
	if role == nil {
		return false
	}
	return *role == RoleSuperAdmin
}

// CanAccess применяет политику tier к роли.
func CanAccess(role *Role, tier Tier) bool {
	switch tier {
	case TierAdmin:
		return AtLeastAdmin(role)
	case TierSuperAdmin:
		return ExactlySuperAdmin(role)
	default:
		return false
	}
}

// Ptr возвращает указатель на роль (удобно для CanAccess).
func Ptr(r Role) *Role {
	return &r
}
