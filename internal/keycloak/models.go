// Пакет keycloak — клиент Keycloak Admin REST API.
// models.go — модели данных Keycloak.
package keycloak

import "fmt"

// User — пользователь realm.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Enabled  bool   `json:"enabled"`
}

// Realm — краткая информация о realm.
type Realm struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

// ActionUpdatePassword — required action для письма сброса пароля.
const ActionUpdatePassword = "UPDATE_PASSWORD"

// APIError — ответ Admin REST API со статусом вне ожидаемого.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Keycloak API вернул статус %d: %s", e.Status, e.Body)
}
