// Пакет identity — провайдер идентификации (Keycloak realm): вход по паролю,
// обновление и завершение сессии, письмо сброса пароля, проверка ID token.
package identity

import (
	"errors"
	"fmt"
)

// Коды ошибок аутентификации.
const (
	CodeUserNotFound         = "auth/user-not-found"
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeInternal             = "auth/internal-error"
)

// DefaultLoginMessage — сообщение для кодов вне таблицы.
const DefaultLoginMessage = "Login failed. Please try again."

// loginMessages — сообщения пользователю по коду ошибки входа.
var loginMessages = map[string]string{
	CodeUserNotFound:         "Invalid email or password.",
	CodeInvalidCredential:    "Invalid email or password.",
	CodeInvalidEmail:         "Please enter a valid email address.",
	CodeTooManyRequests:      "Too many attempts. Please try again later.",
	CodeNetworkRequestFailed: "Network error. Check your connection.",
}

// AuthError — ошибка провайдера идентификации с кодом.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// CodeOf возвращает код ошибки аутентификации или пустую строку.
func CodeOf(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

// LoginMessage возвращает сообщение пользователю для ошибки входа.
func LoginMessage(err error) string {
	if msg, ok := loginMessages[CodeOf(err)]; ok {
		return msg
	}
	return DefaultLoginMessage
}
