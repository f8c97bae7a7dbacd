// flash.go — одноразовые уведомления между redirect и следующей страницей.
package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// FlashCookieName — cookie с уведомлением.
const FlashCookieName = "sc_flash"

// Виды уведомлений.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash — уведомление для следующей отрисованной страницы.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SetFlash сохраняет уведомление до следующего запроса.
func SetFlash(w http.ResponseWriter, kind, message string) {
	raw, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash возвращает уведомление запроса и удаляет cookie.
// Повреждённое значение молча отбрасывается.
func PopFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(FlashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}
