// language.go — переключение языка интерфейса.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
)

// HandleSetLanguage обрабатывает POST /lang.
// Устанавливает cookie "lang" на год и возвращает на предыдущую страницу.
func HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if !i18n.Supported(lang) {
		lang = i18n.DefaultLang
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})

	http.Redirect(w, r, backTo(r, "/"), http.StatusSeeOther)
}

// backTo возвращает путь из Referer того же хоста или fallback.
func backTo(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return fallback
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
