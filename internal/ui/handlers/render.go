// Пакет handlers — HTTP-обработчики веб-консоли.
// Файл render.go — общие функции отрисовки страниц и redirect с уведомлением.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/bigkaa/sheetsconsole/internal/session"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
)

// base собирает общие данные layout: язык, пользователь, меню и
// уведомление, оставленное предыдущим redirect.
func base(w http.ResponseWriter, r *http.Request, title string) pages.Base {
	b := pages.Base{
		Lang:  i18n.LangFromContext(r.Context()),
		Title: title,
	}
	if store := session.FromContext(r.Context()); store != nil && store.Authenticated() {
		b.User = store.Profile()
		b.Nav = pages.Navigation(b.User.RolePtr(), r.URL.Path)
	}
	if f := uimiddleware.PopFlash(w, r); f != nil {
		b.Notice = &pages.Notice{Kind: f.Kind, Message: f.Message}
	}
	return b
}

// render отрисовывает страницу.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// redirectWithFlash перенаправляет с уведомлением для следующей страницы.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	uimiddleware.SetFlash(w, kind, message)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// currentSession возвращает сессию запроса. После RequireAuth всегда не nil.
func currentSession(r *http.Request) *session.Store {
	return session.FromContext(r.Context())
}
