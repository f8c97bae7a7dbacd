// home.go — стартовая страница и страница 404.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
)

// PageHandler — страницы без собственных зависимостей.
type PageHandler struct {
	logger *slog.Logger
}

// NewPageHandler создаёт PageHandler.
func NewPageHandler(logger *slog.Logger) *PageHandler {
	return &PageHandler{logger: logger.With(slog.String("component", "ui.pages"))}
}

// HandleHome — GET /home
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	b := base(w, r, "page.home")
	data := pages.HomeData{
		Base:      b,
		CanManage: rbac.AtLeastAdmin(b.User.RolePtr()),
	}
	render(w, r, http.StatusOK, pages.Home(data), h.logger)
}

// HandleNotFound — GET /404 и все неизвестные маршруты.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	data := pages.NotFoundData{Base: base(w, r, "page.notfound")}
	render(w, r, http.StatusNotFound, pages.NotFound(data), h.logger)
}
