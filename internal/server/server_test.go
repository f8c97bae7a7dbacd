package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihandlers "github.com/bigkaa/sheetsconsole/internal/api/handlers"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/session"
	"github.com/bigkaa/sheetsconsole/internal/ui/handlers"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

var discard = slog.New(slog.DiscardHandler)

type fixedLoader struct {
	store *session.Store
}

func (f fixedLoader) Load(context.Context, http.ResponseWriter, *http.Request) (*session.Store, error) {
	return f.store, nil
}

// newTestRouter собирает маршрутизатор с сессией заданной роли.
// Пустая роль — анонимный пользователь.
func newTestRouter(t *testing.T, role rbac.Role) http.Handler {
	t.Helper()
	store := session.NewStore("sid", session.NewMemoryStorage(), nil, discard)
	if role != "" {
		require.NoError(t, store.Login(t.Context(), "T", "R", model.User{ID: "u1", Role: role, Department: "Finance"}))
	}

	v := validation.New()
	h := Handlers{
		Health:      apihandlers.NewHealthHandler(),
		Auth:        handlers.NewAuthHandler(nil, nil, nil, nil, v, discard),
		Pages:       handlers.NewPageHandler(discard),
		Account:     handlers.NewAccountHandler(nil, v, discard),
		Management:  handlers.NewManagementHandler(nil, v, discard),
		Departments: handlers.NewDepartmentHandler(nil, v, "N/A", discard),
	}
	auth := uimiddleware.NewAuth(nil, nil, nil, 0, discard)
	return NewRouter(discard, h, fixedLoader{store: store}, auth)
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		name         string
		role         rbac.Role
		method       string
		path         string
		wantStatus   int
		wantLocation string
	}{
		{name: "liveness", method: http.MethodGet, path: "/health/live", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "стили", method: http.MethodGet, path: "/static/css/app.css", wantStatus: http.StatusOK},
		{name: "страница входа", method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{name: "вход уже выполнен", role: rbac.RoleUser, method: http.MethodGet, path: "/", wantStatus: http.StatusFound, wantLocation: "/home"},
		{name: "home без сессии", method: http.MethodGet, path: "/home", wantStatus: http.StatusFound, wantLocation: "/"},
		{name: "home", role: rbac.RoleUser, method: http.MethodGet, path: "/home", wantStatus: http.StatusOK},
		{name: "account", role: rbac.RoleUser, method: http.MethodGet, path: "/settings/account", wantStatus: http.StatusOK},
		{name: "manage для user", role: rbac.RoleUser, method: http.MethodGet, path: "/manage", wantStatus: http.StatusFound, wantLocation: "/404"},
		{name: "management для user", role: rbac.RoleUser, method: http.MethodPost, path: "/settings/management/users/u2/delete", wantStatus: http.StatusFound, wantLocation: "/404"},
		{name: "department для admin", role: rbac.RoleAdmin, method: http.MethodGet, path: "/settings/department", wantStatus: http.StatusFound, wantLocation: "/404"},
		{name: "404", method: http.MethodGet, path: "/404", wantStatus: http.StatusNotFound},
		{name: "неизвестный маршрут", role: rbac.RoleAdmin, method: http.MethodGet, path: "/nowhere", wantStatus: http.StatusNotFound},
		{name: "GET на POST-маршрут", role: rbac.RoleUser, method: http.MethodGet, path: "/logout", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.role)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
		})
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	store := session.NewStore("sid", session.NewMemoryStorage(), nil, discard)
	require.NoError(t, store.Login(t.Context(), "T", "R", model.User{ID: "u1", Role: rbac.RoleSuperAdmin}))

	// nil API: обработчик паникует при обращении к remote API
	h := Handlers{
		Health:      apihandlers.NewHealthHandler(),
		Auth:        handlers.NewAuthHandler(nil, nil, nil, nil, validation.New(), discard),
		Pages:       handlers.NewPageHandler(discard),
		Departments: handlers.NewDepartmentHandler(nil, validation.New(), "N/A", discard),
	}
	router := NewRouter(discard, h, fixedLoader{store: store}, uimiddleware.NewAuth(nil, nil, nil, 0, discard))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/department", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_ServicePathsAnswerJSON(t *testing.T) {
	router := newTestRouter(t, "")

	tests := []struct {
		method, path string
		wantStatus   int
		wantCode     string
	}{
		{http.MethodGet, "/health/unknown", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/health/live", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

		assert.Equal(t, tt.wantStatus, rec.Code, tt.path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), tt.wantCode)
	}
}
