// management.go — управление аккаунтами пользователей (admin и выше).
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/service"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

const managementPath = "/settings/management"

// UserAPI — операции remote API над пользователями.
type UserAPI interface {
	ListUsers(ctx context.Context, token string) ([]model.User, error)
	CreateUser(ctx context.Context, token string, req apiclient.NewUser) error
	UpdateUser(ctx context.Context, token, uid string, req apiclient.UserUpdate) error
	DeleteUser(ctx context.Context, token, uid string) error
	ListDepartments(ctx context.Context, token string) ([]model.Department, error)
}

// ManagementHandler — страница управления аккаунтами.
type ManagementHandler struct {
	api       UserAPI
	validator *validation.Validator
	logger    *slog.Logger
}

// NewManagementHandler создаёт ManagementHandler.
func NewManagementHandler(api UserAPI, validator *validation.Validator, logger *slog.Logger) *ManagementHandler {
	return &ManagementHandler{
		api:       api,
		validator: validator,
		logger:    logger.With(slog.String("component", "ui.management")),
	}
}

// HandleManagement — GET /settings/management
func (h *ManagementHandler) HandleManagement(w http.ResponseWriter, r *http.Request) {
	h.renderManagement(w, r, http.StatusOK, "")
}

// HandleCreateUser — POST /settings/management/users
func (h *ManagementHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	creator := store.Profile()

	form := validation.NewUserForm{
		FirstName:  r.FormValue("first_name"),
		LastName:   r.FormValue("last_name"),
		Email:      r.FormValue("email"),
		Password:   r.FormValue("password"),
		Role:       r.FormValue("role"),
		Department: r.FormValue("department"),
	}
	if err := h.validator.CheckNewUser(&form, creator.Role); err != nil {
		h.renderManagement(w, r, http.StatusUnprocessableEntity, validation.MessageOf(err))
		return
	}
	role := rbac.Role(form.Role)
	if !assignable(creator.Role, role) {
		h.renderManagement(w, r, http.StatusUnprocessableEntity, i18n.T(ctx, "notice.invalid_role"))
		return
	}

	err := h.api.CreateUser(ctx, store.Token(), apiclient.NewUser{
		Email:      form.Email,
		Password:   form.Password,
		FirstName:  form.FirstName,
		LastName:   form.LastName,
		Role:       role,
		Department: form.Department,
	})
	if err != nil {
		h.logger.Error("Ошибка создания пользователя",
			slog.String("email", form.Email),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, managementPath, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.add_user_failed")))
		return
	}

	h.logger.Info("Пользователь создан",
		slog.String("email", form.Email),
		slog.String("role", form.Role),
		slog.String("department", form.Department),
	)
	redirectWithFlash(w, r, managementPath, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.user_added"))
}

// HandleUpdateUser — POST /settings/management/users/{uid}
// Изменять можно только видимых пользователей. Отдел меняет только super_admin.
func (h *ManagementHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	current := store.Profile()
	uid := chi.URLParam(r, "uid")

	target, err := h.visibleUser(ctx, store.Token(), *current, uid)
	if err != nil {
		h.failLookup(w, r, uid, err)
		return
	}
	if target == nil {
		http.Redirect(w, r, uimiddleware.NotFoundPath, http.StatusFound)
		return
	}

	form := validation.UserUpdateForm{
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Role:      r.FormValue("role"),
	}
	if err := h.validator.Check(form); err != nil {
		h.renderManagement(w, r, http.StatusUnprocessableEntity, validation.MessageOf(err))
		return
	}
	role := rbac.Role(form.Role)
	if !assignable(current.Role, role) {
		h.renderManagement(w, r, http.StatusUnprocessableEntity, i18n.T(ctx, "notice.invalid_role"))
		return
	}

	req := apiclient.UserUpdate{
		FirstName: changed(target.FirstName, form.FirstName),
		LastName:  changed(target.LastName, form.LastName),
		Email:     changed(target.Email, form.Email),
	}
	if role != target.Role {
		req.Role = &role
	}
	if current.Role == rbac.RoleSuperAdmin {
		if dept := strings.TrimSpace(r.FormValue("department")); dept != "" {
			req.Department = changed(target.Department, dept)
		}
	}
	if req == (apiclient.UserUpdate{}) {
		http.Redirect(w, r, managementPath, http.StatusSeeOther)
		return
	}

	if err := h.api.UpdateUser(ctx, store.Token(), uid, req); err != nil {
		h.logger.Error("Ошибка обновления пользователя",
			slog.String("uid", uid),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, managementPath, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.update_failed")))
		return
	}

	if uid == current.ID {
		patch := model.ProfilePatch{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			Role:       req.Role,
			Department: req.Department,
		}
		if err := store.UpdateProfile(ctx, patch); err != nil {
			h.logger.Warn("Ошибка сохранения профиля в сессии",
				slog.String("uid", uid),
				slog.String("error", err.Error()),
			)
		}
	}

	h.logger.Info("Пользователь обновлён", slog.String("uid", uid))
	redirectWithFlash(w, r, managementPath, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.user_updated"))
}

// HandleDeleteUser — POST /settings/management/users/{uid}/delete
func (h *ManagementHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	current := store.Profile()
	uid := chi.URLParam(r, "uid")

	if uid == current.ID {
		redirectWithFlash(w, r, managementPath, uimiddleware.FlashError, i18n.T(ctx, "notice.delete_self"))
		return
	}

	target, err := h.visibleUser(ctx, store.Token(), *current, uid)
	if err != nil {
		h.failLookup(w, r, uid, err)
		return
	}
	if target == nil {
		http.Redirect(w, r, uimiddleware.NotFoundPath, http.StatusFound)
		return
	}

	if err := h.api.DeleteUser(ctx, store.Token(), uid); err != nil {
		h.logger.Error("Ошибка удаления пользователя",
			slog.String("uid", uid),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, managementPath, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.delete_user_failed")))
		return
	}

	h.logger.Info("Пользователь удалён", slog.String("uid", uid), slog.String("email", target.Email))
	redirectWithFlash(w, r, managementPath, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.user_deleted"))
}

// visibleUser ищет uid среди пользователей, видимых current.
// nil без ошибки означает, что пользователь недоступен.
func (h *ManagementHandler) visibleUser(ctx context.Context, token string, current model.User, uid string) (*model.User, error) {
	all, err := h.api.ListUsers(ctx, token)
	if err != nil {
		return nil, err
	}
	for _, u := range service.VisibleUsers(all, current) {
		if u.ID == uid {
			return &u, nil
		}
	}
	return nil, nil
}

func (h *ManagementHandler) failLookup(w http.ResponseWriter, r *http.Request, uid string, err error) {
	h.logger.Error("Ошибка загрузки пользователей",
		slog.String("uid", uid),
		slog.String("error", err.Error()),
	)
	redirectWithFlash(w, r, managementPath, uimiddleware.FlashError,
		apiclient.MessageOf(err, i18n.T(r.Context(), "notice.users_failed")))
}

func (h *ManagementHandler) renderManagement(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	store := currentSession(r)
	ctx := r.Context()
	b := base(w, r, "page.management")
	current := *b.User

	data := pages.ManagementData{
		Base:         b,
		Roles:        assignableRoles(current.Role),
		IsSuperAdmin: current.Role == rbac.RoleSuperAdmin,
		Error:        formErr,
	}

	users, err := h.api.ListUsers(ctx, store.Token())
	if err != nil {
		h.logger.Error("Ошибка загрузки пользователей", slog.String("error", err.Error()))
		data.Notice = &pages.Notice{
			Kind:    uimiddleware.FlashError,
			Message: apiclient.MessageOf(err, i18n.T(ctx, "notice.users_failed")),
		}
	}
	for _, u := range service.VisibleUsers(users, current) {
		data.Users = append(data.Users, pages.UserRow{
			User:    u,
			Name:    u.DisplayName(),
			Current: u.ID == current.ID,
		})
	}

	if data.IsSuperAdmin {
		depts, err := h.api.ListDepartments(ctx, store.Token())
		if err != nil {
			h.logger.Error("Ошибка загрузки отделов", slog.String("error", err.Error()))
			data.Notice = &pages.Notice{Kind: uimiddleware.FlashError, Message: i18n.T(ctx, "notice.departments_failed")}
		}
		data.Departments = depts
	}

	render(w, r, status, pages.Management(data), h.logger)
}

// assignableRoles — роли, которые creator может назначать: не выше своей.
func assignableRoles(creator rbac.Role) []rbac.Role {
	var out []rbac.Role
	for _, r := range []rbac.Role{rbac.RoleUser, rbac.RoleAdmin, rbac.RoleSuperAdmin} {
		if assignable(creator, r) {
			out = append(out, r)
		}
	}
	return out
}

func assignable(creator, role rbac.Role) bool {
	return role.IsValid() && !creator.Less(role)
}
