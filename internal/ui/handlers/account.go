// account.go — настройки собственного аккаунта.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

// AccountAPI — операции remote API над собственным аккаунтом.
type AccountAPI interface {
	UpdateAccount(ctx context.Context, token, uid string, req apiclient.AccountUpdate) (*model.User, error)
	ChangePassword(ctx context.Context, token, uid string, req apiclient.PasswordChange) error
}

// AccountHandler — страница настроек аккаунта.
// Роль user может менять только пароль.
type AccountHandler struct {
	api       AccountAPI
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAccountHandler создаёт AccountHandler.
func NewAccountHandler(api AccountAPI, validator *validation.Validator, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		api:       api,
		validator: validator,
		logger:    logger.With(slog.String("component", "ui.account")),
	}
}

// HandleAccount — GET /settings/account
func (h *AccountHandler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	h.renderAccount(w, r, http.StatusOK, "")
}

// HandleUpdateProfile — POST /settings/account
// Отправляются только изменённые поля; профиль сессии обновляется
// только после успешного ответа сервера.
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	profile := store.Profile()

	if profile.Role == rbac.RoleUser {
		http.Redirect(w, r, uimiddleware.NotFoundPath, http.StatusFound)
		return
	}

	form := validation.AccountForm{
		Username:  strings.TrimSpace(r.FormValue("username")),
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
		Email:     strings.TrimSpace(r.FormValue("email")),
	}
	if err := h.validator.Check(form); err != nil {
		h.renderAccount(w, r, http.StatusUnprocessableEntity, validation.MessageOf(err))
		return
	}

	req := apiclient.AccountUpdate{
		Username:  changed(profile.Username, form.Username),
		FirstName: changed(profile.FirstName, form.FirstName),
		LastName:  changed(profile.LastName, form.LastName),
		Email:     changed(profile.Email, form.Email),
	}
	if req == (apiclient.AccountUpdate{}) {
		http.Redirect(w, r, "/settings/account", http.StatusSeeOther)
		return
	}

	updated, err := h.api.UpdateAccount(ctx, store.Token(), profile.ID, req)
	if err != nil {
		h.logger.Error("Ошибка обновления профиля",
			slog.String("uid", profile.ID),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, "/settings/account", uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.update_failed")))
		return
	}

	patch := model.ProfilePatch{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	if updated != nil {
		patch = model.ProfilePatch{
			Username:  &updated.Username,
			FirstName: &updated.FirstName,
			LastName:  &updated.LastName,
			Email:     &updated.Email,
		}
	}
	if err := store.UpdateProfile(ctx, patch); err != nil {
		h.logger.Warn("Ошибка сохранения профиля в сессии",
			slog.String("uid", profile.ID),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("Профиль обновлён", slog.String("uid", profile.ID))
	redirectWithFlash(w, r, "/settings/account", uimiddleware.FlashSuccess, i18n.T(ctx, "notice.profile_updated"))
}

// HandleChangePassword — POST /settings/account/password
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	profile := store.Profile()

	form := validation.PasswordChangeForm{
		Current: r.FormValue("current_password"),
		New:     r.FormValue("new_password"),
		Confirm: r.FormValue("confirm_password"),
	}
	if err := h.validator.Check(form); err != nil {
		h.renderAccount(w, r, http.StatusUnprocessableEntity, validation.MessageOf(err))
		return
	}

	err := h.api.ChangePassword(ctx, store.Token(), profile.ID, apiclient.PasswordChange{
		CurrentPassword: form.Current,
		NewPassword:     form.New,
	})
	if err != nil {
		h.logger.Error("Ошибка смены пароля",
			slog.String("uid", profile.ID),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, "/settings/account", uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.update_failed")))
		return
	}

	h.logger.Info("Пароль изменён", slog.String("uid", profile.ID))
	redirectWithFlash(w, r, "/settings/account", uimiddleware.FlashSuccess, i18n.T(ctx, "notice.password_updated"))
}

func (h *AccountHandler) renderAccount(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	b := base(w, r, "page.account")
	data := pages.AccountData{
		Base:       b,
		Profile:    *b.User,
		Restricted: b.User.Role == rbac.RoleUser,
		Error:      formErr,
	}
	render(w, r, status, pages.Account(data), h.logger)
}

// changed возвращает указатель на новое значение, если оно отличается.
func changed(old, updated string) *string {
	if old == updated {
		return nil
	}
	return &updated
}
