// auth.go — вход по email и паролю, сброс пароля, выход.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/identity"
	"github.com/bigkaa/sheetsconsole/internal/session"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

// IdentityProvider — вход и сброс пароля у провайдера идентификации.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*identity.TokenResponse, error)
	SendPasswordReset(ctx context.Context, email string) error
}

// ProfileFetcher обменивает ID-токен на профиль консоли.
type ProfileFetcher interface {
	Login(ctx context.Context, idToken string) (*model.User, error)
}

// SessionForgetter удаляет состояние, привязанное к сессии.
type SessionForgetter interface {
	Forget(sessionID string)
}

// SessionRenewer выдаёт сессии новый идентификатор.
type SessionRenewer interface {
	Renew(ctx context.Context, w http.ResponseWriter, r *http.Request, old *session.Store) (*session.Store, error)
}

// AuthHandler — обработчики входа и выхода.
type AuthHandler struct {
	idp       IdentityProvider
	profiles  ProfileFetcher
	sessions  SessionRenewer
	forgetter SessionForgetter
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthHandler создаёт AuthHandler. sessions и forgetter могут быть nil.
func NewAuthHandler(
	idp IdentityProvider,
	profiles ProfileFetcher,
	sessions SessionRenewer,
	forgetter SessionForgetter,
	validator *validation.Validator,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		idp:       idp,
		profiles:  profiles,
		sessions:  sessions,
		forgetter: forgetter,
		validator: validator,
		logger:    logger.With(slog.String("component", "ui.auth")),
	}
}

// HandleLoginPage — GET /
// Аутентифицированный пользователь сразу попадает на /home.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if store := session.FromContext(r.Context()); store != nil && store.Authenticated() {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	h.renderLogin(w, r, http.StatusOK, "", "")
}

// HandleLogin — POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	form := validation.LoginForm{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	if err := h.validator.Check(form); err != nil {
		h.renderLogin(w, r, http.StatusUnprocessableEntity, form.Email, validation.MessageOf(err))
		return
	}

	store := session.FromContext(r.Context())
	if store == nil {
		h.renderLogin(w, r, http.StatusServiceUnavailable, form.Email, identity.DefaultLoginMessage)
		return
	}

	ctx := r.Context()
	tokens, err := h.idp.SignIn(ctx, form.Email, form.Password)
	if err != nil {
		h.logger.Info("Неудачный вход",
			slog.String("email", form.Email),
			slog.String("code", identity.CodeOf(err)),
			slog.String("error", err.Error()),
		)
		h.renderLogin(w, r, http.StatusUnauthorized, form.Email, identity.LoginMessage(err))
		return
	}

	profile, err := h.profiles.Login(ctx, tokens.IDToken)
	if err != nil {
		h.logger.Warn("Remote API не вернул профиль",
			slog.String("email", form.Email),
			slog.String("error", err.Error()),
		)
		h.renderLogin(w, r, http.StatusBadGateway, form.Email, identity.DefaultLoginMessage)
		return
	}

	// Каталог прежней сессии (разблокированный набор) новому входу не достаётся
	h.forget(store.ID())
	if h.sessions != nil {
		renewed, err := h.sessions.Renew(ctx, w, r, store)
		if err != nil {
			h.logger.Error("Ошибка смены идентификатора сессии", slog.String("error", err.Error()))
			h.renderLogin(w, r, http.StatusInternalServerError, form.Email, identity.DefaultLoginMessage)
			return
		}
		store = renewed
	}

	if err := store.Login(ctx, tokens.IDToken, tokens.RefreshToken, *profile); err != nil {
		h.logger.Error("Ошибка сохранения сессии",
			slog.String("uid", profile.ID),
			slog.String("error", err.Error()),
		)
		h.renderLogin(w, r, http.StatusInternalServerError, form.Email, identity.DefaultLoginMessage)
		return
	}

	h.logger.Info("Пользователь вошёл",
		slog.String("uid", profile.ID),
		slog.String("role", string(profile.Role)),
	)
	redirectWithFlash(w, r, "/home", uimiddleware.FlashSuccess, i18n.T(ctx, "notice.login_success"))
}

// HandleForgotPassword — POST /forgot-password
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := validation.ResetForm{Email: strings.TrimSpace(r.FormValue("email"))}
	if err := h.validator.Check(form); err != nil {
		h.renderLogin(w, r, http.StatusUnprocessableEntity, form.Email, validation.MessageOf(err))
		return
	}

	if err := h.idp.SendPasswordReset(r.Context(), form.Email); err != nil {
		h.logger.Warn("Ошибка отправки письма сброса пароля",
			slog.String("email", form.Email),
			slog.String("error", err.Error()),
		)
		h.renderLogin(w, r, http.StatusBadGateway, form.Email, identity.LoginMessage(err))
		return
	}

	redirectWithFlash(w, r, "/", uimiddleware.FlashSuccess, i18n.T(r.Context(), "notice.reset_sent"))
}

// HandleLogout — POST /logout
// Сессия очищается при любом исходе выхода у провайдера.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	store := session.FromContext(r.Context())
	if store == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	uid := ""
	if p := store.Profile(); p != nil {
		uid = p.ID
	}
	if err := store.Logout(r.Context()); err != nil {
		h.logger.Warn("Ошибка выхода у провайдера, сессия очищена локально",
			slog.String("uid", uid),
			slog.String("error", err.Error()),
		)
	}
	h.forget(store.ID())

	h.logger.Info("Пользователь вышел", slog.String("uid", uid))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) forget(sessionID string) {
	if h.forgetter != nil {
		h.forgetter.Forget(sessionID)
	}
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, errMsg string) {
	data := pages.LoginData{
		Base:  base(w, r, "page.login"),
		Email: email,
		Error: errMsg,
	}
	render(w, r, status, pages.Login(data), h.logger)
}
