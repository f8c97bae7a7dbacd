// Пакет middleware — HTTP middleware веб-консоли.
// auth.go — загрузка сессии, проверка аутентификации и обновление токена.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/sheetsconsole/internal/identity"
	"github.com/bigkaa/sheetsconsole/internal/session"
)

// LoginPath — страница входа, куда уходят неаутентифицированные запросы.
const LoginPath = "/"

// DefaultRefreshBefore — за сколько до истечения ID-токен обновляется.
const DefaultRefreshBefore = time.Minute

// SessionLoader открывает сессию запроса.
type SessionLoader interface {
	Load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*session.Store, error)
}

// TokenVerifier проверяет ID-токен.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Claims, error)
}

// TokenRefresher обновляет токены по refresh token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenResponse, error)
}

// SessionForgetter удаляет состояние, привязанное к сессии.
type SessionForgetter interface {
	Forget(sessionID string)
}

// Sessions помещает сессию запроса в контекст. Сбой хранилища не
// прерывает запрос: обработчики получают nil и считают пользователя
// неаутентифицированным.
func Sessions(loader SessionLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "ui.session"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, err := loader.Load(r.Context(), w, r)
			if err != nil {
				log.Warn("Не удалось загрузить сессию",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithStore(r.Context(), store)))
		})
	}
}

// Auth — проверка аутентификации для защищённых страниц.
type Auth struct {
	verifier      TokenVerifier
	refresher     TokenRefresher
	forgetter     SessionForgetter
	refreshBefore time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewAuth создаёт Auth. verifier может быть nil — тогда токен
// не проверяется и не обновляется. forgetter может быть nil.
func NewAuth(verifier TokenVerifier, refresher TokenRefresher, forgetter SessionForgetter, refreshBefore time.Duration, logger *slog.Logger) *Auth {
	if refreshBefore <= 0 {
		refreshBefore = DefaultRefreshBefore
	}
	return &Auth{
		verifier:      verifier,
		refresher:     refresher,
		forgetter:     forgetter,
		refreshBefore: refreshBefore,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "ui.auth")),
	}
}

// RequireAuth перенаправляет на страницу входа запросы без сессии.
// Истекающий токен обновляется; при неудаче сессия очищается.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := session.FromContext(r.Context())
		if store == nil || !store.Authenticated() {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		if a.verifier != nil {
			if err := a.ensureFresh(r.Context(), store); err != nil {
				a.logger.Info("Сессия недействительна, redirect на вход",
					slog.String("uid", store.Profile().ID),
					slog.String("error", err.Error()),
				)
				if lerr := store.Logout(r.Context()); lerr != nil {
					a.logger.Debug("Ошибка выхода при очистке сессии", slog.String("error", lerr.Error()))
				}
				if a.forgetter != nil {
					a.forgetter.Forget(store.ID())
				}
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ensureFresh проверяет токен и обновляет его, если он истёк или
// истекает в ближайшее время.
func (a *Auth) ensureFresh(ctx context.Context, store *session.Store) error {
	claims, err := a.verifier.Verify(ctx, store.Token())
	if err == nil && !claims.ExpiresWithin(a.refreshBefore, a.now()) {
		return nil
	}

	refreshToken := store.RefreshToken()
	if a.refresher == nil || refreshToken == "" {
		if err != nil {
			return err
		}
		return nil
	}

	tokens, rerr := a.refresher.Refresh(ctx, refreshToken)
	if rerr != nil {
		if err == nil {
			// токен ещё действителен, попробуем в следующий раз
			a.logger.Debug("Не удалось заранее обновить токен", slog.String("error", rerr.Error()))
			return nil
		}
		return rerr
	}

	token := tokens.IDToken
	if token == "" {
		token = tokens.AccessToken
	}
	if err := store.SetToken(ctx, token, tokens.RefreshToken); err != nil {
		return err
	}
	a.logger.Debug("Токен обновлён", slog.String("uid", store.Profile().ID))
	return nil
}
