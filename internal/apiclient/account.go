package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
)

// AccountUpdate — изменение собственного профиля. nil-поля не передаются.
type AccountUpdate struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// PasswordChange — смена собственного пароля.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login обменивает токен идентификации на профиль пользователя консоли.
// POST /api/auth/login
func (c *Client) Login(ctx context.Context, idToken string) (*model.User, error) {
	var resp struct {
		User *model.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", idToken, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "ответ без профиля пользователя"}
	}
	return resp.User, nil
}

// UpdateAccount изменяет профиль и возвращает обновлённый профиль,
// если сервер его вернул.
// PATCH /api/account/user/{uid}
func (c *Client) UpdateAccount(ctx context.Context, token, uid string, req AccountUpdate) (*model.User, error) {
	var resp struct {
		UpdatedUser *model.User `json:"updatedUser"`
	}
	if err := c.doJSON(ctx, http.MethodPatch, "/api/account/user/"+url.PathEscape(uid), token, req, &resp); err != nil {
		return nil, err
	}
	return resp.UpdatedUser, nil
}

// ChangePassword меняет пароль.
// PATCH /api/account/user/{uid}/password
func (c *Client) ChangePassword(ctx context.Context, token, uid string, req PasswordChange) error {
	return c.doJSON(ctx, http.MethodPatch, "/api/account/user/"+url.PathEscape(uid)+"/password", token, req, nil)
}
