package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
)

// NewUser — запрос создания пользователя.
type NewUser struct {
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       rbac.Role `json:"role"`
	Department string    `json:"department"`
}

// UserUpdate — изменение пользователя администратором. nil-поля не передаются.
type UserUpdate struct {
	FirstName  *string    `json:"first_name,omitempty"`
	LastName   *string    `json:"last_name,omitempty"`
	Email      *string    `json:"email,omitempty"`
	Role       *rbac.Role `json:"role,omitempty"`
	Department *string    `json:"department,omitempty"`
}

// ListDepartments возвращает отделы.
// GET /api/super-admin/departments
func (c *Client) ListDepartments(ctx context.Context, token string) ([]model.Department, error) {
	var resp struct {
		Departments []model.Department `json:"departments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/super-admin/departments", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Departments == nil {
		return []model.Department{}, nil
	}
	return resp.Departments, nil
}

// CreateDepartment создаёт отдел.
// POST /api/super-admin/department
func (c *Client) CreateDepartment(ctx context.Context, token, name string) error {
	body := map[string]string{"department_name": name}
	return c.doJSON(ctx, http.MethodPost, "/api/super-admin/department", token, body, nil)
}

// UpdateDepartment переименовывает отдел.
// PATCH /api/super-admin/department/{id}
func (c *Client) UpdateDepartment(ctx context.Context, token, id, name string) error {
	body := map[string]string{"department_name": name}
	return c.doJSON(ctx, http.MethodPatch, "/api/super-admin/department/"+url.PathEscape(id), token, body, nil)
}

// DeleteDepartment удаляет отдел.
// DELETE /api/super-admin/department/{id}
func (c *Client) DeleteDepartment(ctx context.Context, token, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/super-admin/department/"+url.PathEscape(id), token, nil, nil)
}

// ListUsers возвращает всех пользователей.
// GET /api/super-admin/users
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/super-admin/users", token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Users == nil {
		return []model.User{}, nil
	}
	return resp.Users, nil
}

// CreateUser создаёт пользователя.
// POST /api/super-admin/user
func (c *Client) CreateUser(ctx context.Context, token string, req NewUser) error {
	return c.doJSON(ctx, http.MethodPost, "/api/super-admin/user", token, req, nil)
}

// UpdateUser изменяет пользователя.
// PATCH /api/super-admin/user/{uid}
func (c *Client) UpdateUser(ctx context.Context, token, uid string, req UserUpdate) error {
	return c.doJSON(ctx, http.MethodPatch, "/api/super-admin/user/"+url.PathEscape(uid), token, req, nil)
}

// DeleteUser удаляет пользователя.
// DELETE /api/super-admin/user/{uid}
func (c *Client) DeleteUser(ctx context.Context, token, uid string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/super-admin/user/"+url.PathEscape(uid), token, nil, nil)
}
