// department.go — управление отделами (только super_admin).
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

const (
	departmentPath = "/settings/department"
	// createdAtLayout — формат даты создания отдела в таблице.
	createdAtLayout = "2006-01-02 15:04:05"
)

// DepartmentAPI — операции remote API над отделами.
type DepartmentAPI interface {
	ListDepartments(ctx context.Context, token string) ([]model.Department, error)
	CreateDepartment(ctx context.Context, token, name string) error
	UpdateDepartment(ctx context.Context, token, id, name string) error
	DeleteDepartment(ctx context.Context, token, id string) error
}

// DepartmentHandler — страница управления отделами.
type DepartmentHandler struct {
	api          DepartmentAPI
	validator    *validation.Validator
	notAvailable string
	logger       *slog.Logger
}

// NewDepartmentHandler создаёт DepartmentHandler. notAvailable подставляется
// вместо отсутствующей даты создания.
func NewDepartmentHandler(api DepartmentAPI, validator *validation.Validator, notAvailable string, logger *slog.Logger) *DepartmentHandler {
	return &DepartmentHandler{
		api:          api,
		validator:    validator,
		notAvailable: notAvailable,
		logger:       logger.With(slog.String("component", "ui.department")),
	}
}

// HandleDepartments — GET /settings/department
func (h *DepartmentHandler) HandleDepartments(w http.ResponseWriter, r *http.Request) {
	h.renderDepartments(w, r, http.StatusOK, "")
}

// HandleCreateDepartment — POST /settings/department
func (h *DepartmentHandler) HandleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()

	form := validation.DepartmentForm{Name: strings.TrimSpace(r.FormValue("department_name"))}
	if err := h.validator.Check(form); err != nil {
		h.renderDepartments(w, r, http.StatusUnprocessableEntity, validation.MessageOf(err))
		return
	}

	if err := h.api.CreateDepartment(ctx, store.Token(), form.Name); err != nil {
		h.logger.Error("Ошибка создания отдела",
			slog.String("name", form.Name),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, departmentPath, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.add_department_failed")))
		return
	}

	h.logger.Info("Отдел создан", slog.String("name", form.Name))
	redirectWithFlash(w, r, departmentPath, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.department_added"))
}

// HandleUpdateDepartment — POST /settings/department/{id}
func (h *DepartmentHandler) HandleUpdateDepartment(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	form := validation.DepartmentForm{Name: strings.TrimSpace(r.FormValue("department_name"))}
	if err := h.validator.Check(form); err != nil {
		h.renderDepartments(w, r, http.StatusUnprocessableEntity, validation.MessageOf(err))
		return
	}

	if err := h.api.UpdateDepartment(ctx, store.Token(), id, form.Name); err != nil {
		h.logger.Error("Ошибка переименования отдела",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, departmentPath, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.update_failed")))
		return
	}

	h.logger.Info("Отдел переименован", slog.String("id", id), slog.String("name", form.Name))
	redirectWithFlash(w, r, departmentPath, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.department_updated"))
}

// HandleDeleteDepartment — POST /settings/department/{id}/delete
func (h *DepartmentHandler) HandleDeleteDepartment(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.api.DeleteDepartment(ctx, store.Token(), id); err != nil {
		h.logger.Error("Ошибка удаления отдела",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, departmentPath, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.delete_department_failed")))
		return
	}

	h.logger.Info("Отдел удалён", slog.String("id", id))
	redirectWithFlash(w, r, departmentPath, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.department_deleted"))
}

func (h *DepartmentHandler) renderDepartments(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	store := currentSession(r)
	ctx := r.Context()
	data := pages.DepartmentData{
		Base:  base(w, r, "page.department"),
		Error: formErr,
	}

	depts, err := h.api.ListDepartments(ctx, store.Token())
	if err != nil {
		h.logger.Error("Ошибка загрузки отделов", slog.String("error", err.Error()))
		data.Notice = &pages.Notice{
			Kind:    uimiddleware.FlashError,
			Message: apiclient.MessageOf(err, i18n.T(ctx, "notice.departments_failed")),
		}
	}
	for _, d := range depts {
		data.Departments = append(data.Departments, pages.DepartmentRow{
			ID:        d.ID,
			Name:      d.Name,
			CreatedAt: d.CreatedAt.Display(createdAtLayout, h.notAvailable),
		})
	}

	render(w, r, status, pages.Department(data), h.logger)
}
