// manage.go — создание наборов данных, добавление строк и загрузка CSV.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

// maxUploadSize — предельный размер загружаемого CSV.
const maxUploadSize = 10 << 20

// DatasetAPI — операции remote API над наборами данных.
type DatasetAPI interface {
	ListDatasets(ctx context.Context, token string) ([]model.Dataset, error)
	CreateDataset(ctx context.Context, token string, req apiclient.NewDataset) error
	AppendRows(ctx context.Context, token string, req apiclient.AppendRows) error
	UploadCSV(ctx context.Context, token string, req apiclient.UploadCSV) error
	ListDepartments(ctx context.Context, token string) ([]model.Department, error)
}

// RowsInvalidator сбрасывает закэшированные строки набора.
type RowsInvalidator interface {
	Invalidate(sheetID string)
}

// ManageHandler — страница управления наборами данных (admin и выше).
type ManageHandler struct {
	api         DatasetAPI
	directories Directories
	cache       RowsInvalidator
	validator   *validation.Validator
	placeholder string
	logger      *slog.Logger
}

// NewManageHandler создаёт ManageHandler. cache может быть nil.
func NewManageHandler(
	api DatasetAPI,
	directories Directories,
	cache RowsInvalidator,
	validator *validation.Validator,
	placeholder string,
	logger *slog.Logger,
) *ManageHandler {
	return &ManageHandler{
		api:         api,
		directories: directories,
		cache:       cache,
		validator:   validator,
		placeholder: placeholder,
		logger:      logger.With(slog.String("component", "ui.manage")),
	}
}

// HandleManage — GET /manage
func (h *ManageHandler) HandleManage(w http.ResponseWriter, r *http.Request) {
	h.renderManage(w, r, http.StatusOK, r.URL.Query().Get(paramSheet), "")
}

// HandleCreateDataset — POST /manage/databases
func (h *ManageHandler) HandleCreateDataset(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()

	form := validation.DatasetForm{
		Name:       strings.TrimSpace(r.FormValue("database_name")),
		Department: strings.TrimSpace(r.FormValue("department_name")),
		Password:   r.FormValue("database_password"),
		CreatedBy:  createdBy(store.Profile()),
		Columns:    splitColumns(r.FormValue("columns")),
	}
	if err := h.validator.Check(form); err != nil {
		h.renderManage(w, r, http.StatusUnprocessableEntity, "", validation.MessageOf(err))
		return
	}

	err := h.api.CreateDataset(ctx, store.Token(), apiclient.NewDataset{
		Name:       form.Name,
		Department: form.Department,
		CreatedBy:  form.CreatedBy,
		Password:   form.Password,
		Columns:    form.Columns,
	})
	if err != nil {
		h.logger.Error("Ошибка создания набора данных",
			slog.String("name", form.Name),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, "/manage", uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.create_dataset_failed")))
		return
	}

	h.logger.Info("Набор данных создан",
		slog.String("name", form.Name),
		slog.String("department", form.Department),
	)
	redirectWithFlash(w, r, "/manage", uimiddleware.FlashSuccess, i18n.T(ctx, "notice.dataset_created"))
}

// HandleAppendRows — POST /manage/append-rows
// Значения приходят в порядке колонок набора.
func (h *ManageHandler) HandleAppendRows(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "/manage", uimiddleware.FlashError, i18n.T(ctx, "notice.bad_form"))
		return
	}

	form := validation.AppendRowForm{
		SheetID: r.PostForm.Get(paramSheet),
		Values:  trimAll(r.PostForm["value"]),
	}
	back := manageURL(form.SheetID)
	if err := h.validator.Check(form); err != nil {
		h.renderManage(w, r, http.StatusUnprocessableEntity, form.SheetID, validation.MessageOf(err))
		return
	}

	ds, ok := h.findDataset(ctx, store.Token(), form.SheetID)
	if !ok {
		redirectWithFlash(w, r, "/manage", uimiddleware.FlashError, i18n.T(ctx, "notice.unknown_dataset"))
		return
	}

	err := h.api.AppendRows(ctx, store.Token(), apiclient.AppendRows{
		SheetID: ds.SheetID,
		TabName: ds.Name,
		Rows:    [][]string{form.Values},
	})
	if err != nil {
		h.logger.Error("Ошибка добавления строки",
			slog.String("dataset_id", ds.ID),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, back, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.append_failed")))
		return
	}

	h.invalidate(ds.SheetID)
	redirectWithFlash(w, r, back, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.row_added"))
}

// HandleUploadCSV — POST /manage/upload-csv
func (h *ManageHandler) HandleUploadCSV(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		redirectWithFlash(w, r, "/manage", uimiddleware.FlashError, i18n.T(ctx, "notice.upload_failed"))
		return
	}

	id := r.FormValue(paramSheet)
	back := manageURL(id)

	file, header, err := r.FormFile("file")
	if err != nil {
		redirectWithFlash(w, r, back, uimiddleware.FlashError, i18n.T(ctx, "notice.no_file"))
		return
	}
	defer file.Close()

	ds, ok := h.findDataset(ctx, store.Token(), id)
	if !ok {
		redirectWithFlash(w, r, "/manage", uimiddleware.FlashError, i18n.T(ctx, "notice.unknown_dataset"))
		return
	}

	err = h.api.UploadCSV(ctx, store.Token(), apiclient.UploadCSV{
		SheetID:      ds.SheetID,
		DatabaseName: ds.Name,
		FileName:     header.Filename,
		Content:      file,
	})
	if err != nil {
		h.logger.Error("Ошибка загрузки CSV",
			slog.String("dataset_id", ds.ID),
			slog.String("file", header.Filename),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, back, uimiddleware.FlashError,
			apiclient.MessageOf(err, i18n.T(ctx, "notice.upload_failed")))
		return
	}

	h.invalidate(ds.SheetID)
	h.logger.Info("CSV загружен",
		slog.String("dataset_id", ds.ID),
		slog.Int64("size", header.Size),
	)
	redirectWithFlash(w, r, back, uimiddleware.FlashSuccess, i18n.T(ctx, "notice.csv_uploaded"))
}

func (h *ManageHandler) renderManage(w http.ResponseWriter, r *http.Request, status int, selectedID, formErr string) {
	store := currentSession(r)
	ctx := r.Context()
	b := base(w, r, "page.manage")

	data := pages.ManageData{
		CreatedBy:  createdBy(store.Profile()),
		SelectedID: selectedID,
		Error:      formErr,
	}

	datasets, err := h.api.ListDatasets(ctx, store.Token())
	if err != nil {
		h.logger.Error("Ошибка загрузки наборов данных", slog.String("error", err.Error()))
		b.Notice = &pages.Notice{Kind: uimiddleware.FlashError, Message: i18n.T(ctx, "notice.datasets_failed")}
	}
	for _, ds := range datasets {
		if ds.Name != h.placeholder {
			data.Datasets = append(data.Datasets, ds)
		}
	}

	departments, err := h.api.ListDepartments(ctx, store.Token())
	if err != nil {
		h.logger.Error("Ошибка загрузки отделов", slog.String("error", err.Error()))
		b.Notice = &pages.Notice{Kind: uimiddleware.FlashError, Message: i18n.T(ctx, "notice.departments_failed")}
	}
	data.Departments = departments

	if selectedID != "" {
		for _, ds := range data.Datasets {
			if ds.ID == selectedID {
				data.SelectedName = ds.DisplayName()
				data.Columns = h.columnsOf(store.ID(), ds)
				break
			}
		}
		if data.SelectedName == "" {
			data.SelectedID = ""
		}
	}

	data.Base = b
	render(w, r, status, pages.Manage(data), h.logger)
}

// columnsOf возвращает колонки набора: из каталога API или из набора,
// разблокированного в поиске этой сессии.
func (h *ManageHandler) columnsOf(sessionID string, ds model.Dataset) []string {
	if len(ds.Columns) > 0 {
		return ds.Columns
	}
	if h.directories == nil {
		return nil
	}
	snap := h.directories.For(sessionID).Snapshot()
	if snap.Selected != nil && snap.Selected.ID == ds.ID && snap.Unlocked {
		return snap.Columns
	}
	return nil
}

func (h *ManageHandler) findDataset(ctx context.Context, token, id string) (model.Dataset, bool) {
	if id == "" {
		return model.Dataset{}, false
	}
	datasets, err := h.api.ListDatasets(ctx, token)
	if err != nil {
		h.logger.Error("Ошибка загрузки наборов данных", slog.String("error", err.Error()))
		return model.Dataset{}, false
	}
	for _, ds := range datasets {
		if ds.ID == id {
			return ds, true
		}
	}
	return model.Dataset{}, false
}

func (h *ManageHandler) invalidate(sheetID string) {
	if h.cache != nil {
		h.cache.Invalidate(sheetID)
	}
}

// createdBy — автор набора: имя и фамилия пользователя.
func createdBy(u *model.User) string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// splitColumns разбирает список колонок: по одной на строку или через запятую.
func splitColumns(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func manageURL(id string) string {
	return "/manage?" + paramSheet + "=" + url.QueryEscape(id)
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
