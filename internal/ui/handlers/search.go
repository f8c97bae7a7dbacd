// search.go — каталог наборов данных, разблокировка, фильтры и экспорт.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bigkaa/sheetsconsole/internal/directory"
	"github.com/bigkaa/sheetsconsole/internal/export"
	"github.com/bigkaa/sheetsconsole/internal/filter"
	"github.com/bigkaa/sheetsconsole/internal/service"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/ui/pages"
)

// Параметры запроса поиска.
const (
	paramQuery  = "q"
	paramShow   = "show"
	paramSheet  = "sheet"
	filterParam = "f."
)

// Directories выдаёт каталог наборов сессии.
type Directories interface {
	For(sessionID string) *directory.Directory
}

// Exporter формирует документ экспорта.
type Exporter interface {
	Export(ctx context.Context, req service.ExportRequest) (export.Document, error)
}

// SearchHandler — страница поиска по наборам данных.
type SearchHandler struct {
	directories Directories
	engine      *filter.Engine
	exporter    Exporter
	logger      *slog.Logger
}

// NewSearchHandler создаёт SearchHandler.
func NewSearchHandler(directories Directories, engine *filter.Engine, exporter Exporter, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		directories: directories,
		engine:      engine,
		exporter:    exporter,
		logger:      logger.With(slog.String("component", "ui.search")),
	}
}

// HandleSearch — GET /search
// Загружает каталог; ?sheet= меняет выбранный набор.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	dir := h.directories.For(store.ID())

	var notice string
	if _, err := dir.List(r.Context(), store.Token()); err != nil {
		notice = i18n.T(r.Context(), "notice.datasets_failed")
	}

	if id := r.URL.Query().Get(paramSheet); id != "" {
		if err := dir.Select(id); err != nil {
			h.logger.Debug("Выбор отсутствующего набора", slog.String("dataset_id", id))
			notice = i18n.T(r.Context(), "notice.unknown_dataset")
		}
	}

	h.renderSearch(w, r, http.StatusOK, dir.Snapshot(), r.URL.Query(), notice, "")
}

// HandleResults — GET /search/results
// Применяет свободный поиск (q), фильтры колонок (f.{col}) и показ
// дополнительных фильтров (show) к разблокированному набору.
func (h *SearchHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	snap := h.directories.For(store.ID()).Snapshot()
	if snap.Selected == nil || !snap.Unlocked {
		http.Redirect(w, r, "/search", http.StatusFound)
		return
	}
	h.renderSearch(w, r, http.StatusOK, snap, r.URL.Query(), "", "")
}

// HandleUnlock — POST /search/unlock
func (h *SearchHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	store := currentSession(r)
	dir := h.directories.For(store.ID())
	ctx := r.Context()

	id := r.FormValue(paramSheet)
	password := r.FormValue("password")

	if len(dir.Snapshot().Groups) == 0 {
		if _, err := dir.List(ctx, store.Token()); err != nil {
			redirectWithFlash(w, r, "/search", uimiddleware.FlashError, i18n.T(ctx, "notice.datasets_failed"))
			return
		}
	}

	if password == "" {
		if err := dir.Select(id); err != nil {
			redirectWithFlash(w, r, "/search", uimiddleware.FlashError, i18n.T(ctx, "notice.unknown_dataset"))
			return
		}
		h.renderSearch(w, r, http.StatusUnprocessableEntity, dir.Snapshot(), nil, "", i18n.T(ctx, "notice.password_required"))
		return
	}

	err := dir.Unlock(ctx, store.Token(), id, password)
	switch {
	case err == nil:
		h.logger.Info("Набор данных разблокирован",
			slog.String("dataset_id", id),
			slog.String("uid", store.Profile().ID),
		)
		http.Redirect(w, r, "/search/results", http.StatusSeeOther)
	case errors.Is(err, directory.ErrIncorrectPassword):
		h.renderSearch(w, r, http.StatusUnprocessableEntity, dir.Snapshot(), nil, "", i18n.T(ctx, "notice.incorrect_password"))
	case errors.Is(err, directory.ErrStaleResponse):
		http.Redirect(w, r, "/search", http.StatusSeeOther)
	case errors.Is(err, directory.ErrUnknownDataset):
		redirectWithFlash(w, r, "/search", uimiddleware.FlashError, i18n.T(ctx, "notice.unknown_dataset"))
	default:
		h.logger.Error("Ошибка разблокировки набора",
			slog.String("dataset_id", id),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, "/search?"+paramSheet+"="+url.QueryEscape(id), uimiddleware.FlashError, i18n.T(ctx, "notice.dataset_failed"))
	}
}

// HandleExportCSV — GET /search/export.csv
func (h *SearchHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, export.FormatCSV)
}

// HandleExportPDF — GET /search/export.pdf
func (h *SearchHandler) HandleExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, export.FormatPDF)
}

// export выгружает отфильтрованные строки со всеми колонками набора.
func (h *SearchHandler) export(w http.ResponseWriter, r *http.Request, format export.Format) {
	store := currentSession(r)
	ctx := r.Context()
	snap := h.directories.For(store.ID()).Snapshot()

	req := service.ExportRequest{Format: format, User: store.Profile()}
	if snap.Selected != nil && snap.Unlocked {
		state := filterState(snap.Columns, r.URL.Query())
		req.Dataset = *snap.Selected
		req.Rows = state.Result(h.engine, snap.Rows)
		req.Columns = snap.Columns
	}

	doc, err := h.exporter.Export(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrNothingToExport) {
			redirectWithFlash(w, r, "/search", uimiddleware.FlashError, i18n.T(ctx, "notice.nothing_to_export"))
			return
		}
		h.logger.Error("Ошибка экспорта",
			slog.String("format", string(format)),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, "/search/results?"+r.URL.RawQuery, uimiddleware.FlashError, i18n.T(ctx, "notice.export_failed"))
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		h.logger.Debug("Ошибка отправки файла экспорта", slog.String("error", err.Error()))
	}
}

// filterState восстанавливает состояние поиска из параметров запроса.
func filterState(columns []string, q url.Values) *filter.State {
	state := filter.NewState(columns)
	state.FreeText = q.Get(paramQuery)

	shown := make(map[string]bool)
	for _, col := range q[paramShow] {
		if shown[col] {
			continue
		}
		shown[col] = true
		state.Toggle(col)
	}
	for _, col := range columns {
		// Пустое значение (f.col=) — выбор пустых ячеек, а не All.
		if vals, ok := q[filterParam+col]; ok && len(vals) > 0 {
			state.Set(col, vals[0])
		}
	}
	return state
}

// contentDisposition формирует заголовок вложения по RFC 6266: ASCII-имя
// для старых клиентов и filename* с исходным именем в UTF-8.
func contentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7E || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	encoded := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, encoded)
}

// stateQuery кодирует состояние поиска в параметры запроса.
func stateQuery(state *filter.State) url.Values {
	q := url.Values{}
	if state.FreeText != "" {
		q.Set(paramQuery, state.FreeText)
	}
	for _, col := range state.Columns() {
		if v := state.Selected(col); v != filter.All {
			q.Set(filterParam+col, v)
		}
	}
	for _, col := range state.Extra() {
		if state.IsVisible(col) {
			q.Add(paramShow, col)
		}
	}
	return q
}

func (h *SearchHandler) renderSearch(w http.ResponseWriter, r *http.Request, status int, snap directory.Snapshot, q url.Values, notice, unlockErr string) {
	b := base(w, r, "page.search")
	if notice != "" && b.Notice == nil {
		b.Notice = &pages.Notice{Kind: uimiddleware.FlashError, Message: notice}
	}

	data := pages.SearchData{
		Base:        b,
		Groups:      groupsView(snap),
		UnlockError: unlockErr,
	}
	if snap.Selected != nil {
		data.SelectedID = snap.Selected.ID
		data.SelectedName = snap.Selected.DisplayName()
	}

	if snap.Selected != nil && snap.Unlocked {
		state := filterState(snap.Columns, q)
		result := state.Result(h.engine, snap.Rows)

		data.Unlocked = true
		data.Query = state.FreeText
		data.Columns = snap.Columns
		data.Total = len(result)
		for _, col := range state.Visible {
			data.Filters = append(data.Filters, pages.ColumnFilter{
				Column:   col,
				Options:  h.engine.DistinctValues(snap.Rows, col),
				Selected: state.Selected(col),
			})
		}
		for _, col := range state.Extra() {
			visible := state.IsVisible(col)
			data.Extra = append(data.Extra, pages.ExtraColumn{Column: col, Visible: visible})
			if v := state.Selected(col); !visible && v != filter.All {
				data.HiddenFilters = append(data.HiddenFilters, pages.HiddenFilter{Name: filterParam + col, Value: v})
			}
		}
		data.Rows = make([][]string, 0, len(result))
		for _, row := range result {
			cells := make([]string, len(snap.Columns))
			for i, col := range snap.Columns {
				cells[i] = h.engine.Normalize(row, col)
			}
			data.Rows = append(data.Rows, cells)
		}
		data.ExportQuery = template.URL(stateQuery(state).Encode()) //nolint:gosec // значения экранированы url.Values
	}

	render(w, r, status, pages.Search(data), h.logger)
}

func groupsView(snap directory.Snapshot) []pages.DatasetGroup {
	out := make([]pages.DatasetGroup, 0, len(snap.Groups))
	for _, g := range snap.Groups {
		group := pages.DatasetGroup{Department: g.Department}
		for _, ds := range g.Datasets {
			group.Datasets = append(group.Datasets, pages.DatasetLink{
				ID:       ds.ID,
				Name:     ds.DisplayName(),
				Selected: snap.Selected != nil && snap.Selected.ID == ds.ID,
			})
		}
		out = append(out, group)
	}
	return out
}
