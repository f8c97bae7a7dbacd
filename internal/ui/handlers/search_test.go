package handlers

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/directory"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/filter"
	"github.com/bigkaa/sheetsconsole/internal/identity"
	"github.com/bigkaa/sheetsconsole/internal/service"
	"github.com/bigkaa/sheetsconsole/internal/session"
	uimiddleware "github.com/bigkaa/sheetsconsole/internal/ui/middleware"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

// fakeDatasets — управляемая реализация directory.Source и DatasetAPI.
type fakeDatasets struct {
	datasets    []model.Dataset
	passwords   map[string]string
	rows        map[string][]model.Row
	listErr     error
	appended    []apiclient.AppendRows
	uploaded    map[string]string
	created     []apiclient.NewDataset
	departments []model.Department
}

func (f *fakeDatasets) ListDatasets(context.Context, string) ([]model.Dataset, error) {
	return f.datasets, f.listErr
}

func (f *fakeDatasets) ConfirmPassword(_ context.Context, _, sheetID, password string) error {
	if f.passwords[sheetID] != password {
		return &apiclient.APIError{Status: http.StatusUnauthorized, Message: "Incorrect password"}
	}
	return nil
}

func (f *fakeDatasets) Rows(_ context.Context, _, sheetID string) ([]model.Row, error) {
	return f.rows[sheetID], nil
}

func (f *fakeDatasets) CreateDataset(_ context.Context, _ string, req apiclient.NewDataset) error {
	f.created = append(f.created, req)
	return nil
}

func (f *fakeDatasets) AppendRows(_ context.Context, _ string, req apiclient.AppendRows) error {
	f.appended = append(f.appended, req)
	return nil
}

func (f *fakeDatasets) UploadCSV(_ context.Context, _ string, req apiclient.UploadCSV) error {
	body, err := io.ReadAll(req.Content)
	if err != nil {
		return err
	}
	if f.uploaded == nil {
		f.uploaded = make(map[string]string)
	}
	f.uploaded[req.SheetID] = string(body)
	return nil
}

func (f *fakeDatasets) ListDepartments(context.Context, string) ([]model.Department, error) {
	return f.departments, nil
}

func staffSource() *fakeDatasets {
	return &fakeDatasets{
		datasets: []model.Dataset{
			{ID: "1", SheetID: "s1", Name: "Staff.csv", Department: "HR"},
			{ID: "2", SheetID: "s2", Name: "Sheet1", Department: "HR"},
			{ID: "3", SheetID: "s3", Name: "Budget", Department: "Finance", Columns: []string{"Item", "Amount"}},
		},
		passwords: map[string]string{"s1": "secret"},
		rows: map[string][]model.Row{
			"s1": {
				model.NewRow("Name", "Alice", "City", "Paris", "Role", "Dev"),
				model.NewRow("Name", "Bob", "City", "Berlin", "Role", "Ops"),
				model.NewRow("Name", "Carol", "City", "Paris", "Role", "Ops"),
			},
		},
	}
}

func newSearchHandler(src *fakeDatasets) (*SearchHandler, *directory.Registry) {
	registry := directory.NewRegistry(src, directory.NewRowsCache(16, time.Minute), "Sheet1", 16, time.Hour, discard)
	h := NewSearchHandler(registry, filter.New("N/A"), service.NewExportService(nil, nil, discard), discard)
	return h, registry
}

func TestHandleSearch_GroupsWithoutPlaceholder(t *testing.T) {
	h, _ := newSearchHandler(staffSource())
	rec := httptest.NewRecorder()
	h.HandleSearch(rec, newRequest(http.MethodGet, "/search", nil, loggedIn(t, plainUser())))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, ">Staff<")
	assert.Contains(t, body, ">Budget<")
	assert.NotContains(t, body, ">Sheet1<")
}

func TestHandleUnlock(t *testing.T) {
	t.Run("пустой пароль", func(t *testing.T) {
		h, _ := newSearchHandler(staffSource())
		rec := httptest.NewRecorder()
		h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}}, loggedIn(t, plainUser())))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("неверный пароль", func(t *testing.T) {
		h, registry := newSearchHandler(staffSource())
		store := loggedIn(t, plainUser())
		rec := httptest.NewRecorder()
		h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}, "password": {"nope"}}, store))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.False(t, registry.For(store.ID()).Snapshot().Unlocked)
	})

	t.Run("неизвестный набор", func(t *testing.T) {
		h, _ := newSearchHandler(staffSource())
		rec := httptest.NewRecorder()
		h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"404"}, "password": {"x"}}, loggedIn(t, plainUser())))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		f := flashOf(t, rec)
		require.NotNil(t, f)
		assert.Equal(t, uimiddleware.FlashError, f.Kind)
	})

	t.Run("верный пароль", func(t *testing.T) {
		h, registry := newSearchHandler(staffSource())
		store := loggedIn(t, plainUser())
		rec := httptest.NewRecorder()
		h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}, "password": {"secret"}}, store))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/search/results", rec.Header().Get("Location"))
		snap := registry.For(store.ID()).Snapshot()
		assert.True(t, snap.Unlocked)
		assert.Len(t, snap.Rows, 3)
	})
}

func TestLoginDoesNotInheritUnlockedDataset(t *testing.T) {
	bob := model.User{ID: "b2", FirstName: "Bob", LastName: "Next", Email: "bob@example.com", Role: rbac.RoleUser, Department: "HR"}
	form := url.Values{"email": {"bob@example.com"}, "password": {"ok"}}
	idp := &fakeIdP{tokens: &identity.TokenResponse{IDToken: "id-b2", RefreshToken: "r-b2"}}

	unlockedBy := func(t *testing.T, h *SearchHandler) *session.Store {
		t.Helper()
		store := loggedIn(t, plainUser())
		rec := httptest.NewRecorder()
		h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}, "password": {"secret"}}, store))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.NoError(t, store.Logout(t.Context()))
		return store
	}

	t.Run("тот же идентификатор сессии", func(t *testing.T) {
		h, registry := newSearchHandler(staffSource())
		store := unlockedBy(t, h)

		auth := NewAuthHandler(idp, &fakeProfiles{user: &bob}, nil, registry, validation.New(), discard)
		rec := httptest.NewRecorder()
		auth.HandleLogin(rec, newRequest(http.MethodPost, "/login", form, store))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "b2", store.Profile().ID)

		rec = httptest.NewRecorder()
		h.HandleResults(rec, newRequest(http.MethodGet, "/search/results", nil, store))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), "Alice")
		assert.False(t, registry.For(store.ID()).Snapshot().Unlocked)
	})

	t.Run("новый идентификатор сессии", func(t *testing.T) {
		h, registry := newSearchHandler(staffSource())
		store := unlockedBy(t, h)

		codec, err := session.NewCodec("secret")
		require.NoError(t, err)
		manager := session.NewManager(session.CookieBackend{Codec: codec, TTL: time.Hour}, nil, false, time.Hour, discard)

		auth := NewAuthHandler(idp, &fakeProfiles{user: &bob}, manager, registry, validation.New(), discard)
		rec := httptest.NewRecorder()
		auth.HandleLogin(rec, newRequest(http.MethodPost, "/login", form, store))
		require.Equal(t, http.StatusSeeOther, rec.Code)

		var sid string
		for _, c := range rec.Result().Cookies() {
			if c.Name == session.IDCookieName {
				sid = c.Value
			}
		}
		require.NotEmpty(t, sid)
		assert.NotEqual(t, store.ID(), sid)
		assert.False(t, registry.For(sid).Snapshot().Unlocked)
		assert.False(t, registry.For(store.ID()).Snapshot().Unlocked)
	})
}

func TestHandleResults(t *testing.T) {
	h, _ := newSearchHandler(staffSource())
	store := loggedIn(t, plainUser())

	rec := httptest.NewRecorder()
	h.HandleResults(rec, newRequest(http.MethodGet, "/search/results", nil, store))
	assert.Equal(t, http.StatusFound, rec.Code, "без разблокировки — обратно в каталог")

	rec = httptest.NewRecorder()
	h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}, "password": {"secret"}}, store))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleResults(rec, newRequest(http.MethodGet, "/search/results?f.City=Paris&f.Role=Ops", nil, store))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Carol")
	assert.NotContains(t, body, "<td>Alice</td>")
	assert.NotContains(t, body, "<td>Bob</td>")
}

func TestHandleResults_EmptyFilterValueMatchesBlankCells(t *testing.T) {
	src := staffSource()
	src.rows["s1"] = []model.Row{
		model.NewRow("Name", "Alice", "City", ""),
		model.NewRow("Name", "Bob", "City", "Berlin"),
	}
	h, _ := newSearchHandler(src)
	store := loggedIn(t, plainUser())

	rec := httptest.NewRecorder()
	h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}, "password": {"secret"}}, store))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleResults(rec, newRequest(http.MethodGet, "/search/results?f.City=", nil, store))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>Alice</td>")
	assert.NotContains(t, body, "<td>Bob</td>")

	rec = httptest.NewRecorder()
	h.HandleResults(rec, newRequest(http.MethodGet, "/search/results?f.City=All", nil, store))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td>Bob</td>")
}

func TestHandleExport(t *testing.T) {
	h, _ := newSearchHandler(staffSource())
	store := loggedIn(t, plainUser())

	rec := httptest.NewRecorder()
	h.HandleExportCSV(rec, newRequest(http.MethodGet, "/search/export.csv", nil, store))
	assert.Equal(t, http.StatusSeeOther, rec.Code, "без набора экспортировать нечего")

	rec = httptest.NewRecorder()
	h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}, "password": {"secret"}}, store))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleExportCSV(rec, newRequest(http.MethodGet, "/search/export.csv?q=ali", nil, store))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Staff_")
	body := rec.Body.String()
	assert.Contains(t, body, "Alice")
	assert.NotContains(t, body, "Bob")

	rec = httptest.NewRecorder()
	h.HandleExportPDF(rec, newRequest(http.MethodGet, "/search/export.pdf", nil, store))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{
			name: "ascii",
			file: "Staff_2024-03-05_07-08-09.csv",
			want: `attachment; filename="Staff_2024-03-05_07-08-09.csv"; filename*=UTF-8''Staff_2024-03-05_07-08-09.csv`,
		},
		{
			name: "cyrillic with space",
			file: "Отдел кадров.pdf",
			want: `attachment; filename="_____ ______.pdf"; filename*=UTF-8''%D0%9E%D1%82%D0%B4%D0%B5%D0%BB%20%D0%BA%D0%B0%D0%B4%D1%80%D0%BE%D0%B2.pdf`,
		},
		{
			name: "quotes and separators",
			file: `a"b;c.csv`,
			want: `attachment; filename="a_b;c.csv"; filename*=UTF-8''a%22b%3Bc.csv`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentDisposition(tt.file))
		})
	}
}

func TestHandleExport_NonASCIIName(t *testing.T) {
	src := staffSource()
	src.datasets[0].Name = "Сотрудники.csv"
	h, _ := newSearchHandler(src)
	store := loggedIn(t, plainUser())

	rec := httptest.NewRecorder()
	h.HandleUnlock(rec, newRequest(http.MethodPost, "/search/unlock", url.Values{"sheet": {"1"}, "password": {"secret"}}, store))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleExportCSV(rec, newRequest(http.MethodGet, "/search/export.csv", nil, store))
	require.Equal(t, http.StatusOK, rec.Code)

	disposition := rec.Header().Get("Content-Disposition")
	_, params, err := mime.ParseMediaType(disposition)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(params["filename"], "Сотрудники_"), "filename* декодируется в исходное имя")
	assert.True(t, strings.HasSuffix(params["filename"], ".csv"))
	assert.Contains(t, disposition, `filename="__________`)
}

func TestFilterStateRoundTrip(t *testing.T) {
	columns := []string{"Name", "City", "Role", "Team"}
	q := url.Values{"q": {"x"}, "f.City": {"Paris"}, "show": {"Team"}}
	state := filterState(columns, q)

	assert.Equal(t, "x", state.FreeText)
	assert.Equal(t, "Paris", state.Selected("City"))
	assert.Equal(t, q.Encode(), stateQuery(state).Encode())

	blank := filterState(columns, url.Values{"f.City": {""}})
	assert.Equal(t, "", blank.Selected("City"))
	assert.Equal(t, filter.All, blank.Selected("Role"), "отсутствующий параметр — All")
	assert.Equal(t, "f.City=", stateQuery(blank).Encode())
}

// --- manage ---

func newManageHandler(src *fakeDatasets) (*ManageHandler, *directory.Registry) {
	registry := directory.NewRegistry(src, directory.NewRowsCache(16, time.Minute), "Sheet1", 16, time.Hour, discard)
	return NewManageHandler(src, registry, registry.Cache(), validation.New(), "Sheet1", discard), registry
}

func TestHandleManage_ColumnsFromCatalog(t *testing.T) {
	h, _ := newManageHandler(staffSource())
	rec := httptest.NewRecorder()
	h.HandleManage(rec, newRequest(http.MethodGet, "/manage?sheet=3", nil, loggedIn(t, admin())))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Amount")
	assert.NotContains(t, body, ">Sheet1<")
}

func TestHandleCreateDataset(t *testing.T) {
	src := staffSource()
	h, _ := newManageHandler(src)
	store := loggedIn(t, admin())

	rec := httptest.NewRecorder()
	h.HandleCreateDataset(rec, newRequest(http.MethodPost, "/manage/databases", url.Values{"database_name": {"Inventory"}}, store))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, src.created)

	form := url.Values{
		"database_name":     {"Inventory"},
		"database_password": {"pw"},
		"department_name":   {"HR"},
		"columns":           {"Item\nCount, Location"},
	}
	rec = httptest.NewRecorder()
	h.HandleCreateDataset(rec, newRequest(http.MethodPost, "/manage/databases", form, store))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, src.created, 1)
	assert.Equal(t, []string{"Item", "Count", "Location"}, src.created[0].Columns)
	assert.Equal(t, "Ann Admin", src.created[0].CreatedBy)
}

func TestHandleAppendRows(t *testing.T) {
	src := staffSource()
	h, _ := newManageHandler(src)
	store := loggedIn(t, admin())

	rec := httptest.NewRecorder()
	h.HandleAppendRows(rec, newRequest(http.MethodPost, "/manage/append-rows", url.Values{"sheet": {"3"}, "value": {"Desk", ""}}, store))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, src.appended)

	rec = httptest.NewRecorder()
	h.HandleAppendRows(rec, newRequest(http.MethodPost, "/manage/append-rows", url.Values{"sheet": {"3"}, "value": {"Desk", " 120 "}}, store))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/manage?sheet=3", rec.Header().Get("Location"))
	require.Len(t, src.appended, 1)
	assert.Equal(t, apiclient.AppendRows{SheetID: "s3", TabName: "Budget", Rows: [][]string{{"Desk", "120"}}}, src.appended[0])
}

func TestHandleUploadCSV(t *testing.T) {
	src := staffSource()
	h, _ := newManageHandler(src)
	store := loggedIn(t, admin())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sheet", "3"))
	part, err := mw.CreateFormFile("file", "budget.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Item,Amount\nChair,40\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/manage/upload-csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(session.WithStore(req.Context(), store))

	rec := httptest.NewRecorder()
	h.HandleUploadCSV(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Item,Amount\nChair,40\n", src.uploaded["s3"])
	f := flashOf(t, rec)
	require.NotNil(t, f)
	assert.Equal(t, uimiddleware.FlashSuccess, f.Kind)
}
