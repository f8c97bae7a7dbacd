package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

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
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

var discard = slog.New(slog.DiscardHandler)

type fakeSource struct {
	listCalls   int
	expiredOnce bool
}

func (f *fakeSource) ListDatasets(_ context.Context, token string) ([]model.Dataset, error) {
	f.listCalls++
	if f.expiredOnce && token == "T" {
		return nil, &apiclient.APIError{Status: http.StatusUnauthorized}
	}
	return []model.Dataset{
		{ID: "1", SheetID: "s1", Name: "Staff.csv", Department: "HR"},
		{ID: "2", SheetID: "s2", Name: "Sheet1", Department: "HR"},
	}, nil
}

func (f *fakeSource) ConfirmPassword(_ context.Context, _, _, password string) error {
	if password != "secret" {
		return &apiclient.APIError{Status: http.StatusUnauthorized, Message: "Incorrect password"}
	}
	return nil
}

func (f *fakeSource) Rows(context.Context, string, string) ([]model.Row, error) {
	return []model.Row{
		model.NewRow("Name", "Alice", "City", "Paris"),
		model.NewRow("Name", "Bob", "City", "Oslo"),
	}, nil
}

type fakeIdP struct {
	refreshed bool
}

func (f *fakeIdP) SignIn(_ context.Context, email, password string) (*identity.TokenResponse, error) {
	if password != "Passw0rd!" {
		return nil, &identity.AuthError{Code: identity.CodeInvalidCredential}
	}
	return &identity.TokenResponse{IDToken: "T", RefreshToken: "R"}, nil
}

func (f *fakeIdP) Refresh(context.Context, string) (*identity.TokenResponse, error) {
	f.refreshed = true
	return &identity.TokenResponse{IDToken: "T2", RefreshToken: "R2"}, nil
}

func (f *fakeIdP) SignOut(context.Context, string) error { return nil }

type fakeProfiles struct{}

func (fakeProfiles) Login(context.Context, string) (*model.User, error) {
	return &model.User{ID: "a1", FirstName: "Ann", LastName: "Admin", Email: "ann@example.com", Role: rbac.RoleAdmin, Department: "HR"}, nil
}

type testApp struct {
	*app
	out  *bytes.Buffer
	path string
	src  *fakeSource
	idp  *fakeIdP
}

func newTestApp(t *testing.T, stdin string) *testApp {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	src := &fakeSource{}
	idp := &fakeIdP{}
	out := &bytes.Buffer{}
	a := &app{
		store:        session.NewStore("sheetsctl", session.NewFileStorage(path), idp, discard),
		idp:          idp,
		api:          fakeProfiles{},
		dir:          directory.New(src, nil, "Sheet1", discard),
		engine:       filter.New("N/A"),
		exporter:     service.NewExportService(nil, nil, discard),
		validator:    validation.New(),
		stdin:        strings.NewReader(stdin),
		stdout:       out,
		stderr:       &bytes.Buffer{},
		readPassword: func() (string, error) { return "Passw0rd!", nil },
		logger:       discard,
	}
	return &testApp{app: a, out: out, path: path, src: src, idp: idp}
}

func (ta *testApp) login(t *testing.T) {
	t.Helper()
	require.NoError(t, ta.store.Login(t.Context(), "T", "R", model.User{ID: "a1", Email: "ann@example.com", Role: rbac.RoleAdmin}))
}

func TestLogin_PersistsSession(t *testing.T) {
	ta := newTestApp(t, "ann@example.com\n")

	require.NoError(t, ta.dispatch(t.Context(), "login", nil))
	assert.Contains(t, ta.out.String(), "Logged in as ann@example.com (admin)")

	// Новый процесс читает ту же сессию из файла
	restored := session.NewStore("sheetsctl", session.NewFileStorage(ta.path), nil, discard)
	require.NoError(t, restored.Hydrate(t.Context()))
	assert.True(t, restored.Authenticated())
	assert.Equal(t, "T", restored.Token())
	assert.Equal(t, "HR", restored.Profile().Department)
}

func TestLogin_Failures(t *testing.T) {
	t.Run("некорректный email", func(t *testing.T) {
		ta := newTestApp(t, "")
		err := ta.dispatch(t.Context(), "login", []string{"--email", "not-an-email"})
		require.Error(t, err)
		assert.False(t, ta.store.Authenticated())
	})

	t.Run("неверный пароль", func(t *testing.T) {
		ta := newTestApp(t, "")
		ta.readPassword = func() (string, error) { return "wrong", nil }
		err := ta.dispatch(t.Context(), "login", []string{"--email", "ann@example.com"})
		require.Error(t, err)
		assert.False(t, ta.store.Authenticated())
		_, statErr := os.Stat(ta.path)
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "файл сессии не создаётся")
	})
}

func TestLogoutAndWhoami(t *testing.T) {
	ta := newTestApp(t, "")
	assert.ErrorIs(t, ta.dispatch(t.Context(), "whoami", nil), errNotLoggedIn)

	ta.login(t)
	require.NoError(t, ta.dispatch(t.Context(), "whoami", nil))
	assert.Contains(t, ta.out.String(), "ann@example.com")

	require.NoError(t, ta.dispatch(t.Context(), "logout", nil))
	assert.False(t, ta.store.Authenticated())
	assert.Contains(t, ta.out.String(), "Logged out")
}

func TestList(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	require.NoError(t, ta.dispatch(t.Context(), "list", nil))
	out := ta.out.String()
	assert.Contains(t, out, "Staff")
	assert.NotContains(t, out, "Sheet1", "placeholder скрыт")
}

func TestList_RefreshesExpiredToken(t *testing.T) {
	ta := newTestApp(t, "")
	ta.src.expiredOnce = true
	ta.login(t)

	require.NoError(t, ta.dispatch(t.Context(), "list", nil))
	assert.True(t, ta.idp.refreshed)
	assert.Equal(t, 2, ta.src.listCalls)
	assert.Equal(t, "T2", ta.store.Token())
}

func TestShow(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	err := ta.dispatch(t.Context(), "show", []string{"1", "--password", "secret", "--filter", "City=Paris"})
	require.NoError(t, err)
	out := ta.out.String()
	assert.Contains(t, out, "Alice")
	assert.NotContains(t, out, "Bob")
}

func TestShow_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"неверный пароль", []string{"1", "--password", "nope"}, "incorrect password"},
		{"неизвестный набор", []string{"9", "--password", "secret"}, `dataset "9" not found`},
		{"неизвестная колонка", []string{"1", "--password", "secret", "--filter", "Age=3"}, `unknown column "Age"`},
		{"фильтр без значения", []string{"1", "--filter", "City"}, "invalid filter"},
		{"без набора", nil, "usage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, "")
			ta.login(t)
			err := ta.dispatch(t.Context(), "show", tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExport(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)
	out := filepath.Join(t.TempDir(), "staff.csv")

	err := ta.dispatch(t.Context(), "export", []string{"1", "--password", "secret", "--query", "oslo", "-o", out})
	require.NoError(t, err)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Bob")
	assert.NotContains(t, string(body), "Alice")
	assert.Contains(t, ta.out.String(), "1 rows written")

	err = ta.dispatch(t.Context(), "export", []string{"1", "--format", "xlsx"})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"City=Paris", " Role =a=b", "Empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"City": "Paris", "Role": "a=b", "Empty": ""}, got)

	_, err = parseFilters([]string{"=x"})
	assert.Error(t, err)
}

func TestRun_Usage(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, strings.NewReader(""), &bytes.Buffer{}, &stderr))
	assert.Contains(t, stderr.String(), "Usage: sheetsctl")
}
