// Пакет pages — страницы веб-консоли.
// Шаблоны html/template встраиваются в бинарник и отдаются как
// templ.Component через templ.FromGoHTML.
package pages

import (
	"embed"
	"html/template"
	"strings"

	"github.com/a-h/templ"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
	"github.com/bigkaa/sheetsconsole/internal/ui/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"t":     i18n.Translate,
	"join":  strings.Join,
	"langs": i18n.Codes,
	"inc":   func(i int) int { return i + 1 },
}

var (
	layout = template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))

	loginTmpl      = page("login.html")
	homeTmpl       = page("home.html")
	searchTmpl     = page("search.html")
	manageTmpl     = page("manage.html")
	accountTmpl    = page("account.html")
	managementTmpl = page("management.html")
	departmentTmpl = page("department.html")
	notFoundTmpl   = page("notfound.html")
)

// page собирает шаблон страницы поверх общего layout.
func page(name string) *template.Template {
	return template.Must(template.Must(layout.Clone()).ParseFS(templateFS, "templates/"+name))
}

// NavItem — пункт меню.
type NavItem struct {
	Href   string
	Label  string // ключ перевода
	Active bool
}

// Notice — уведомление об успехе или ошибке.
type Notice struct {
	Kind    string
	Message string
}

// Base — общие данные layout.
type Base struct {
	Lang   string
	Title  string // ключ перевода
	User   *model.User
	Nav    []NavItem
	Notice *Notice
}

// Navigation строит меню для роли. Пункты управления видны только
// тем ролям, которым доступны соответствующие страницы.
func Navigation(role *rbac.Role, current string) []NavItem {
	items := []struct {
		href  string
		label string
		tier  *rbac.Tier
	}{
		{"/home", "nav.home", nil},
		{"/search", "nav.search", nil},
		{"/manage", "nav.manage", tierPtr(rbac.TierAdmin)},
		{"/settings/account", "nav.account", nil},
		{"/settings/management", "nav.management", tierPtr(rbac.TierAdmin)},
		{"/settings/department", "nav.department", tierPtr(rbac.TierSuperAdmin)},
	}

	out := make([]NavItem, 0, len(items))
	for _, it := range items {
		if it.tier != nil && !rbac.CanAccess(role, *it.tier) {
			continue
		}
		out = append(out, NavItem{
			Href:   it.href,
			Label:  it.label,
			Active: current == it.href || strings.HasPrefix(current, it.href+"/"),
		})
	}
	return out
}

func tierPtr(t rbac.Tier) *rbac.Tier {
	return &t
}

// --- Страницы ---

// LoginData — страница входа.
type LoginData struct {
	Base
	Email string
	Error string
}

// Login — страница входа и запроса сброса пароля.
func Login(data LoginData) templ.Component {
	return templ.FromGoHTML(loginTmpl, data)
}

// HomeData — стартовая страница.
type HomeData struct {
	Base
	CanManage bool
}

// Home — плитки перехода к поиску и управлению.
func Home(data HomeData) templ.Component {
	return templ.FromGoHTML(homeTmpl, data)
}

// DatasetGroup — наборы данных одного отдела.
type DatasetGroup struct {
	Department string
	Datasets   []DatasetLink
}

// DatasetLink — набор данных в каталоге.
type DatasetLink struct {
	ID       string
	Name     string
	Selected bool
}

// ColumnFilter — фильтр колонки.
type ColumnFilter struct {
	Column   string
	Options  []string
	Selected string
}

// ExtraColumn — дополнительная колонка, фильтр которой можно показать.
type ExtraColumn struct {
	Column  string
	Visible bool
}

// HiddenFilter — выбранное значение скрытого фильтра.
type HiddenFilter struct {
	Name  string
	Value string
}

// SearchData — каталог, разблокировка и результаты поиска.
type SearchData struct {
	Base
	Groups        []DatasetGroup
	SelectedID    string
	SelectedName  string
	Unlocked      bool
	UnlockError   string
	Query         string
	Filters       []ColumnFilter
	Extra         []ExtraColumn
	HiddenFilters []HiddenFilter
	Columns       []string
	Rows          [][]string
	Total         int
	ExportQuery   template.URL
}

// Search — страница поиска по набору данных.
func Search(data SearchData) templ.Component {
	return templ.FromGoHTML(searchTmpl, data)
}

// ManageData — создание наборов и добавление строк.
type ManageData struct {
	Base
	Datasets     []model.Dataset
	Departments  []model.Department
	CreatedBy    string
	SelectedID   string
	SelectedName string
	Columns      []string
	Error        string
}

// Manage — страница управления наборами данных.
func Manage(data ManageData) templ.Component {
	return templ.FromGoHTML(manageTmpl, data)
}

// AccountData — собственный профиль.
type AccountData struct {
	Base
	Profile    model.User
	Restricted bool
	Error      string
}

// Account — страница настроек аккаунта.
func Account(data AccountData) templ.Component {
	return templ.FromGoHTML(accountTmpl, data)
}

// UserRow — пользователь в таблице управления.
type UserRow struct {
	model.User
	Name    string
	Current bool
}

// ManagementData — управление аккаунтами.
type ManagementData struct {
	Base
	Users        []UserRow
	Departments  []model.Department
	Roles        []rbac.Role
	IsSuperAdmin bool
	Error        string
}

// Management — страница управления аккаунтами.
func Management(data ManagementData) templ.Component {
	return templ.FromGoHTML(managementTmpl, data)
}

// DepartmentRow — отдел в таблице.
type DepartmentRow struct {
	ID        string
	Name      string
	CreatedAt string
}

// DepartmentData — управление отделами.
type DepartmentData struct {
	Base
	Departments []DepartmentRow
	Error       string
}

// Department — страница управления отделами.
func Department(data DepartmentData) templ.Component {
	return templ.FromGoHTML(departmentTmpl, data)
}

// NotFoundData — страница 404.
type NotFoundData struct {
	Base
}

// NotFound — страница отсутствующего или недоступного раздела.
func NotFound(data NotFoundData) templ.Component {
	return templ.FromGoHTML(notFoundTmpl, data)
}
