package validation

import (
	"strings"

	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/domain/rbac"
)

// LoginForm — форма входа.
type LoginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func (LoginForm) Rules() []Rule {
	return []Rule{
		{Field: "Email", Tag: "required", Message: "Please enter your email first."},
		{Tag: "required", Message: "Please fill all required fields."},
		{Tag: "email", Message: "Please enter a valid email address."},
	}
}

// ResetForm — запрос письма сброса пароля.
type ResetForm struct {
	Email string `validate:"required,email"`
}

func (ResetForm) Rules() []Rule {
	return []Rule{
		{Tag: "required", Message: "Please enter your email first."},
		{Tag: "email", Message: "Please enter a valid email address."},
	}
}

// NewUserForm — создание пользователя в управлении аккаунтами.
type NewUserForm struct {
	FirstName  string `validate:"required,personname"`
	LastName   string `validate:"required,personname"`
	Email      string `validate:"required,email"`
	Password   string `validate:"required,strongpassword"`
	Role       string `validate:"required,oneof=user admin super_admin"`
	Department string
}

func (NewUserForm) Rules() []Rule {
	return []Rule{
		{Tag: "required", Message: "Please fill all required fields."},
		{Field: "FirstName", Tag: "personname", Message: "First name must contain only letters."},
		{Field: "LastName", Tag: "personname", Message: "Last name must contain only letters."},
		{Tag: "email", Message: "Enter a valid email address."},
		{Tag: "strongpassword", Message: "Password must be at least 6 characters with uppercase, number, and special character."},
		{Tag: "oneof", Message: "Please select a valid role and department."},
	}
}

// CheckNewUser проверяет форму создания пользователя от имени creator.
// Отдел обязателен для super_admin; для остальных принудительно N/A.
func (v *Validator) CheckNewUser(form *NewUserForm, creator rbac.Role) error {
	form.FirstName = strings.TrimSpace(form.FirstName)
	form.LastName = strings.TrimSpace(form.LastName)
	form.Email = strings.TrimSpace(form.Email)
	form.Department = strings.TrimSpace(form.Department)

	if err := v.Check(*form); err != nil {
		return err
	}
	if creator == rbac.RoleSuperAdmin {
		if form.Department == "" {
			return &Error{Message: "Please select a valid role and department.", Fields: []string{"Department"}}
		}
		return nil
	}
	form.Department = model.NotAssignedDepartment
	return nil
}

// PasswordChangeForm — смена собственного пароля.
type PasswordChangeForm struct {
	Current string `validate:"required"`
	New     string `validate:"required,strongpassword"`
	Confirm string `validate:"required,eqfield=New"`
}

func (PasswordChangeForm) Rules() []Rule {
	return []Rule{
		{Tag: "required", Message: "Please fill in all password fields."},
		{Tag: "eqfield", Message: "New passwords do not match."},
		{Tag: "strongpassword", Message: "Password must be 6+ characters with uppercase, number, and special character."},
	}
}

// AccountForm — изменение полей собственного профиля.
type AccountForm struct {
	Username  string `validate:"required"`
	FirstName string `validate:"required,personname"`
	LastName  string `validate:"required,personname"`
	Email     string `validate:"required,email"`
}

func (AccountForm) Rules() []Rule {
	return []Rule{
		{Tag: "required", Message: "Please fill all required fields."},
		{Field: "FirstName", Tag: "personname", Message: "First name must contain only letters."},
		{Field: "LastName", Tag: "personname", Message: "Last name must contain only letters."},
		{Tag: "email", Message: "Invalid email address."},
	}
}

// DepartmentForm — создание или переименование отдела.
type DepartmentForm struct {
	Name string `validate:"required"`
}

func (DepartmentForm) Rules() []Rule {
	return []Rule{{Tag: "required", Message: "Department name is required."}}
}

// DatasetForm — создание набора данных.
type DatasetForm struct {
	Name       string   `validate:"required"`
	Department string   `validate:"required"`
	Password   string   `validate:"required"`
	CreatedBy  string   `validate:"required"`
	Columns    []string `validate:"min=1,dive,required"`
}

func (DatasetForm) Rules() []Rule {
	return []Rule{
		{Tag: "required", Message: "All fields are required."},
		{Tag: "min", Message: "All fields are required."},
	}
}

// AppendRowForm — добавление строки в набор.
type AppendRowForm struct {
	SheetID string   `validate:"required"`
	Values  []string `validate:"min=1,dive,required"`
}

func (AppendRowForm) Rules() []Rule {
	return []Rule{
		{Tag: "required", Message: "Please fill all column fields."},
		{Tag: "min", Message: "Please fill all column fields."},
	}
}

// UserUpdateForm — изменение пользователя в управлении аккаунтами.
type UserUpdateForm struct {
	FirstName string `validate:"required,personname"`
	LastName  string `validate:"required,personname"`
	Email     string `validate:"required,email"`
	Role      string `validate:"required,oneof=user admin super_admin"`
}

func (UserUpdateForm) Rules() []Rule {
	return []Rule{
		{Tag: "required", Message: "Please fill all required fields."},
		{Field: "FirstName", Tag: "personname", Message: "First name must contain only letters."},
		{Field: "LastName", Tag: "personname", Message: "Last name must contain only letters."},
		{Tag: "email", Message: "Enter a valid email address."},
		{Tag: "oneof", Message: "Please select a valid role and department."},
	}
}
