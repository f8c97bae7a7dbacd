// Пакет validation — проверка форм консоли до обращения к remote API.
// Правила: personname, email, strongpassword (go-playground/validator).
// Ошибка формы — одно сообщение пользователю, выбранное по приоритету правил.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	personNamePattern = regexp.MustCompile(`^[A-Za-z\s]+$`)
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// passwordSpecials — допустимые специальные символы пароля.
const passwordSpecials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// MinPasswordLength — минимальная длина пароля.
const MinPasswordLength = 6

// Rule — сообщение для нарушения правила tag на поле field.
// Пустой field — любое поле.
type Rule struct {
	Field   string
	Tag     string
	Message string
}

// Form — форма с упорядоченной таблицей сообщений.
type Form interface {
	Rules() []Rule
}

// Error — ошибка валидации формы.
type Error struct {
	Message string
	Fields  []string
}

func (e *Error) Error() string {
	return e.Message
}

// MessageOf возвращает сообщение ошибки валидации или пустую строку.
func MessageOf(err error) string {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return ""
}

// Validator — обёртка над validator.Validate с правилами консоли.
type Validator struct {
	validate *validator.Validate
}

// New создаёт Validator и регистрирует правила консоли.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Ошибки регистрации возможны только при пустом теге.
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("email", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	return &Validator{validate: v}
}

// IsEmail проверяет формат email.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsStrongPassword: не короче MinPasswordLength, заглавная буква, цифра
// и специальный символ.
func IsStrongPassword(s string) bool {
	if len([]rune(s)) < MinPasswordLength {
		return false
	}
	var upper, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) && r < unicode.MaxASCII:
			upper = true
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return upper && digit && special
}

// Check проверяет форму. Возвращает *Error с первым по таблице Rules
// сообщением или nil.
func (v *Validator) Check(form Form) error {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Message: "Invalid form."}
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}

	for _, rule := range form.Rules() {
		for _, fe := range verrs {
			if fe.Tag() == rule.Tag && (rule.Field == "" || rule.Field == fe.Field()) {
				return &Error{Message: rule.Message, Fields: fields}
			}
		}
	}
	return &Error{Message: "Invalid form.", Fields: fields}
}
