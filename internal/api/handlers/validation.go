// validation.go: валидация тел запросов (go-playground/validator).
package handlers

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLen = 10
	// passwordSpecials: хотя бы один из этих символов обязателен в пароле.
	passwordSpecials = "$#@!*"
)

// userNamePattern: имя пользователя пригодно как имя каталога.
var userNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{2,63}$`)

// newValidator создаёт валидатор с правилами username и password.
// В сообщениях об ошибках используются имена полей из JSON-тегов.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Регистрация встроенных тегов не может завершиться ошибкой
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return userNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})

	return v
}

// isStrongPassword: не короче minPasswordLen, есть цифра,
// заглавная буква и символ из passwordSpecials.
func isStrongPassword(s string) bool {
	if len([]rune(s)) < minPasswordLen {
		return false
	}
	var digit, upper, special bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return digit && upper && special
}

// validationMessage формирует сообщение по первой ошибке валидации.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Некорректные данные запроса"
	}

	e := verrs[0]
	field := e.Field()
	switch e.Tag() {
	case "required":
		return "Поле " + field + " обязательно"
	case "username":
		return "Имя пользователя: от 3 до 64 символов, латинские буквы, цифры, '.', '_', '-'"
	case "password":
		return "Пароль: не короче 10 символов, цифра, заглавная буква и один из символов " + passwordSpecials
	case "eqfield":
		return "Пароль и подтверждение не совпадают"
	default:
		return "Некорректное значение поля " + field
	}
}
