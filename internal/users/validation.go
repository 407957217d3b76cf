package users

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/shared"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 100
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return passwordProblem(fl.Field().String()) == ""
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := authority.ParseRole(fl.Field().String())
		return err == nil
	})
	return v
}

// passwordProblem returns why password is unacceptable, or "" when it is fine.
func passwordProblem(password string) string {
	n := len([]rune(password))
	if n < minPasswordLen || n > maxPasswordLen {
		return "must be between 8 and 100 characters"
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
			letter = true
		}
	}
	if !digit {
		return "must contain at least one digit"
	}
	if !letter {
		return "must contain at least one letter"
	}
	return ""
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &shared.ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "password":
		return passwordProblem(fe.Value().(string))
	case "role":
		return "must be one of: admin, user"
	default:
		return "is invalid"
	}
}
