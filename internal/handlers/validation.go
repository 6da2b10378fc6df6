package handlers

import (
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	campusIDPattern = regexp.MustCompile(`^\d{9}$`)
	phonePattern    = regexp.MustCompile(`^\d{10}$`)

	registerValidatorsOnce sync.Once
)

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// registerValidators installs the custom tags on gin's validator and makes
// field errors report JSON names.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("campusid", func(fl validator.FieldLevel) bool {
			return campusIDPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
			return validPersonName(fl.Field().String())
		})
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return strongPassword(fl.Field().String())
		})
	})
}

// validPersonName accepts letters, with single spaces, hyphens or
// apostrophes between them.
func validPersonName(s string) bool {
	if s == "" {
		return false
	}
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			prevLetter = true
		case r == ' ' || r == '-' || r == '\'':
			if !prevLetter {
				return false
			}
			prevLetter = false
		default:
			return false
		}
	}
	return prevLetter
}

func strongPassword(s string) bool {
	if n := len([]rune(s)); n < 8 || n > 20 {
		return false
	}
	var lower, upper, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	return lower && upper && symbol
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func describeBindError(err error) []fieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []fieldError{{Field: "body", Rule: "malformed"}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}
