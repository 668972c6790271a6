package validator

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const maxSetNameLength = 100

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewParameterSetValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("set_name", setNameValidator),
		},
		{
			Rule: registerFn("finite", finiteValidator),
		},
	}
}

func setNameValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	trimmed := strings.TrimSpace(val)
	return trimmed != "" && trimmed == val && utf8.RuneCountInString(val) <= maxSetNameLength
}

func finiteValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(float64)
	if !ok {
		return false
	}
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}
