package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordMinLength is the minimum password length for self-registration
const PasswordMinLength = 8

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance. Field names in errors are
// the JSON names, and the "video_link" and "amount2dp" tags are registered.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("video_link", func(fl validator.FieldLevel) bool {
		return ValidateVideoLink(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("amount2dp", func(fl validator.FieldLevel) bool {
		return HasAtMostTwoDecimals(fl.Field().Float())
	})

	return &Validator{
		validate: v,
	}
}

// ValidateStruct validates a struct using struct tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatValidationErrors converts validation errors to a field -> message map
func FormatValidationErrors(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		if err != nil {
			errs["non_field_errors"] = err.Error()
		}
		return errs
	}

	for _, e := range validationErrs {
		field := e.Field()
		switch e.Tag() {
		case "required", "required_without", "required_with":
			errs[field] = "This field is required."
		case "email":
			errs[field] = "Enter a valid email address."
		case "min":
			errs[field] = fmt.Sprintf("Ensure this field has at least %s characters.", e.Param())
		case "max":
			errs[field] = fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())
		case "gt":
			errs[field] = fmt.Sprintf("Ensure this value is greater than %s.", e.Param())
		case "gte":
			errs[field] = fmt.Sprintf("Ensure this value is greater than or equal to %s.", e.Param())
		case "oneof":
			errs[field] = fmt.Sprintf("Must be one of: %s.", strings.ReplaceAll(e.Param(), " ", ", "))
		case "amount2dp":
			errs[field] = "Ensure that there are no more than 2 decimal places."
		case "excluded_with":
			errs[field] = fmt.Sprintf("Cannot be combined with %s.", e.Param())
		case "video_link":
			if s, ok := e.Value().(string); ok {
				if linkErr := ValidateVideoLink(s); linkErr != nil {
					errs[field] = linkErr.Error()
					continue
				}
			}
			errs[field] = "Invalid video link."
		default:
			errs[field] = "Invalid value."
		}
	}

	return errs
}

// ValidatePassword applies the registration password policy and returns
// every violation found. email may be empty.
func ValidatePassword(password, email string) []string {
	var problems []string

	if len(password) < PasswordMinLength {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", PasswordMinLength))
	}

	numeric := password != ""
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		problems = append(problems, "This password is entirely numeric.")
	}

	if email != "" && strings.EqualFold(password, email) {
		problems = append(problems, "The password is too similar to the email.")
	}

	return problems
}

// HasAtMostTwoDecimals reports whether v has no more than two decimal places
func HasAtMostTwoDecimals(v float64) bool {
	cents := v * 100
	rounded := float64(int64(cents + 0.5))
	if cents < 0 {
		rounded = float64(int64(cents - 0.5))
	}
	diff := cents - rounded
	return diff < 1e-6 && diff > -1e-6
}

// SanitizeString removes null bytes and trims whitespace
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	return s
}
