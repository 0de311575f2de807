// Package validation wraps go-playground/validator with the field error
// format the API returns.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"rentcore/pkg/logger"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors for an AppError's details map.
func (v ValidationErrors) Details() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return map[string]any{"fields": fields}
}

type Validator struct {
	validate *validator.Validate
	log      *logger.Logger
}

func New(log *logger.Logger) *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled()), log: log}
}

// Register adds a custom tag. A failure here is a programming error.
func (v *Validator) Register(tag string, fn validator.Func) {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		v.log.Fatal("Failed to register validator", "tag", tag, "error", err)
	}
}

// Struct validates s and converts tag failures into ValidationErrors.
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translate(validationErrs)
		}
		return err
	}
	return nil
}

func translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "currency":
			message = fmt.Sprintf("%s must be a three letter upper-case currency code", err.Field())
		case "uuid4":
			message = fmt.Sprintf("%s must be a valid UUID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
