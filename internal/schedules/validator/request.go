package validator

import (
	"errors"
	"fmt"
	"recolha/internal/schedules/rules"
	"recolha/pkg/clock"
	"recolha/pkg/logger"
	"recolha/pkg/model"
	"recolha/pkg/sanitizer"
	"reflect"
	"strings"
	"time"

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

// RequestValidator checks the shape of incoming requests: required fields,
// lengths, tax ID check digits, phone digit count and date format.
type RequestValidator struct {
	validate *validator.Validate
	rules    *rules.Rules
}

func NewRequestValidator(r *rules.Rules, log *logger.Logger) *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	rv := &RequestValidator{validate: v, rules: r}

	custom := map[string]validator.Func{
		"tax_id":     validateTaxID,
		"br_phone":   validatePhone,
		"civil_date": validateCivilDate,
		"category":   rv.validateCategory,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register validator", "tag", tag, "error", err)
		}
	}

	return rv
}

func validateTaxID(fl validator.FieldLevel) bool {
	return sanitizer.ValidTaxID(fl.Field().String())
}

func validatePhone(fl validator.FieldLevel) bool {
	return sanitizer.ValidPhone(fl.Field().String())
}

func validateCivilDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(clock.DateLayout, fl.Field().String())
	return err == nil
}

func (v *RequestValidator) validateCategory(fl validator.FieldLevel) bool {
	_, ok := v.rules.Get(fl.Field().String())
	return ok
}

func (v *RequestValidator) ValidateSchedule(req *model.ScheduleRequest) error {
	return v.validateStruct(req)
}

func (v *RequestValidator) ValidateComplete(req *model.CompleteRequest) error {
	return v.validateStruct(req)
}

func (v *RequestValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *RequestValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a 24-character hex identifier", err.Field())
		case "tax_id":
			message = "tax_id must be a valid CPF or CNPJ"
		case "br_phone":
			message = "phone must have 10 or 11 digits including the area code"
		case "civil_date":
			message = "date must be a calendar date in YYYY-MM-DD format"
		case "category":
			message = fmt.Sprintf("category must be one of [%s]", strings.Join(v.rules.Categories(), ", "))
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
