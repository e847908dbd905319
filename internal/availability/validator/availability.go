package validator

import (
	"errors"
	"fmt"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/slots"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

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
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

type AvailabilityValidator struct {
	validate *validator.Validate
}

func NewAvailabilityValidator() *AvailabilityValidator {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return slots.ValidClock(fl.Field().String())
	})

	return &AvailabilityValidator{
		validate: v,
	}
}

// ValidateRules checks each row and then the template as a whole: one row per weekday,
// each window non-empty.
func (v *AvailabilityValidator) ValidateRules(rules []model.AvailabilityRuleInput) error {
	var errs ValidationErrors
	seen := make(map[int]bool, len(rules))

	for i, rule := range rules {
		prefix := fmt.Sprintf("availability[%d]", i)

		if err := v.validate.Struct(rule); err != nil {
			var validationErrs validator.ValidationErrors
			if !errors.As(err, &validationErrs) {
				return err
			}
			errs = append(errs, translateValidationErrors(prefix, validationErrs)...)
			continue
		}

		start, _ := slots.ParseClock(rule.StartTime)
		end, _ := slots.ParseClock(rule.EndTime)
		if start >= end {
			errs = append(errs, ValidationError{
				Field:   prefix + ".startTime",
				Message: "must be before endTime",
			})
		}

		if seen[rule.DayOfWeek] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".dayOfWeek",
				Message: fmt.Sprintf("day %d appears more than once", rule.DayOfWeek),
			})
		}
		seen[rule.DayOfWeek] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func translateValidationErrors(prefix string, errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		out = append(out, ValidationError{
			Field:   prefix + "." + jsonName(err.Field()),
			Message: message(err),
		})
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "DayOfWeek":
		return "dayOfWeek"
	case "StartTime":
		return "startTime"
	case "EndTime":
		return "endTime"
	}
	return field
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "clock":
		return "must be a time in HH:MM format"
	case "min", "max":
		return "must be between 0 (Sunday) and 6 (Saturday)"
	}
	return fmt.Sprintf("failed %s validation", err.Tag())
}
