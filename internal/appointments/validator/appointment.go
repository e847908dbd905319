package validator

import (
	"errors"
	"fmt"

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
	if len(v) == 1 {
		return v[0].Error()
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

type AppointmentValidator struct {
	validate *validator.Validate
}

func NewAppointmentValidator() *AppointmentValidator {
	return &AppointmentValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (v *AppointmentValidator) ValidateBooking(req *model.BookingRequest) error {
	if err := v.check(req); err != nil {
		return err
	}

	if !req.StartTime.Before(req.EndTime) {
		return ValidationErrors{{Field: "startTime", Message: "must be before endTime"}}
	}
	return nil
}

func (v *AppointmentValidator) ValidateStatus(req *model.StatusUpdateRequest) error {
	return v.check(req)
}

func (v *AppointmentValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		out = append(out, ValidationError{
			Field:   jsonName(err.StructField()),
			Message: message(err),
		})
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "SellerID":
		return "sellerId"
	case "StartTime":
		return "startTime"
	case "EndTime":
		return "endTime"
	case "Title":
		return "title"
	case "Description":
		return "description"
	case "Status":
		return "status"
	}
	return field
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	}
	return fmt.Sprintf("failed %s validation", err.Tag())
}
