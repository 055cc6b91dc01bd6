package validator

import (
	"errors"
	"fmt"
	"strings"

	"studiobook/pkg/civiltime"
	"studiobook/pkg/logger"
	"studiobook/pkg/model"

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

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New()

	if err := v.RegisterValidation("local_datetime", validateLocalDateTime); err != nil {
		log.Fatal("Failed to register 'local_datetime' validator",
			"error", err,
		)
	}

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

func validateLocalDateTime(fl validator.FieldLevel) bool {
	_, err := civiltime.ParseLocal(fl.Field().String())
	return err == nil
}

func (v *ReservationValidator) Validate(draft *model.ReservationDraft) error {
	if err := v.check(draft); err != nil {
		return err
	}

	if draft.Customer == nil && draft.CustomerID == "" && !draft.IsWalkIn {
		return ValidationErrors{
			ValidationError{
				Field:   "Customer",
				Message: "customer or customer_id is required for scheduled reservations",
			},
		}
	}

	return nil
}

func (v *ReservationValidator) ValidateEdit(edit *model.ReservationEdit) error {
	if edit.Empty() {
		return ValidationErrors{
			ValidationError{
				Field:   "ReservationEdit",
				Message: "at least one of start, extra_minutes or services must be set",
			},
		}
	}

	return v.check(edit)
}

func (v *ReservationValidator) ValidateQuote(req *model.QuoteRequest) error {
	return v.check(req)
}

func (v *ReservationValidator) ValidateSlotQuery(q *model.SlotQuery) error {
	return v.check(q)
}

func (v *ReservationValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +6281234567890)", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "local_datetime":
			message = fmt.Sprintf("%s must be a local date-time (YYYY-MM-DDTHH:MM)", err.Field())
		case "unique":
			message = fmt.Sprintf("%s must not select the same %s twice", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must match layout %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
