package validator

import (
	"errors"
	"fmt"
	"poolsched/pkg/logger"
	"poolsched/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

func (v ValidationError) Unwrap() error {
	return v.Err
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

// Unwrap exposes the typed rule errors to errors.As.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New()

	if err := v.RegisterValidation("uuid_or_empty", validateUUIDOrEmpty); err != nil {
		log.Fatal("Failed to register 'uuid_or_empty' validator",
			"error", err,
		)
	}

	log.Debug("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

func validateUUIDOrEmpty(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// Validate checks the struct tags, the user cardinality of the kind and the
// period rules, and returns every failure at once. capacity is the lane's
// MaxSwimmers and is ignored for lockers.
func (v *ReservationValidator) Validate(r *model.Reservation, capacity int) error {
	var errs ValidationErrors

	if err := v.validate.Struct(r); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			errs = append(errs, v.translateValidationErrors(validationErrs)...)
		} else {
			return err
		}
	}

	switch r.Kind {
	case model.KindLane:
		if len(r.Users) > capacity {
			errs = append(errs, ValidationError{
				Field:   "Users",
				Message: fmt.Sprintf("users count (%d) exceeds lane capacity (%d)", len(r.Users), capacity),
			})
		}
		errs = append(errs, Apply(r.Period, LaneRules()...)...)
	case model.KindLocker:
		if len(r.Users) != 1 {
			errs = append(errs, ValidationError{
				Field:   "Users",
				Message: fmt.Sprintf("a locker reservation needs exactly one user, got %d", len(r.Users)),
			})
		}
		errs = append(errs, Apply(r.Period, LockerRules()...)...)
	}

	return result(errs)
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "uuid_or_empty":
			message = fmt.Sprintf("%s must be a UUID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

func result(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
