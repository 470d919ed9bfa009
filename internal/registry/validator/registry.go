package validator

import (
	"errors"
	"fmt"
	"poolsched/pkg/interval"
	"poolsched/pkg/logger"
	"poolsched/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var maxHourlyCost = decimal.NewFromInt(1000)

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

type RegistryValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRegistryValidator(log *logger.Logger) *RegistryValidator {
	return &RegistryValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *RegistryValidator) ValidatePool(p *model.Pool) error {
	errs := v.structErrors(p)
	errs = append(errs, checkIntRange("Depth", p.Depth, 0, -1)...)
	errs = append(errs, checkIntRange("BusinessHours", p.BusinessHours, 0, 24)...)
	if p.BusinessHours.IsEmpty() {
		errs = append(errs, ValidationError{Field: "BusinessHours", Message: "BusinessHours must not be empty"})
	}
	return result(errs)
}

func (v *RegistryValidator) ValidateLane(l *model.Lane) error {
	errs := v.structErrors(l)
	errs = append(errs, checkCost(l.PerHourCost)...)
	return result(errs)
}

func (v *RegistryValidator) ValidateLocker(l *model.Locker) error {
	errs := v.structErrors(l)
	errs = append(errs, checkCost(l.PerHourCost)...)
	return result(errs)
}

func (v *RegistryValidator) ValidateClosure(c *model.Closure) error {
	errs := v.structErrors(c)
	if c.Dates.IsUnboundedLower() || c.Dates.IsUnboundedUpper() {
		errs = append(errs, ValidationError{Field: "Dates", Message: "Dates must have both a start and an end"})
	} else if c.Dates.Lower.After(*c.Dates.Upper) {
		errs = append(errs, ValidationError{Field: "Dates", Message: "Dates start must not be after end"})
	}
	return result(errs)
}

func (v *RegistryValidator) structErrors(s any) ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return translateValidationErrors(validationErrs)
	}
	return ValidationErrors{{Field: "", Message: err.Error()}}
}

// checkIntRange requires both bounds, lower <= upper, and both within
// [min, max]. A negative max means no upper limit.
func checkIntRange(field string, r interval.IntRange, min, max int) ValidationErrors {
	if r.Lower == nil || r.Upper == nil {
		return ValidationErrors{{Field: field, Message: field + " must have both bounds"}}
	}
	var errs ValidationErrors
	lower, upper := int(*r.Lower), int(*r.Upper)
	if lower > upper {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s lower bound %d is after upper bound %d", field, lower, upper)})
	}
	if lower < min || upper < min {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s must be at least %d", field, min)})
	}
	if max >= 0 && (lower > max || upper > max) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d", field, max)})
	}
	return errs
}

func checkCost(cost decimal.Decimal) ValidationErrors {
	var errs ValidationErrors
	if cost.IsNegative() {
		errs = append(errs, ValidationError{Field: "PerHourCost", Message: "PerHourCost cannot be negative"})
	}
	if !cost.Equal(cost.Round(2)) {
		errs = append(errs, ValidationError{Field: "PerHourCost", Message: "PerHourCost must have at most 2 decimal places"})
	}
	if cost.GreaterThanOrEqual(maxHourlyCost) {
		errs = append(errs, ValidationError{Field: "PerHourCost", Message: "PerHourCost must be less than 1000"})
	}
	return errs
}

func result(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
