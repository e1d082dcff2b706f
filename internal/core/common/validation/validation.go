package validation

import (
	"fmt"
	"time"

	errors "github.com/reimbursehq/reimbursement-service/internal"
	"github.com/shopspring/decimal"
)

// ExpenseDateMaxAge is how far back an expense may lie at creation time.
const ExpenseDateMaxAge = 365 * 24 * time.Hour

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		switch v := value.(type) {
		case string:
			if v == "" {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		case *string:
			if v == nil || *v == "" {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		case decimal.Decimal:
			if v.IsZero() {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		case time.Time:
			if v.IsZero() {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) > max {
				message := fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max)
				return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Positive(code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(decimal.Decimal); ok {
			if v.Sign() <= 0 {
				message := fmt.Sprintf("%s must be greater than zero", fv.FieldName)
				return errors.NewValidationFieldError(fv.FieldName, message, code)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			if err := validator(field.Value); err != nil {
				if details, ok := err.Details.(errors.ValidationErrors); ok {
					validationErrors = append(validationErrors, details.Errors...)
				} else {
					validationErrors = append(validationErrors, errors.ValidationError{
						Field:   field.FieldName,
						Message: err.Message,
						Code:    string(err.Code),
					})
				}
			}
		}
	}

	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

// ExpenseDateValid checks the creation-time window: not in the future and
// no older than 365 days, both boundaries inclusive.
func ExpenseDateValid(date, now time.Time) *errors.AppError {
	if date.IsZero() {
		return errors.NewValidationFieldError("expense_date", "expense_date is required", errors.ErrCodeInvalidDate)
	}
	if date.After(now) {
		return errors.NewValidationFieldError("expense_date", "expense date cannot be in the future", errors.ErrCodeDateInFuture)
	}
	if date.Before(now.Add(-ExpenseDateMaxAge)) {
		return errors.NewValidationFieldError("expense_date", "expense date cannot be older than one year", errors.ErrCodeDateTooOld)
	}
	return nil
}

// ApprovedAmountValid enforces 0 <= approved <= requested.
func ApprovedAmountValid(approved, requested decimal.Decimal) *errors.AppError {
	if approved.Sign() < 0 {
		return errors.NewValidationFieldError("approved_amount", "approved amount cannot be negative", errors.ErrCodeInvalidAmount)
	}
	if approved.GreaterThan(requested) {
		return errors.NewValidationFieldError("approved_amount", "approved amount cannot exceed requested amount", errors.ErrCodeAmountExceedsCap)
	}
	return nil
}

func ValidateTitle(title string) *errors.AppError {
	validator := NewValidator()
	validator.Field("title", title).
		Required().
		MaxLength(200)
	return validator.Validate()
}

func ValidateDescription(description string) *errors.AppError {
	validator := NewValidator()
	validator.Field("description", description).
		MaxLength(1000)
	return validator.Validate()
}

func ValidateNote(field, note string) *errors.AppError {
	validator := NewValidator()
	validator.Field(field, note).
		MaxLength(500)
	return validator.Validate()
}

func ValidateRequestedAmount(amount decimal.Decimal) *errors.AppError {
	validator := NewValidator()
	validator.Field("requested_amount", amount).
		Required().
		Positive(errors.ErrCodeInvalidAmount)
	return validator.Validate()
}
