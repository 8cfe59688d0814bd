// Package validator adapts go-playground/validator to echo.Validator.
package validator

import (
	domainerrors "beacon/internal/domain/errors"

	"github.com/go-playground/validator/v10"
)

// CustomValidator validates request bodies through struct tags.
type CustomValidator struct {
	validator *validator.Validate
}

// New creates a CustomValidator.
func New() *CustomValidator {
	return &CustomValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator. Failures are reported as ErrValidationFailed with the field errors as details.
func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails(err.Error())
	}

	return nil
}
