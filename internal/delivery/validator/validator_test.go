package validator

import (
	"testing"

	domainerrors "beacon/internal/domain/errors"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	UserID string `validate:"required,uuid"`
	Name   string `validate:"required"`
}

func TestCustomValidator(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&sample{UserID: "7b0b5f43-8f1c-4a63-9d36-1e6c2f0a9a11", Name: "ada"}))

	err := v.Validate(&sample{UserID: "not-a-uuid"})
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "input validation failed")
}
