package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// Validator wraps the validator library for candidate checking.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// ValidateCandidate checks a normalized candidate before it reaches the
// store. A failing candidate is dropped by the caller, not fatal.
func (v *Validator) ValidateCandidate(c models.DealCandidate) error {
	if err := v.validate.Struct(c); err != nil {
		return fmt.Errorf("candidate validation failed: %w", err)
	}
	return nil
}
