// File: internal/common/validate.go
package common

import "github.com/go-playground/validator/v10"

// NewValidator returns the validator shared by all services.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
