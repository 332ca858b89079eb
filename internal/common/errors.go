// File: internal/common/errors.go
package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is the structured error every service returns across a component boundary.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if s, ok := e.Details.(string); ok && s != "" {
		msg = s
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches on Code so errors.Is(err, ErrNotFound) holds for any detailed copy.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates an error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails returns a copy of e carrying details. The receiver is left untouched.
func (e *Error) WithDetails(details interface{}) *Error {
	c := *e
	c.Details = details
	return &c
}

// Wrap returns a copy of e that records cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

// Describe returns the most specific human readable text for the error.
func (e *Error) Describe() string {
	if s, ok := e.Details.(string); ok && s != "" {
		return s
	}
	return e.Message
}

var (
	ErrNotFound      = NewError("NOT_FOUND", "The requested resource could not be found.")
	ErrAlreadyExists = NewError("ALREADY_EXISTS", "The resource already exists.")
	ErrUnauthorized  = NewError("UNAUTHORIZED", "You are not permitted to perform this action.")
	ErrValidation    = NewError("VALIDATION_ERROR", "Input validation failed.")
	ErrStorage       = NewError("STORAGE_ERROR", "A storage error occurred.")
)

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// NewValidationError wraps validator output (or a plain message) as ErrValidation.
func NewValidationError(err error) *Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return ErrValidation.WithDetails(FormatValidationErrors(verrs))
	}
	return ErrValidation.WithDetails(err.Error())
}

// FormatValidationErrors converts validator.ValidationErrors into a map.
func FormatValidationErrors(errs validator.ValidationErrors) map[string]string {
	errorMap := make(map[string]string)
	for _, e := range errs {
		field := strings.ToLower(e.Field())
		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("The %s field is required.", field)
		case "email":
			message = fmt.Sprintf("The %s field must be a valid email address.", field)
		case "min":
			message = fmt.Sprintf("The %s field must be at least %s.", field, e.Param())
		case "max":
			message = fmt.Sprintf("The %s field may not be greater than %s.", field, e.Param())
		case "gte":
			message = fmt.Sprintf("The %s field must be greater than or equal to %s.", field, e.Param())
		case "lte":
			message = fmt.Sprintf("The %s field must be less than or equal to %s.", field, e.Param())
		case "ltefield":
			message = fmt.Sprintf("The %s field may not exceed %s.", field, strings.ToLower(e.Param()))
		case "oneof":
			message = fmt.Sprintf("The %s field must be one of the following values: %s.", field, e.Param())
		case "url":
			message = fmt.Sprintf("The %s field must be a valid URL.", field)
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag.", e.Field(), e.Tag())
		}
		errorMap[e.Field()] = message
	}
	return errorMap
}
