package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidState = errors.New("invalid state transition")
	ErrExtraction   = errors.New("text extraction failed")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFoundError builds a NOT_FOUND AppError for a missing resource.
func NotFoundError(resource, id string) error {
	return NewAppError("NOT_FOUND", fmt.Sprintf("%s %s not found", resource, id), ErrNotFound)
}

// InvalidStateError builds an INVALID_STATE AppError for a rejected transition.
func InvalidStateError(from, to string) error {
	return NewAppError("INVALID_STATE", fmt.Sprintf("cannot transition from %s to %s", from, to), ErrInvalidState)
}

// AuthError builds an AUTH AppError. AI credential failures must surface as
// job failures, never degrade silently.
func AuthError(message string, cause error) error {
	return NewAppError("AUTH", message, errors.Join(ErrUnauthorized, cause))
}

// ExtractionError builds an EXTRACTION AppError for a fatal no-text outcome.
func ExtractionError(message string, cause error) error {
	return NewAppError("EXTRACTION", message, errors.Join(ErrExtraction, cause))
}
