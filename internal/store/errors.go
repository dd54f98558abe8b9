package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrInternal   = errors.New("internal error")

	// ErrNoDocument is returned by drivers when nothing matches.
	ErrNoDocument = errors.New("no document")
)

// ValidationError names the input field that broke a business rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a unique key already held by another record.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string { return e.Key + " is already exists" }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
