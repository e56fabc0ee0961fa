package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a required field is missing or invalid.
	// It is always raised before any write begins.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced invoice, receipt or payment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the acting principal may not mutate financial records.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when the store reports a uniqueness violation,
	// typically a duplicate document number.
	ErrConflict = errors.New("conflict")

	// ErrStoreFailure wraps any read or write failure reported by the relational store.
	ErrStoreFailure = errors.New("store failure")

	// ErrTimeout is returned when a unit of work exceeds its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrForbidden is returned when an authenticated actor lacks the role for an action.
	ErrForbidden = fmt.Errorf("%w: forbidden", ErrUnauthorized)

	ErrInvalidDocumentType = fmt.Errorf("%w: invalid document type", ErrValidation)
	ErrInvalidYear         = fmt.Errorf("%w: invalid year", ErrValidation)
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StepError reports which step of a cascade plan failed. The whole plan has
// been rolled back by the time the caller sees it.
type StepError struct {
	Plan PlanKind
	Step StepKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s: %v", e.Plan, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the operation may succeed if run again.
// Only document-number conflicts qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError reports whether err was caused by the caller's input or identity.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrConflict)
}
