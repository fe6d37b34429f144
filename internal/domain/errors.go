package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the sentinel behind every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the sentinel behind every *NotFoundError.
	ErrNotFound = errors.New("order not found")

	// ErrConflict is returned by a store when a create collides with an
	// existing id or a save targets an id that was never created.
	ErrConflict = errors.New("order conflict")

	// ErrInvalidTransition is returned when a lifecycle method is called
	// from a status that does not allow it.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMalformedRequest marks a fulfillment message that can never be
	// processed, whatever the state of the store.
	ErrMalformedRequest = errors.New("malformed fulfillment request")
)

// ValidationError describes one rejected input field. Message is safe to
// show to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError is returned when no order exists for ID.
type NotFoundError struct {
	ID string
}

func NewNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func transitionError(from Status, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
