package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

var (
	// ErrConflict means the order was no longer in the status the caller
	// observed. It always arrives wrapped in a *ConflictError.
	ErrConflict          = errors.New("order changed on another terminal")
	ErrAllocation        = errors.New("order number allocation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrStoreClosed       = errors.New("restaurant is closed")
	ErrBelowMinimum      = errors.New("order below minimum value")
)

// ConflictError carries the status the order actually had when a
// transition lost the race.
type ConflictError struct {
	OrderID  uuid.UUID
	Observed models.OrderStatus
	Current  models.OrderStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s is %s, expected %s", e.OrderID, e.Current, e.Observed)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PartialCommitError is returned when the order row was committed but its
// items were not. The order exists and is flagged as inconsistent.
type PartialCommitError struct {
	OrderID     uuid.UUID
	OrderNumber int64
	Err         error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("order #%d created without items: %v", e.OrderNumber, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// ValidationError lists the request fields that were rejected.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return fmt.Sprintf("%s: %s", field, msg)
		}
	}
	return fmt.Sprintf("%d invalid fields", len(e.Fields))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
