package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors - use with errors.Is()
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a resource conflict (e.g. already-assigned strokes)
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates authentication failure
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates authorization failure
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest indicates malformed input that is not a moderation rejection
	ErrBadRequest = errors.New("bad request")
)

// NotFoundError distinguishes which entity kind was missing.
type NotFoundError struct {
	Kind string // "room_not_found", "stroke_not_found", "object_not_found", "turn_not_found", "member_not_found"
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError builds a NotFoundError for the given kind and id.
func NewNotFoundError(kind string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ConflictError carries the ids of strokes already assigned to an object.
type ConflictError struct {
	StrokeIDs []uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("strokes already assigned: %v", e.StrokeIDs)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// ValidationError carries machine-readable moderation reasons for a 422 response.
type ValidationError struct {
	Message string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BadRequestError describes malformed input, e.g. strokes that do not belong to the room.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

func (e *BadRequestError) Unwrap() error {
	return ErrBadRequest
}
