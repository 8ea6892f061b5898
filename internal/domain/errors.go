package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a postcode that must exist is absent.
	ErrNotFound = errors.New("postal code not found")

	// ErrInvalidArgument is returned for malformed pagination or coordinates.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateRace is returned by a store when a concurrent insert of the
	// same postcode won the unique constraint. Callers retry once.
	ErrDuplicateRace = errors.New("concurrent insert of postal code")
)

// CodeNotFoundError identifies which postcode failed to resolve.
type CodeNotFoundError struct {
	Code string
}

func (e *CodeNotFoundError) Error() string {
	return fmt.Sprintf("Postal code not found: %s", e.Code)
}

// Is makes CodeNotFoundError match ErrNotFound.
func (e *CodeNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewCodeNotFound returns a CodeNotFoundError for code.
func NewCodeNotFound(code string) error {
	return &CodeNotFoundError{Code: code}
}
