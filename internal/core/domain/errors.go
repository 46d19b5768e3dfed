package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyAssigned    = errors.New("role already assigned")
	ErrNotAssigned        = errors.New("role not assigned")
)

// ErrValidation is returned when a request body does not conform to its JSON
// schema. Errors holds one message per failed constraint.
type ErrValidation struct {
	Errors []string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}
