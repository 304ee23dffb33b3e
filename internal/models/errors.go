package models

import "errors"

// Error kinds surfaced by the journaling core. Callers match them with errors.Is.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrValidationRejected  = errors.New("validation rejected")
	ErrCollaboratorFailure = errors.New("sentiment collaborator failure")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrSessionNotFound     = errors.New("session not found")
)

// ValidationError is a rejected transition carrying a user-visible warning.
// The session is left exactly as it was.
type ValidationError struct {
	Warning string
}

func (e *ValidationError) Error() string {
	return "validation rejected: " + e.Warning
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationRejected
}
