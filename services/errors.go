package services

import "errors"

// Admission errors — the request is rejected, nothing was mutated.
var (
	ErrProjectNotAccepting   = errors.New("project is not accepting contributions")
	ErrCapacityExceeded      = errors.New("project participant limit reached")
	ErrDuplicateContribution = errors.New("challenge already completed by this user")
)

// Transition errors — a race was resolved against the caller.
var (
	ErrInvalidTransition = errors.New("invalid project status transition")
	ErrAlreadyProcessed  = errors.New("project already processed or processing")
)

// Composition errors — the project rolled back to collecting and stays
// usable.
var (
	ErrNoContributions        = errors.New("project has no contributions")
	ErrUnsupportedProjectType = errors.New("unsupported project type")
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUserNotFound    = errors.New("user not found")
)

// CompositionError carries the underlying tool failure (including timeout)
// out of the orchestrator after the rollback to collecting.
type CompositionError struct {
	Cause error
}

func (e *CompositionError) Error() string {
	return "composition failed: " + e.Cause.Error()
}

func (e *CompositionError) Unwrap() error {
	return e.Cause
}
