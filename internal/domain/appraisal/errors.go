package appraisal

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrGuardViolation     = errors.New("guard violation")
	ErrPersistence        = errors.New("persistence failure")
	ErrScoring            = errors.New("scoring failure")
	ErrNotFound           = errors.New("appraisal not found")
	ErrAlreadyExists      = errors.New("appraisal already exists for teacher and year")
	ErrLocked             = errors.New("appraisal is locked")
	ErrNotEditable        = errors.New("appraisal cannot be edited in its current status")
	ErrOverrideNotAllowed = errors.New("score override not allowed")
	ErrInvalidInput       = errors.New("invalid appraisal input")
	ErrRubricViolation    = errors.New("rubric violation")
)

// TransitionError describes a rejected transition. Err is ErrInvalidTransition
// or ErrGuardViolation; Condition names the unmet guard condition.
type TransitionError struct {
	From      State
	To        State
	Condition string
	Err       error
}

func (e *TransitionError) Error() string {
	if e.Condition != "" {
		return fmt.Sprintf("%v: %s -> %s: %s", e.Err, e.From, e.To, e.Condition)
	}
	return fmt.Sprintf("%v: %s -> %s", e.Err, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
