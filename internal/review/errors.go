package review

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a finding, ledger entry, or pending action id that
	// does not exist in the expected collection.
	ErrNotFound = errors.New("review: not found")

	// ErrInvalidState reports an operation attempted against data that does
	// not support it (restoring a non-delete entry, seeding a dirty session).
	ErrInvalidState = errors.New("review: invalid state")

	// ErrActionNotFound reports an unknown pending action id.
	ErrActionNotFound = errors.New("review: pending action not found")

	// ErrAlreadyInProgress reports a regeneration requested while one is in flight.
	ErrAlreadyInProgress = errors.New("review: regeneration already in progress")

	// ErrNothingToRegenerate reports a regeneration requested with no pending
	// edits or an empty working set.
	ErrNothingToRegenerate = errors.New("review: nothing to regenerate")
)

// CollaboratorError wraps any failure from the external AI provider. The
// provider's message is preserved for diagnostics; session state is never
// altered by an operation that returns one.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("review: collaborator %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
