package workflow

import (
	"errors"
	"fmt"

	"github.com/debemdeboas/locs-review/internal/model"
)

var (
	// ErrInconsistentState marks an approval that published the record but
	// could not relocate the blob. Retrying Approve is safe.
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrCleanupIncomplete marks a rejection that removed the record but left
	// the blob behind. The item is no longer pending.
	ErrCleanupIncomplete = errors.New("cleanup incomplete")
)

// ResourceError is a genuine failure of a collaborator call.
type ResourceError struct {
	Store string // "metadata" or "blob"
	Op    string
	Cause error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Cause)
}

func (e *ResourceError) Unwrap() error { return e.Cause }

// StepError says which step of which action failed for which item.
type StepError struct {
	Action Action
	Step   Step
	ID     model.ItemID
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: step %s failed: %v", e.Action, e.ID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type InconsistentStateError struct {
	ID  model.ItemID
	Err error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("item %s is published but its blob was not relocated: %v", e.ID, e.Err)
}

func (e *InconsistentStateError) Is(target error) bool { return target == ErrInconsistentState }

func (e *InconsistentStateError) Unwrap() error { return e.Err }

type CleanupIncompleteError struct {
	ID  model.ItemID
	Key string
	Err error
}

func (e *CleanupIncompleteError) Error() string {
	return fmt.Sprintf("item %s removed but blob %s is orphaned: %v", e.ID, e.Key, e.Err)
}

func (e *CleanupIncompleteError) Is(target error) bool { return target == ErrCleanupIncomplete }

func (e *CleanupIncompleteError) Unwrap() error { return e.Err }

// IsValidation reports whether err rejected the input before any side effect.
func IsValidation(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr)
}

// ItemRemoved reports whether the item left the pending table despite err.
func ItemRemoved(err error) bool {
	return err == nil || errors.Is(err, ErrCleanupIncomplete)
}
