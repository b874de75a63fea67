package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NotFoundError through errors.Is
var ErrNotFound = errors.New("not found")

// InvalidScoreError reports a similarity score outside [0,100]
type InvalidScoreError struct {
	Score float64
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid similarity score %v: must be within [0,100]", e.Score)
}

// NotFoundError reports an unknown note, clone or creator id
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports a row that already exists under a unique key
type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Key)
}

// ActionError reports a moderation transition that was rejected
type ActionError struct {
	CloneID int64
	Reason  string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("action on clone %d rejected: %s: %v", e.CloneID, e.Reason, e.Err)
	}
	return fmt.Sprintf("action on clone %d rejected: %s", e.CloneID, e.Reason)
}

func (e *ActionError) Unwrap() error { return e.Err }

// MessageError reports a cloner message that could not be delivered
type MessageError struct {
	CloneID int64
	Reason  string
	Err     error
}

func (e *MessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("message for clone %d failed: %s: %v", e.CloneID, e.Reason, e.Err)
	}
	return fmt.Sprintf("message for clone %d failed: %s", e.CloneID, e.Reason)
}

func (e *MessageError) Unwrap() error { return e.Err }

// LookupError reports transparency data that the collaborator could not supply
type LookupError struct {
	NoteID int64
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("transparency lookup for note %d: %v", e.NoteID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Reasons carried by ActionError
const (
	ReasonNotOwner      = "creator does not own the source note"
	ReasonTerminal      = "takedown already requested"
	ReasonStoreRejected = "store rejected the transition"
	ReasonBadDecision   = "resale decision contradicts the action"
	ReasonUnknownAction = "unknown action type"
)
