package moderation

import (
	"fmt"

	"github.com/pbaille/notemarket/internal/domain"
)

// ActionType is a creator's response to a detected clone
type ActionType string

const (
	TakedownRequested ActionType = "TAKEDOWN_REQUESTED"
	ResaleAllowed     ActionType = "RESALE_ALLOWED"
	ResaleDenied      ActionType = "RESALE_DENIED"
	CloneDismissed    ActionType = "CLONE_DISMISSED"
)

// ActionTypes lists every action in a stable order
var ActionTypes = []ActionType{TakedownRequested, ResaleAllowed, ResaleDenied, CloneDismissed}

// ParseActionType converts wire input to an ActionType
func ParseActionType(s string) (ActionType, error) {
	for _, a := range ActionTypes {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// Transition returns the creator action and resale flag a record moves to.
// Dismissing a clone keeps both as they are.
func Transition(action ActionType, current domain.CloneRecord) (domain.CreatorAction, *bool, error) {
	switch action {
	case TakedownRequested:
		return domain.ActionTakedownRequested, current.ResaleAllowed, nil
	case ResaleAllowed:
		return domain.ActionAllowed, boolPtr(true), nil
	case ResaleDenied:
		return domain.ActionDenied, boolPtr(false), nil
	case CloneDismissed:
		return current.CreatorAction, current.ResaleAllowed, nil
	default:
		return "", nil, &domain.ActionError{CloneID: current.ID, Reason: domain.ReasonUnknownAction}
	}
}

func (a ActionType) resultMessage() string {
	switch a {
	case TakedownRequested:
		return "Takedown request submitted"
	case ResaleAllowed:
		return "Resale allowed"
	case ResaleDenied:
		return "Resale denied"
	case CloneDismissed:
		return "Clone dismissed"
	default:
		return string(a)
	}
}

func boolPtr(b bool) *bool { return &b }
