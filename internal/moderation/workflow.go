// Package moderation implements the creator's response workflow for detected
// clones: single and bulk actions, messages to the cloner and the audit log.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/notemarket/internal/domain"
)

// Store is the clone record store the workflow mutates
type Store interface {
	GetClone(ctx context.Context, id int64) (domain.CloneRecord, error)
	GetNote(ctx context.Context, id int64) (domain.Note, error)
	GetCreator(ctx context.Context, id int64) (domain.Creator, error)
	UpdateCloneAction(ctx context.Context, update domain.CloneUpdate) error
	AppendActionHistory(ctx context.Context, entry domain.ActionHistoryEntry) error
	ListActionHistory(ctx context.Context, cloneID int64) ([]domain.ActionHistoryEntry, error)
}

// Notifier delivers messages to the owner of a clone
type Notifier interface {
	NotifyCloner(ctx context.Context, msg domain.ClonerMessage) error
}

// ActionRequest is a single moderation action
type ActionRequest struct {
	CreatorID      int64
	CloneID        int64
	Action         ActionType
	Message        string
	ResaleDecision *bool
}

// ActionResult reports a successful action
type ActionResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ActionID string `json:"action_id"`
}

// BulkRequest applies one action to many clone records
type BulkRequest struct {
	CreatorID int64
	CloneIDs  []int64
	Action    ActionType
	Message   string
}

// BulkResult counts per-item outcomes of a bulk request
type BulkResult struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Errors    int  `json:"errors"`
}

// Workflow runs moderation actions against a Store
type Workflow struct {
	store         Store
	notifier      Notifier
	now           func() time.Time
	newID         func() string
	terminalGuard bool
}

// Option configures a Workflow
type Option func(*Workflow)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithIDGenerator replaces the action id generator
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) { w.newID = newID }
}

// WithTerminalGuard rejects further actions on records whose takedown has
// already been requested. Without it such transitions are accepted.
func WithTerminalGuard() Option {
	return func(w *Workflow) { w.terminalGuard = true }
}

// New creates a Workflow
func New(store Store, notifier Notifier, opts ...Option) *Workflow {
	w := &Workflow{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleAction validates ownership, applies the transition and appends an
// audit entry. Unknown ids yield a NotFoundError, rejected transitions an
// ActionError.
func (w *Workflow) HandleAction(ctx context.Context, req ActionRequest) (ActionResult, error) {
	record, err := w.store.GetClone(ctx, req.CloneID)
	if err != nil {
		return ActionResult{}, err
	}

	creator, err := w.authorize(ctx, req.CreatorID, record)
	if err != nil {
		return ActionResult{}, err
	}

	if w.terminalGuard && record.CreatorAction == domain.ActionTakedownRequested {
		return ActionResult{}, &domain.ActionError{CloneID: record.ID, Reason: domain.ReasonTerminal}
	}

	next, resale, err := Transition(req.Action, record)
	if err != nil {
		return ActionResult{}, err
	}
	if req.ResaleDecision != nil && resale != nil && *req.ResaleDecision != *resale {
		return ActionResult{}, &domain.ActionError{CloneID: record.ID, Reason: domain.ReasonBadDecision}
	}

	actedAt := w.now()
	if err := w.store.UpdateCloneAction(ctx, domain.CloneUpdate{
		CloneID:       record.ID,
		CreatorAction: next,
		ResaleAllowed: resale,
		ActedAt:       actedAt,
	}); err != nil {
		return ActionResult{}, &domain.ActionError{CloneID: record.ID, Reason: domain.ReasonStoreRejected, Err: err}
	}

	entry := domain.ActionHistoryEntry{
		ActionID:        w.newID(),
		CloneID:         record.ID,
		ActionType:      string(req.Action),
		Message:         req.Message,
		CreatedAt:       actedAt,
		CreatorUsername: creator.Username,
	}
	if err := w.store.AppendActionHistory(ctx, entry); err != nil {
		return ActionResult{}, &domain.ActionError{CloneID: record.ID, Reason: "audit entry not recorded", Err: err}
	}

	slog.Info("moderation action applied",
		"clone_id", record.ID, "action", req.Action, "creator_action", next, "action_id", entry.ActionID)

	return ActionResult{Success: true, Message: req.Action.resultMessage(), ActionID: entry.ActionID}, nil
}

// authorize checks that the creator owns the record's source note
func (w *Workflow) authorize(ctx context.Context, creatorID int64, record domain.CloneRecord) (domain.Creator, error) {
	creator, err := w.store.GetCreator(ctx, creatorID)
	if err != nil {
		return domain.Creator{}, err
	}
	source, err := w.store.GetNote(ctx, record.SourceNoteID)
	if err != nil {
		return domain.Creator{}, err
	}
	if source.CreatorID != creator.ID {
		return domain.Creator{}, &domain.ActionError{CloneID: record.ID, Reason: domain.ReasonNotOwner}
	}
	return creator, nil
}

// HandleBulkActions applies the action to every id in order. A failing item
// is counted and the batch moves on.
func (w *Workflow) HandleBulkActions(ctx context.Context, req BulkRequest) BulkResult {
	tally := bulkTally{}
	for _, id := range req.CloneIDs {
		_, err := w.HandleAction(ctx, ActionRequest{
			CreatorID: req.CreatorID,
			CloneID:   id,
			Action:    req.Action,
			Message:   req.Message,
		})
		if err != nil {
			slog.Warn("bulk action item failed", "clone_id", id, "action", req.Action, "error", err)
		}
		tally = tally.record(err)
	}
	return tally.result()
}

type bulkTally struct {
	processed int
	errors    int
}

func (t bulkTally) record(err error) bulkTally {
	if err != nil {
		t.errors++
	} else {
		t.processed++
	}
	return t
}

func (t bulkTally) result() BulkResult {
	return BulkResult{Success: t.errors == 0, Processed: t.processed, Errors: t.errors}
}

// SendMessageToCloner delivers a message to the owner of the suspect note.
// It never changes the clone record.
func (w *Workflow) SendMessageToCloner(ctx context.Context, creatorID, cloneID int64, subject, body string) error {
	subject, body = strings.TrimSpace(subject), strings.TrimSpace(body)
	if subject == "" || body == "" {
		return &domain.MessageError{CloneID: cloneID, Reason: "subject and body are required"}
	}

	record, err := w.store.GetClone(ctx, cloneID)
	if err != nil {
		return &domain.MessageError{CloneID: cloneID, Reason: "clone not resolved", Err: err}
	}
	if _, err := w.authorize(ctx, creatorID, record); err != nil {
		return &domain.MessageError{CloneID: cloneID, Reason: "sender not authorized", Err: err}
	}
	suspect, err := w.store.GetNote(ctx, record.SuspectNoteID)
	if err != nil {
		return &domain.MessageError{CloneID: cloneID, Reason: "cloner not resolved", Err: err}
	}

	msg := domain.ClonerMessage{
		CloneID:       cloneID,
		FromCreatorID: creatorID,
		ToCreatorID:   suspect.CreatorID,
		Subject:       subject,
		Body:          body,
		SentAt:        w.now(),
	}
	if err := w.notifier.NotifyCloner(ctx, msg); err != nil {
		return &domain.MessageError{CloneID: cloneID, Reason: "delivery failed", Err: err}
	}
	return nil
}

// GetActionHistory returns the audit log of a clone record, oldest first
func (w *Workflow) GetActionHistory(ctx context.Context, cloneID int64) ([]domain.ActionHistoryEntry, error) {
	if _, err := w.store.GetClone(ctx, cloneID); err != nil {
		return nil, err
	}
	entries, err := w.store.ListActionHistory(ctx, cloneID)
	if err != nil {
		return nil, fmt.Errorf("list action history: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}
