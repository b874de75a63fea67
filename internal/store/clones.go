package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pbaille/notemarket/internal/domain"
)

const cloneColumns = `id, source_note_id, suspect_note_id, similarity_score, status,
	creator_action, resale_allowed, detected_at, last_action_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanClone reads the clone columns, after any leading destinations
func scanClone(row rowScanner, lead ...any) (domain.CloneRecord, error) {
	var (
		r       domain.CloneRecord
		resale  sql.NullBool
		lastAct sql.NullTime
		status  string
		action  string
	)
	dest := append(lead, &r.ID, &r.SourceNoteID, &r.SuspectNoteID, &r.SimilarityScore, &status,
		&action, &resale, &r.DetectedAt, &lastAct)
	if err := row.Scan(dest...); err != nil {
		return domain.CloneRecord{}, err
	}
	r.Status = domain.CloneStatus(status)
	r.CreatorAction = domain.CreatorAction(action)
	if resale.Valid {
		v := resale.Bool
		r.ResaleAllowed = &v
	}
	if lastAct.Valid {
		t := lastAct.Time
		r.LastActionAt = &t
	}
	return r, nil
}

// PersistCloneRecord stores a detected clone. A record already present for
// the same ordered pair is returned unchanged with created=false.
func (s *Store) PersistCloneRecord(ctx context.Context, rec domain.CloneRecord) (domain.CloneRecord, bool, error) {
	if rec.SourceNoteID == rec.SuspectNoteID {
		return domain.CloneRecord{}, false, fmt.Errorf("persist clone record: note %d cannot clone itself", rec.SourceNoteID)
	}
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO clone_records
			(source_note_id, suspect_note_id, similarity_score, status, creator_action, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SourceNoteID, rec.SuspectNoteID, rec.SimilarityScore, string(rec.Status),
		string(domain.ActionPending), rec.DetectedAt)
	if err != nil {
		return domain.CloneRecord{}, false, fmt.Errorf("insert clone record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.CloneRecord{}, false, fmt.Errorf("insert clone record: %w", err)
	}

	existing, err := scanClone(s.db.QueryRowContext(ctx,
		"SELECT "+cloneColumns+" FROM clone_records WHERE source_note_id = ? AND suspect_note_id = ?",
		rec.SourceNoteID, rec.SuspectNoteID,
	))
	if err != nil {
		return domain.CloneRecord{}, false, fmt.Errorf("reload clone record: %w", err)
	}
	return existing, affected > 0, nil
}

// GetClone retrieves a clone record by ID
func (s *Store) GetClone(ctx context.Context, id int64) (domain.CloneRecord, error) {
	r, err := scanClone(s.db.QueryRowContext(ctx,
		"SELECT "+cloneColumns+" FROM clone_records WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CloneRecord{}, &domain.NotFoundError{Kind: "clone", ID: id}
	}
	if err != nil {
		return domain.CloneRecord{}, fmt.Errorf("get clone: %w", err)
	}
	return r, nil
}

// TopCloneForSuspect returns the strongest record naming the note as the
// suspect, or nil if there is none
func (s *Store) TopCloneForSuspect(ctx context.Context, noteID int64) (*domain.CloneRecord, error) {
	r, err := scanClone(s.db.QueryRowContext(ctx,
		"SELECT "+cloneColumns+" FROM clone_records WHERE suspect_note_id = ? ORDER BY similarity_score DESC, id LIMIT 1",
		noteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("top clone for suspect: %w", err)
	}
	return &r, nil
}

// UpdateCloneAction applies a moderation transition
func (s *Store) UpdateCloneAction(ctx context.Context, u domain.CloneUpdate) error {
	var resale any
	if u.ResaleAllowed != nil {
		resale = *u.ResaleAllowed
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE clone_records SET creator_action = ?, resale_allowed = ?, last_action_at = ? WHERE id = ?",
		string(u.CreatorAction), resale, u.ActedAt, u.CloneID,
	)
	if err != nil {
		return fmt.Errorf("update clone action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update clone action: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "clone", ID: u.CloneID}
	}
	return nil
}

// AppendActionHistory records an audit entry
func (s *Store) AppendActionHistory(ctx context.Context, e domain.ActionHistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO clone_actions (action_id, clone_id, action_type, message, creator_username, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ActionID, e.CloneID, e.ActionType, e.Message, e.CreatorUsername, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append action history: %w", err)
	}
	return nil
}

// ListActionHistory returns the audit entries of a clone, oldest first
func (s *Store) ListActionHistory(ctx context.Context, cloneID int64) ([]domain.ActionHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT action_id, clone_id, action_type, message, creator_username, created_at FROM clone_actions WHERE clone_id = ? ORDER BY created_at, rowid",
		cloneID,
	)
	if err != nil {
		return nil, fmt.Errorf("list action history: %w", err)
	}
	defer rows.Close()

	entries := []domain.ActionHistoryEntry{}
	for rows.Next() {
		var e domain.ActionHistoryEntry
		if err := rows.Scan(&e.ActionID, &e.CloneID, &e.ActionType, &e.Message, &e.CreatorUsername, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NotifyCloner stores a message in the recipient's inbox
func (s *Store) NotifyCloner(ctx context.Context, m domain.ClonerMessage) error {
	if m.SentAt.IsZero() {
		m.SentAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO cloner_messages (clone_id, from_creator_id, to_creator_id, subject, body, sent_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.CloneID, m.FromCreatorID, m.ToCreatorID, m.Subject, m.Body, m.SentAt,
	)
	if err != nil {
		return fmt.Errorf("insert cloner message: %w", err)
	}
	return nil
}

// ListMessages returns the inbox of a creator, newest first
func (s *Store) ListMessages(ctx context.Context, toCreatorID int64) ([]domain.ClonerMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, clone_id, from_creator_id, to_creator_id, subject, body, sent_at FROM cloner_messages WHERE to_creator_id = ? ORDER BY sent_at DESC, id DESC",
		toCreatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ClonerMessage
	for rows.Next() {
		var m domain.ClonerMessage
		if err := rows.Scan(&m.ID, &m.CloneID, &m.FromCreatorID, &m.ToCreatorID, &m.Subject, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetCreatorCloneRecords returns the creator's notes that have clones, each
// with its clone records
func (s *Store) GetCreatorCloneRecords(ctx context.Context, creatorID int64) ([]domain.CloneGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.creator_id, n.title, n.body, n.price_cents, n.created_at,
			c.id, c.source_note_id, c.suspect_note_id, c.similarity_score, c.status,
			c.creator_action, c.resale_allowed, c.detected_at, c.last_action_at
		FROM notes n
		JOIN clone_records c ON c.source_note_id = n.id
		WHERE n.creator_id = ?
		ORDER BY n.created_at, n.id, c.similarity_score DESC, c.id
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("creator clone records: %w", err)
	}
	defer rows.Close()

	var groups []domain.CloneGroup
	for rows.Next() {
		var n domain.Note
		r, err := scanClone(rows, &n.ID, &n.CreatorID, &n.Title, &n.Body, &n.PriceCents, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan clone group: %w", err)
		}

		if len(groups) == 0 || groups[len(groups)-1].OriginalNote.ID != n.ID {
			groups = append(groups, domain.CloneGroup{OriginalNote: n})
		}
		last := &groups[len(groups)-1]
		last.Clones = append(last.Clones, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clone groups: %w", err)
	}
	return groups, nil
}
