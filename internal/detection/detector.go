// Package detection finds notes that resemble each other and records the
// pairs that cross the persistence threshold as clone records.
package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pbaille/notemarket/internal/classify"
	"github.com/pbaille/notemarket/internal/domain"
)

// DefaultCandidateLimit bounds how many neighbours a scan considers
const DefaultCandidateLimit = 10

// CandidateProvider ranks existing notes by similarity to a text.
// noteID is the note the text belongs to, or 0 for an unpublished draft.
type CandidateProvider interface {
	FindSimilarCandidates(ctx context.Context, noteID int64, text string, limit int) ([]domain.CandidateMatch, error)
}

// Store is the persistence the detector needs
type Store interface {
	GetNote(ctx context.Context, id int64) (domain.Note, error)
	PersistCloneRecord(ctx context.Context, rec domain.CloneRecord) (domain.CloneRecord, bool, error)
	UnscannedNotes(ctx context.Context, limit int) ([]domain.Note, error)
	MarkScanned(ctx context.Context, noteID int64) error
}

// DraftCheck is the pre-publish similarity warning for a draft
type DraftCheck struct {
	Level    domain.WarningLevel     `json:"level"`
	TopScore float64                 `json:"top_score"`
	Matches  []domain.CandidateMatch `json:"matches"`
}

// SweepResult summarises one background sweep
type SweepResult struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// Detector turns similarity candidates into clone records
type Detector struct {
	store      Store
	candidates CandidateProvider
	limit      int
	batch      int
}

// Option configures a Detector
type Option func(*Detector)

// WithCandidateLimit sets how many candidates each scan requests
func WithCandidateLimit(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithSweepBatch sets how many unscanned notes one sweep processes
func WithSweepBatch(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.batch = n
		}
	}
}

// New creates a Detector
func New(store Store, candidates CandidateProvider, opts ...Option) *Detector {
	d := &Detector{
		store:      store,
		candidates: candidates,
		limit:      DefaultCandidateLimit,
		batch:      100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ScanNote compares a published note against the catalogue and persists a
// clone record for every match scoring at least the persistence threshold.
// The earlier note of each pair is the source. Only newly created records
// are returned. The note is marked scanned once every candidate is
// persisted, so a failed scan is picked up again by the next Sweep.
func (d *Detector) ScanNote(ctx context.Context, noteID int64) ([]domain.CloneRecord, error) {
	note, err := d.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("scan note %d: %w", noteID, err)
	}

	matches, err := d.candidates.FindSimilarCandidates(ctx, note.ID, noteText(note), d.limit)
	if err != nil {
		return nil, fmt.Errorf("find candidates for note %d: %w", noteID, err)
	}

	created := []domain.CloneRecord{}
	for _, m := range matches {
		if m.NoteID == note.ID {
			continue
		}
		status, ok, err := classify.Status(m.Score)
		if err != nil {
			slog.Warn("discarding candidate", "note_id", note.ID, "candidate_id", m.NoteID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		other, err := d.store.GetNote(ctx, m.NoteID)
		if err != nil {
			return created, fmt.Errorf("load candidate %d: %w", m.NoteID, err)
		}
		source, suspect := orderPair(note, other)

		rec, isNew, err := d.store.PersistCloneRecord(ctx, domain.CloneRecord{
			SourceNoteID:    source.ID,
			SuspectNoteID:   suspect.ID,
			SimilarityScore: m.Score,
			Status:          status,
		})
		if err != nil {
			return created, fmt.Errorf("persist clone %d->%d: %w", source.ID, suspect.ID, err)
		}
		if isNew {
			slog.Info("clone detected", "clone_id", rec.ID, "source_id", source.ID,
				"suspect_id", suspect.ID, "score", m.Score, "status", status)
			created = append(created, rec)
		}
	}

	if err := d.store.MarkScanned(ctx, note.ID); err != nil {
		return created, fmt.Errorf("mark note %d scanned: %w", note.ID, err)
	}
	return created, nil
}

// CheckDraft warns about an unpublished text without persisting anything
func (d *Detector) CheckDraft(ctx context.Context, text string) (DraftCheck, error) {
	matches, err := d.candidates.FindSimilarCandidates(ctx, 0, text, d.limit)
	if err != nil {
		return DraftCheck{}, fmt.Errorf("find candidates for draft: %w", err)
	}

	check := DraftCheck{Level: domain.WarningNone, Matches: []domain.CandidateMatch{}}
	for _, m := range matches {
		if err := classify.Validate(m.Score); err != nil {
			slog.Warn("discarding candidate", "candidate_id", m.NoteID, "error", err)
			continue
		}
		if m.Score == 0 {
			continue
		}
		check.Matches = append(check.Matches, m)
		if m.Score > check.TopScore {
			check.TopScore = m.Score
		}
	}
	sort.SliceStable(check.Matches, func(i, j int) bool {
		return check.Matches[i].Score > check.Matches[j].Score
	})

	level, err := classify.Warning(check.TopScore)
	if err != nil {
		return DraftCheck{}, err
	}
	check.Level = level
	return check, nil
}

// Sweep scans notes whose scan has not completed yet. Failures are logged and
// counted so one bad note does not stop the batch.
func (d *Detector) Sweep(ctx context.Context) (SweepResult, error) {
	notes, err := d.store.UnscannedNotes(ctx, d.batch)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list unscanned notes: %w", err)
	}

	var res SweepResult
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		created, err := d.ScanNote(ctx, n.ID)
		res.Scanned++
		res.Created += len(created)
		if err != nil {
			res.Failed++
			slog.Warn("sweep scan failed", "note_id", n.ID, "error", err)
		}
	}
	if res.Scanned > 0 {
		slog.Info("sweep complete", "scanned", res.Scanned, "created", res.Created, "failed", res.Failed)
	}
	return res, nil
}

// orderPair puts the earlier note first. Equal timestamps fall back to ID.
func orderPair(a, b domain.Note) (source, suspect domain.Note) {
	if b.CreatedAt.Before(a.CreatedAt) || (b.CreatedAt.Equal(a.CreatedAt) && b.ID < a.ID) {
		return b, a
	}
	return a, b
}

func noteText(n domain.Note) string {
	if n.Title == "" {
		return n.Body
	}
	return n.Title + "\n\n" + n.Body
}
