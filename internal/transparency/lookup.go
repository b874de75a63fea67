package transparency

import (
	"context"

	"github.com/pbaille/notemarket/internal/domain"
)

// Source is the read side of the store needed to resolve transparency data
type Source interface {
	GetNote(ctx context.Context, id int64) (domain.Note, error)
	GetCreator(ctx context.Context, id int64) (domain.Creator, error)
	// TopCloneForSuspect returns the highest-scoring record where the note is
	// the suspect, or nil when the note has no clone record.
	TopCloneForSuspect(ctx context.Context, noteID int64) (*domain.CloneRecord, error)
}

// StoreLookup resolves transparency results from note, clone and creator rows
type StoreLookup struct {
	src Source
}

// NewStoreLookup creates a StoreLookup
func NewStoreLookup(src Source) *StoreLookup {
	return &StoreLookup{src: src}
}

// LookupTransparency implements Lookup. Every failure is reported as a
// LookupError wrapping the cause.
func (l *StoreLookup) LookupTransparency(ctx context.Context, noteID int64) (*domain.TransparencyResult, error) {
	if _, err := l.src.GetNote(ctx, noteID); err != nil {
		return nil, &domain.LookupError{NoteID: noteID, Err: err}
	}

	record, err := l.src.TopCloneForSuspect(ctx, noteID)
	if err != nil {
		return nil, &domain.LookupError{NoteID: noteID, Err: err}
	}
	if record == nil {
		return l.build(Precursor{NoteID: noteID})
	}

	original, err := l.src.GetNote(ctx, record.SourceNoteID)
	if err != nil {
		return nil, &domain.LookupError{NoteID: noteID, Err: err}
	}
	creator, err := l.src.GetCreator(ctx, original.CreatorID)
	if err != nil {
		return nil, &domain.LookupError{NoteID: noteID, Err: err}
	}

	return l.build(Precursor{
		NoteID:          noteID,
		IsClone:         true,
		SimilarityScore: record.SimilarityScore,
		OriginalNote: &domain.OriginalNote{
			ID:              original.ID,
			Title:           original.Title,
			CreatorID:       creator.ID,
			CreatorUsername: creator.Username,
			CreatorIsPublic: creator.IsPublic,
			CreatedAt:       original.CreatedAt,
		},
	})
}

func (l *StoreLookup) build(p Precursor) (*domain.TransparencyResult, error) {
	result, err := Build(p)
	if err != nil {
		return nil, &domain.LookupError{NoteID: p.NoteID, Err: err}
	}
	return result, nil
}
