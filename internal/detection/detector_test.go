package detection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/notemarket/internal/domain"
	"github.com/pbaille/notemarket/internal/store"
)

type fakeStore struct {
	notes     map[int64]domain.Note
	persisted []domain.CloneRecord
	seen      map[[2]int64]bool
	unscanned []domain.Note
	scanned   []int64
}

func newFakeStore(notes ...domain.Note) *fakeStore {
	fs := &fakeStore{notes: map[int64]domain.Note{}, seen: map[[2]int64]bool{}}
	for _, n := range notes {
		fs.notes[n.ID] = n
	}
	return fs
}

func (f *fakeStore) GetNote(_ context.Context, id int64) (domain.Note, error) {
	n, ok := f.notes[id]
	if !ok {
		return domain.Note{}, &domain.NotFoundError{Kind: "note", ID: id}
	}
	return n, nil
}

func (f *fakeStore) PersistCloneRecord(_ context.Context, rec domain.CloneRecord) (domain.CloneRecord, bool, error) {
	key := [2]int64{rec.SourceNoteID, rec.SuspectNoteID}
	if f.seen[key] {
		return rec, false, nil
	}
	f.seen[key] = true
	rec.ID = int64(len(f.persisted) + 1)
	rec.CreatorAction = domain.ActionPending
	f.persisted = append(f.persisted, rec)
	return rec, true, nil
}

func (f *fakeStore) UnscannedNotes(_ context.Context, _ int) ([]domain.Note, error) {
	return f.unscanned, nil
}

func (f *fakeStore) MarkScanned(_ context.Context, noteID int64) error {
	f.scanned = append(f.scanned, noteID)
	return nil
}

type fixedCandidates struct {
	matches []domain.CandidateMatch
	err     error
	calls   []int64
}

func (f *fixedCandidates) FindSimilarCandidates(_ context.Context, noteID int64, _ string, _ int) ([]domain.CandidateMatch, error) {
	f.calls = append(f.calls, noteID)
	return f.matches, f.err
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func note(id int64, age time.Duration) domain.Note {
	return domain.Note{ID: id, CreatorID: id * 10, Title: "note", Body: "body", CreatedAt: t0.Add(-age)}
}

func TestScanNoteClassifiesAndOrdersPairs(t *testing.T) {
	fs := newFakeStore(note(1, 0), note(2, time.Hour), note(3, 0), note(4, 2*time.Hour), note(5, 0))
	cands := &fixedCandidates{matches: []domain.CandidateMatch{
		{NoteID: 2, Score: 93},  // older, becomes the source
		{NoteID: 1, Score: 100}, // self match
		{NoteID: 3, Score: 72},  // newer, scanned note is the source
		{NoteID: 4, Score: 49.9},
		{NoteID: 5, Score: 140},
	}}
	d := New(fs, cands)

	created, err := d.ScanNote(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.Equal(t, int64(2), created[0].SourceNoteID)
	assert.Equal(t, int64(1), created[0].SuspectNoteID)
	assert.Equal(t, domain.StatusClone, created[0].Status)

	assert.Equal(t, int64(1), created[1].SourceNoteID)
	assert.Equal(t, int64(3), created[1].SuspectNoteID)
	assert.Equal(t, domain.StatusPotentialCopy, created[1].Status)

	again, err := d.ScanNote(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, fs.persisted, 2)
	assert.Equal(t, []int64{1, 1}, fs.scanned)
}

func TestScanNoteErrors(t *testing.T) {
	fs := newFakeStore(note(1, 0))
	d := New(fs, &fixedCandidates{})

	_, err := d.ScanNote(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	d = New(fs, &fixedCandidates{err: errors.New("index offline")})
	_, err = d.ScanNote(context.Background(), 1)
	assert.ErrorContains(t, err, "index offline")

	d = New(fs, &fixedCandidates{matches: []domain.CandidateMatch{{NoteID: 9, Score: 95}}})
	_, err = d.ScanNote(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// none of the failed scans count as complete
	assert.Empty(t, fs.scanned)
}

func TestCheckDraft(t *testing.T) {
	tests := []struct {
		name    string
		matches []domain.CandidateMatch
		level   domain.WarningLevel
		top     float64
		kept    int
	}{
		{"nothing similar", nil, domain.WarningNone, 0, 0},
		{"loose match", []domain.CandidateMatch{{NoteID: 1, Score: 12}}, domain.WarningLow, 12, 1},
		{"medium", []domain.CandidateMatch{{NoteID: 1, Score: 20}, {NoteID: 2, Score: 50}}, domain.WarningMedium, 50, 2},
		{"high", []domain.CandidateMatch{{NoteID: 1, Score: 80}, {NoteID: 2, Score: 0}}, domain.WarningHigh, 80, 1},
		{"invalid scores are ignored", []domain.CandidateMatch{{NoteID: 1, Score: -3}}, domain.WarningNone, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := &fixedCandidates{matches: tt.matches}
			fs := newFakeStore()
			d := New(fs, cands)
			check, err := d.CheckDraft(context.Background(), "draft")
			require.NoError(t, err)
			assert.Equal(t, tt.level, check.Level)
			assert.Equal(t, tt.top, check.TopScore)
			assert.Len(t, check.Matches, tt.kept)
			assert.Equal(t, []int64{0}, cands.calls)
			assert.Empty(t, fs.persisted)
		})
	}
}

func TestCheckDraftSortsMatches(t *testing.T) {
	d := New(newFakeStore(), &fixedCandidates{matches: []domain.CandidateMatch{
		{NoteID: 1, Score: 30}, {NoteID: 2, Score: 70}, {NoteID: 3, Score: 55},
	}})
	check, err := d.CheckDraft(context.Background(), "draft")
	require.NoError(t, err)
	require.Len(t, check.Matches, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{check.Matches[0].NoteID, check.Matches[1].NoteID, check.Matches[2].NoteID})
}

func TestSweepCountsFailures(t *testing.T) {
	fs := newFakeStore(note(1, time.Hour), note(2, 0))
	fs.unscanned = []domain.Note{note(2, 0), {ID: 77}}
	d := New(fs, &fixedCandidates{matches: []domain.CandidateMatch{{NoteID: 1, Score: 88}}})

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Created: 1, Failed: 1}, res)
}

func TestSweepStopsOnCancel(t *testing.T) {
	fs := newFakeStore(note(1, 0))
	fs.unscanned = []domain.Note{note(1, 0)}
	d := New(fs, &fixedCandidates{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := d.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Scanned)
}

type mapEmbedder map[string][]float64

func (m mapEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	v, ok := m[text]
	if !ok {
		return nil, errors.New("no vector for text")
	}
	return v, nil
}

func (m mapEmbedder) Model() string { return "test-embed" }

func TestEmbeddingProviderWithStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "detect.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	alice, err := s.CreateCreator(ctx, "alice", true)
	require.NoError(t, err)
	bob, err := s.CreateCreator(ctx, "bob", true)
	require.NoError(t, err)
	orig, err := s.AddNote(ctx, alice.ID, "Genetics", "dna rna", 400)
	require.NoError(t, err)
	copied, err := s.AddNote(ctx, bob.ID, "Genes", "dna rna copy", 200)
	require.NoError(t, err)

	emb := mapEmbedder{
		noteText(orig):   {1, 0},
		noteText(copied): {0.98, 0.2},
		"fresh draft":    {0, 1},
	}
	d := New(s, NewEmbeddingProvider(emb, s))

	res, err := d.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Created)

	top, err := s.TopCloneForSuspect(ctx, copied.ID)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, orig.ID, top.SourceNoteID)
	assert.Equal(t, domain.StatusClone, top.Status)

	pending, err := s.UnscannedNotes(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	check, err := d.CheckDraft(ctx, "fresh draft")
	require.NoError(t, err)
	assert.Equal(t, domain.WarningLow, check.Level)
	require.Len(t, check.Matches, 1)
	assert.Equal(t, copied.ID, check.Matches[0].NoteID)
}

// flakyVectors fails the first FindSimilar call after the vector was saved
type flakyVectors struct {
	VectorStore
	failures int
}

func (f *flakyVectors) FindSimilar(ctx context.Context, vector []float64, limit int, excludeID int64) ([]store.SimilarNote, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("vector search unavailable")
	}
	return f.VectorStore.FindSimilar(ctx, vector, limit, excludeID)
}

func TestSweepRetriesScanThatFailedAfterIndexing(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "retry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	alice, err := s.CreateCreator(ctx, "alice", true)
	require.NoError(t, err)
	bob, err := s.CreateCreator(ctx, "bob", true)
	require.NoError(t, err)
	orig, err := s.AddNote(ctx, alice.ID, "Statistics", "bayes priors", 400)
	require.NoError(t, err)
	copied, err := s.AddNote(ctx, bob.ID, "Stats", "bayes priors again", 200)
	require.NoError(t, err)

	emb := mapEmbedder{
		noteText(orig):   {1, 0},
		noteText(copied): {0.98, 0.2},
	}
	_, err = New(s, NewEmbeddingProvider(emb, s)).ScanNote(ctx, orig.ID)
	require.NoError(t, err)

	vectors := &flakyVectors{VectorStore: s, failures: 1}
	d := New(s, NewEmbeddingProvider(emb, vectors))

	_, err = d.ScanNote(ctx, copied.ID)
	require.ErrorContains(t, err, "vector search unavailable")
	indexed, err := s.HasEmbedding(ctx, copied.ID)
	require.NoError(t, err)
	assert.True(t, indexed)

	res, err := d.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Created: 1}, res)

	top, err := s.TopCloneForSuspect(ctx, copied.ID)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, orig.ID, top.SourceNoteID)
}
