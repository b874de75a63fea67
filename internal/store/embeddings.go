package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pbaille/notemarket/internal/embedding"
)

// SimilarNote is a stored note ranked by vector similarity
type SimilarNote struct {
	NoteID     int64   `json:"note_id"`
	Similarity float64 `json:"similarity"`
}

// SaveEmbedding stores or replaces the vector of a note
func (s *Store) SaveEmbedding(ctx context.Context, noteID int64, vector []float64, model string) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO note_embeddings (note_id, vector, model, created_at) VALUES (?, ?, ?, ?)",
		noteID, string(encoded), model, s.now(),
	)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// HasEmbedding reports whether a vector is stored for the note
func (s *Store) HasEmbedding(ctx context.Context, noteID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM note_embeddings WHERE note_id = ?", noteID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has embedding: %w", err)
	}
	return count > 0, nil
}

// FindSimilar ranks stored vectors by cosine similarity to the query vector.
// excludeID is skipped so a note never matches itself.
func (s *Store) FindSimilar(ctx context.Context, vector []float64, limit int, excludeID int64) ([]SimilarNote, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT note_id, vector FROM note_embeddings WHERE note_id <> ?", excludeID)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}
	defer rows.Close()

	var results []SimilarNote
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		var stored []float64
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("decode embedding for note %d: %w", id, err)
		}
		results = append(results, SimilarNote{NoteID: id, Similarity: embedding.CosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity == results[j].Similarity {
			return results[i].NoteID < results[j].NoteID
		}
		return results[i].Similarity > results[j].Similarity
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
