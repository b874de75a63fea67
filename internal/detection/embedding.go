package detection

import (
	"context"
	"fmt"

	"github.com/pbaille/notemarket/internal/domain"
	"github.com/pbaille/notemarket/internal/embedding"
	"github.com/pbaille/notemarket/internal/store"
)

// VectorStore keeps note embeddings and searches them
type VectorStore interface {
	SaveEmbedding(ctx context.Context, noteID int64, vector []float64, model string) error
	FindSimilar(ctx context.Context, vector []float64, limit int, excludeID int64) ([]store.SimilarNote, error)
}

// EmbeddingProvider finds candidates by cosine similarity of embeddings.
// Published notes have their vector stored as a side effect.
type EmbeddingProvider struct {
	embedder embedding.Embedder
	vectors  VectorStore
}

// NewEmbeddingProvider creates an EmbeddingProvider
func NewEmbeddingProvider(embedder embedding.Embedder, vectors VectorStore) *EmbeddingProvider {
	return &EmbeddingProvider{embedder: embedder, vectors: vectors}
}

// FindSimilarCandidates implements CandidateProvider
func (p *EmbeddingProvider) FindSimilarCandidates(ctx context.Context, noteID int64, text string, limit int) ([]domain.CandidateMatch, error) {
	vector, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	if noteID > 0 {
		if err := p.vectors.SaveEmbedding(ctx, noteID, vector, p.embedder.Model()); err != nil {
			return nil, err
		}
	}

	similar, err := p.vectors.FindSimilar(ctx, vector, limit, noteID)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.CandidateMatch, 0, len(similar))
	for _, s := range similar {
		matches = append(matches, domain.CandidateMatch{NoteID: s.NoteID, Score: embedding.ToScore(s.Similarity)})
	}
	return matches, nil
}
