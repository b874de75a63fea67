package dashboard

import (
	"context"
	"fmt"

	"github.com/pbaille/notemarket/internal/classify"
	"github.com/pbaille/notemarket/internal/domain"
)

// Source supplies a creator's clone records grouped by original note
type Source interface {
	GetCreatorCloneRecords(ctx context.Context, creatorID int64) ([]domain.CloneGroup, error)
}

// Aggregate reduces the groups to dashboard metrics
func Aggregate(groups []domain.CloneGroup) domain.DashboardMetrics {
	var m domain.DashboardMetrics
	var sum float64
	for _, g := range groups {
		for _, c := range g.Clones {
			m.TotalClones++
			sum += c.SimilarityScore
			if c.SimilarityScore >= classify.HighSimilarity {
				m.HighSimilarityClones++
			}
			switch c.CreatorAction {
			case domain.ActionPending:
				m.PendingActions++
			case domain.ActionTakedownRequested:
				m.TakedownRequests++
			}
		}
	}
	if m.TotalClones > 0 {
		m.AverageSimilarity = sum / float64(m.TotalClones)
	}
	return m
}

// StatusBreakdown counts clones per status
func StatusBreakdown(groups []domain.CloneGroup) map[domain.CloneStatus]int {
	out := map[domain.CloneStatus]int{
		domain.StatusSimilar:       0,
		domain.StatusPotentialCopy: 0,
		domain.StatusClone:         0,
	}
	for _, g := range groups {
		for _, c := range g.Clones {
			out[c.Status]++
		}
	}
	return out
}

// Report is the full dashboard payload for a creator
type Report struct {
	Metrics   domain.DashboardMetrics    `json:"metrics"`
	ByStatus  map[domain.CloneStatus]int `json:"by_status"`
	Originals []domain.CloneGroup        `json:"originals"`
}

// Service builds dashboard reports from a Source
type Service struct {
	src Source
}

// NewService creates a Service
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Metrics fetches the creator's records and aggregates them
func (s *Service) Metrics(ctx context.Context, creatorID int64) (domain.DashboardMetrics, error) {
	groups, err := s.src.GetCreatorCloneRecords(ctx, creatorID)
	if err != nil {
		return domain.DashboardMetrics{}, fmt.Errorf("get creator clone records: %w", err)
	}
	return Aggregate(groups), nil
}

// Report returns metrics together with the records they were computed from
func (s *Service) Report(ctx context.Context, creatorID int64) (Report, error) {
	groups, err := s.src.GetCreatorCloneRecords(ctx, creatorID)
	if err != nil {
		return Report{}, fmt.Errorf("get creator clone records: %w", err)
	}
	if groups == nil {
		groups = []domain.CloneGroup{}
	}
	return Report{
		Metrics:   Aggregate(groups),
		ByStatus:  StatusBreakdown(groups),
		Originals: groups,
	}, nil
}
