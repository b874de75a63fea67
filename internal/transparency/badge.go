package transparency

import (
	"fmt"
	"math"

	"github.com/pbaille/notemarket/internal/classify"
	"github.com/pbaille/notemarket/internal/domain"
)

// Precursor is the raw data a transparency result is derived from
type Precursor struct {
	NoteID          int64
	IsClone         bool
	SimilarityScore float64
	OriginalNote    *domain.OriginalNote
}

func (p Precursor) sourceIsPublic() bool {
	return p.OriginalNote != nil && p.OriginalNote.CreatorIsPublic
}

// Build derives the full buyer-facing view for a note
func Build(p Precursor) (*domain.TransparencyResult, error) {
	score := 0.0
	if p.IsClone {
		if err := classify.Validate(p.SimilarityScore); err != nil {
			return nil, err
		}
		score = p.SimilarityScore
	}

	level, err := classify.Originality(score)
	if err != nil {
		return nil, err
	}
	badge, err := BuildBadge(p)
	if err != nil {
		return nil, err
	}
	msg, err := BuildBuyerMessage(p)
	if err != nil {
		return nil, err
	}

	result := &domain.TransparencyResult{
		NoteID:            p.NoteID,
		IsClone:           p.IsClone,
		OriginalityScore:  classify.OriginalityScore(score),
		OriginalityLevel:  level,
		TransparencyBadge: badge,
		BuyerMessage:      msg,
	}
	if p.IsClone {
		s := p.SimilarityScore
		result.SimilarityScore = &s
		result.OriginalNote = p.OriginalNote
		if w, ok := PurchaseWarning(s); ok {
			result.PurchaseWarning = &w
		}
	}
	return result, nil
}

// BuildBadge returns the listing badge. The source link is only offered when
// the original creator's profile is public.
func BuildBadge(p Precursor) (domain.Badge, error) {
	if !p.IsClone {
		return domain.Badge{Severity: domain.SeverityNone}, nil
	}
	if err := classify.Validate(p.SimilarityScore); err != nil {
		return domain.Badge{}, err
	}

	pct := percent(p.SimilarityScore)
	badge := domain.Badge{Severity: severityFor(p.SimilarityScore)}
	if p.sourceIsPublic() {
		badge.Text = fmt.Sprintf("%d%% Match – View Source", pct)
		badge.ShowSourceLink = true
	} else {
		badge.Text = fmt.Sprintf("%d%% Match – Source Private", pct)
	}
	return badge, nil
}

func severityFor(score float64) domain.Severity {
	switch {
	case score >= 90:
		return domain.SeverityDanger
	case score >= 70:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

// BuildBuyerMessage returns the pre-purchase explanation. Tone escalates with
// the originality level and the recommendation is never empty.
func BuildBuyerMessage(p Precursor) (domain.BuyerMessage, error) {
	if !p.IsClone {
		return originalMessage, nil
	}
	level, err := classify.Originality(p.SimilarityScore)
	if err != nil {
		return domain.BuyerMessage{}, err
	}

	pct := percent(p.SimilarityScore)
	author := "another creator"
	if p.sourceIsPublic() && p.OriginalNote.CreatorUsername != "" {
		author = "@" + p.OriginalNote.CreatorUsername
	}

	switch level {
	case domain.LevelClone:
		return domain.BuyerMessage{
			Title:          "Likely Copy",
			Description:    fmt.Sprintf("This note is %d%% similar to an earlier note by %s and appears to be a copy.", pct, author),
			Recommendation: "We recommend purchasing the original note instead.",
		}, nil
	case domain.LevelHeavilyInspired:
		return domain.BuyerMessage{
			Title:          "Heavily Inspired",
			Description:    fmt.Sprintf("This note shares %d%% of its content with an earlier note by %s.", pct, author),
			Recommendation: "Compare it with the original before you buy.",
		}, nil
	case domain.LevelModified:
		return domain.BuyerMessage{
			Title:          "Modified Version",
			Description:    fmt.Sprintf("This note overlaps %d%% with an earlier note by %s but adds its own material.", pct, author),
			Recommendation: "Check the preview to see what is new.",
		}, nil
	default:
		return originalMessage, nil
	}
}

var originalMessage = domain.BuyerMessage{
	Title:          "Original Content",
	Description:    "No significant overlap with other notes was found.",
	Recommendation: "This note is safe to purchase.",
}

// PurchaseWarning returns the one-line inline warning shown at checkout. It is
// a separate ladder from the originality level and is absent below 50%.
func PurchaseWarning(score float64) (string, bool) {
	pct := percent(score)
	switch {
	case score >= 90:
		return fmt.Sprintf("Warning: this note is a %d%% match to existing content and is very likely a copy.", pct), true
	case score >= 70:
		return fmt.Sprintf("Caution: this note closely resembles existing content (%d%% match).", pct), true
	case score >= 50:
		return fmt.Sprintf("Note: parts of this note resemble existing content (%d%% match).", pct), true
	default:
		return "", false
	}
}

func percent(score float64) int {
	return int(math.Round(score))
}
