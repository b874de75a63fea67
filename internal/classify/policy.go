// Package classify maps a similarity score (0-100) onto the tiers used at
// each point of a note's lifecycle. The three ladders share a domain but are
// maintained separately: the pre-publish warning, the persisted clone status
// and the buyer-facing originality level.
package classify

import (
	"fmt"
	"math"

	"github.com/pbaille/notemarket/internal/domain"
)

// Scheme selects one of the classification ladders
type Scheme string

const (
	SchemeWarning     Scheme = "warning"
	SchemeCloneStatus Scheme = "clone_status"
	SchemeOriginality Scheme = "originality"
)

// PersistThreshold is the lowest score for which a clone record is created
const PersistThreshold = 50.0

// HighSimilarity is the score from which a clone counts as high similarity
const HighSimilarity = 90.0

// Validate rejects scores outside [0,100]. NaN is rejected too.
func Validate(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 100 {
		return &domain.InvalidScoreError{Score: score}
	}
	return nil
}

// Warning returns the pre-publish warning for a draft. A zero score means no
// comparable note was found.
func Warning(score float64) (domain.WarningLevel, error) {
	if err := Validate(score); err != nil {
		return "", err
	}
	switch {
	case score >= 80:
		return domain.WarningHigh, nil
	case score >= 50:
		return domain.WarningMedium, nil
	case score > 0:
		return domain.WarningLow, nil
	default:
		return domain.WarningNone, nil
	}
}

// Status returns the clone status for a detected match. ok is false when the
// score is below PersistThreshold and no record should be created.
func Status(score float64) (status domain.CloneStatus, ok bool, err error) {
	if err := Validate(score); err != nil {
		return "", false, err
	}
	switch {
	case score >= 90:
		return domain.StatusClone, true, nil
	case score >= 70:
		return domain.StatusPotentialCopy, true, nil
	case score >= PersistThreshold:
		return domain.StatusSimilar, true, nil
	default:
		return "", false, nil
	}
}

// Originality returns the label shown to buyers
func Originality(score float64) (domain.OriginalityLevel, error) {
	if err := Validate(score); err != nil {
		return "", err
	}
	switch {
	case score >= 90:
		return domain.LevelClone, nil
	case score >= 70:
		return domain.LevelHeavilyInspired, nil
	case score >= 50:
		return domain.LevelModified, nil
	default:
		return domain.LevelOriginal, nil
	}
}

// OriginalityScore is the complement of the similarity score, floored at 0
func OriginalityScore(similarity float64) float64 {
	return math.Max(0, 100-similarity)
}

// Classify dispatches to the ladder named by scheme. An empty tier with a nil
// error means the clone-status ladder would not create a record.
func Classify(score float64, scheme Scheme) (string, error) {
	switch scheme {
	case SchemeWarning:
		level, err := Warning(score)
		return string(level), err
	case SchemeCloneStatus:
		status, _, err := Status(score)
		return string(status), err
	case SchemeOriginality:
		level, err := Originality(score)
		return string(level), err
	default:
		return "", fmt.Errorf("unknown classification scheme %q", scheme)
	}
}

// ParseScheme converts user input to a Scheme
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeWarning, SchemeCloneStatus, SchemeOriginality:
		return Scheme(s), nil
	}
	return "", fmt.Errorf("unknown classification scheme %q", s)
}
