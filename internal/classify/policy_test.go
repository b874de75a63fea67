package classify

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/notemarket/internal/domain"
)

func TestStatusBoundaries(t *testing.T) {
	cases := []struct {
		score  float64
		want   domain.CloneStatus
		wantOK bool
	}{
		{0, "", false},
		{49.9, "", false},
		{49.999, "", false},
		{50.0, domain.StatusSimilar, true},
		{69.9, domain.StatusSimilar, true},
		{69.999, domain.StatusSimilar, true},
		{70.0, domain.StatusPotentialCopy, true},
		{89.9, domain.StatusPotentialCopy, true},
		{89.999, domain.StatusPotentialCopy, true},
		{90.0, domain.StatusClone, true},
		{100.0, domain.StatusClone, true},
	}
	for _, tc := range cases {
		got, ok, err := Status(tc.score)
		require.NoError(t, err, "score %v", tc.score)
		assert.Equal(t, tc.wantOK, ok, "score %v", tc.score)
		assert.Equal(t, tc.want, got, "score %v", tc.score)
	}
}

func TestOriginalityBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.OriginalityLevel
	}{
		{0, domain.LevelOriginal},
		{49.999, domain.LevelOriginal},
		{50, domain.LevelModified},
		{69.999, domain.LevelModified},
		{70, domain.LevelHeavilyInspired},
		{85, domain.LevelHeavilyInspired},
		{89.999, domain.LevelHeavilyInspired},
		{90, domain.LevelClone},
		{95, domain.LevelClone},
		{100, domain.LevelClone},
	}
	for _, tc := range cases {
		got, err := Originality(tc.score)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "score %v", tc.score)
	}
	assert.Equal(t, 5.0, OriginalityScore(95))
	assert.Equal(t, 100.0, OriginalityScore(0))
}

func TestWarningBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.WarningLevel
	}{
		{0, domain.WarningNone},
		{0.01, domain.WarningLow},
		{49.999, domain.WarningLow},
		{50, domain.WarningMedium},
		{79.999, domain.WarningMedium},
		{80, domain.WarningHigh},
		{100, domain.WarningHigh},
	}
	for _, tc := range cases {
		got, err := Warning(tc.score)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "score %v", tc.score)
	}
}

func TestOutOfRangeScoresAreRejected(t *testing.T) {
	for _, score := range []float64{-0.001, -50, 100.0001, 250, math.NaN()} {
		_, err := Warning(score)
		assertInvalid(t, err)
		_, _, err = Status(score)
		assertInvalid(t, err)
		_, err = Originality(score)
		assertInvalid(t, err)
		_, err = Classify(score, SchemeCloneStatus)
		assertInvalid(t, err)
	}
}

func assertInvalid(t *testing.T, err error) {
	t.Helper()
	var invalid *domain.InvalidScoreError
	assert.True(t, errors.As(err, &invalid), "expected InvalidScoreError, got %v", err)
}

// Every ladder must yield exactly one tier per score and never move back down
// as the score grows.
func TestLaddersAreMonotonicAndTotal(t *testing.T) {
	statusRank := map[domain.CloneStatus]int{"": 0, domain.StatusSimilar: 1, domain.StatusPotentialCopy: 2, domain.StatusClone: 3}
	levelRank := map[domain.OriginalityLevel]int{domain.LevelOriginal: 0, domain.LevelModified: 1, domain.LevelHeavilyInspired: 2, domain.LevelClone: 3}
	warnRank := map[domain.WarningLevel]int{domain.WarningNone: 0, domain.WarningLow: 1, domain.WarningMedium: 2, domain.WarningHigh: 3}

	prevStatus, prevLevel, prevWarn := -1, -1, -1
	for i := 0; i <= 10000; i++ {
		score := float64(i) / 100
		status, _, err := Status(score)
		require.NoError(t, err)
		level, err := Originality(score)
		require.NoError(t, err)
		warn, err := Warning(score)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, statusRank[status], prevStatus)
		assert.GreaterOrEqual(t, levelRank[level], prevLevel)
		assert.GreaterOrEqual(t, warnRank[warn], prevWarn)
		prevStatus, prevLevel, prevWarn = statusRank[status], levelRank[level], warnRank[warn]

		again, _, _ := Status(score)
		assert.Equal(t, status, again)
	}
}

func TestClassifyDispatch(t *testing.T) {
	tier, err := Classify(85, SchemeOriginality)
	require.NoError(t, err)
	assert.Equal(t, "Heavily Inspired", tier)

	tier, err = Classify(85, SchemeWarning)
	require.NoError(t, err)
	assert.Equal(t, "HIGH", tier)

	tier, err = Classify(40, SchemeCloneStatus)
	require.NoError(t, err)
	assert.Empty(t, tier)

	_, err = Classify(50, Scheme("bogus"))
	assert.Error(t, err)

	_, err = ParseScheme("bogus")
	assert.Error(t, err)
	s, err := ParseScheme("originality")
	require.NoError(t, err)
	assert.Equal(t, SchemeOriginality, s)
}
