package transparency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/notemarket/internal/domain"
)

func aliceNote(public bool) *domain.OriginalNote {
	return &domain.OriginalNote{
		ID:              1,
		Title:           "Linear algebra cheat sheet",
		CreatorID:       10,
		CreatorUsername: "alice",
		CreatorIsPublic: public,
		CreatedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestBuildPublicSourceHeavilyInspired(t *testing.T) {
	result, err := Build(Precursor{NoteID: 2, IsClone: true, SimilarityScore: 85, OriginalNote: aliceNote(true)})
	require.NoError(t, err)

	assert.True(t, result.IsClone)
	assert.Equal(t, domain.LevelHeavilyInspired, result.OriginalityLevel)
	assert.Equal(t, 15.0, result.OriginalityScore)
	require.NotNil(t, result.SimilarityScore)
	assert.Equal(t, 85.0, *result.SimilarityScore)
	assert.Contains(t, result.TransparencyBadge.Text, "85%")
	assert.Contains(t, result.TransparencyBadge.Text, "View Source")
	assert.True(t, result.TransparencyBadge.ShowSourceLink)
	assert.Contains(t, result.BuyerMessage.Description, "@alice")
	require.NotNil(t, result.PurchaseWarning)
	assert.NotEmpty(t, *result.PurchaseWarning)
}

func TestBuildPrivateSourceOnlyChangesBadge(t *testing.T) {
	public, err := Build(Precursor{NoteID: 2, IsClone: true, SimilarityScore: 85, OriginalNote: aliceNote(true)})
	require.NoError(t, err)
	private, err := Build(Precursor{NoteID: 2, IsClone: true, SimilarityScore: 85, OriginalNote: aliceNote(false)})
	require.NoError(t, err)

	assert.False(t, private.TransparencyBadge.ShowSourceLink)
	assert.Contains(t, private.TransparencyBadge.Text, "Source Private")
	assert.NotContains(t, private.TransparencyBadge.Text, "View Source")
	assert.NotContains(t, private.BuyerMessage.Description, "@alice")

	assert.Equal(t, public.IsClone, private.IsClone)
	assert.Equal(t, public.OriginalityLevel, private.OriginalityLevel)
	assert.Equal(t, public.OriginalityScore, private.OriginalityScore)
	assert.Equal(t, *public.SimilarityScore, *private.SimilarityScore)
	assert.Equal(t, *public.PurchaseWarning, *private.PurchaseWarning)
	assert.Equal(t, public.TransparencyBadge.Severity, private.TransparencyBadge.Severity)
}

func TestBuildOriginalSuppressesBadge(t *testing.T) {
	result, err := Build(Precursor{NoteID: 5})
	require.NoError(t, err)

	assert.False(t, result.IsClone)
	assert.Equal(t, domain.LevelOriginal, result.OriginalityLevel)
	assert.Equal(t, 100.0, result.OriginalityScore)
	assert.Nil(t, result.SimilarityScore)
	assert.Nil(t, result.OriginalNote)
	assert.Nil(t, result.PurchaseWarning)
	assert.Equal(t, domain.Badge{Severity: domain.SeverityNone}, result.TransparencyBadge)
	assert.Equal(t, "Original Content", result.BuyerMessage.Title)
}

func TestBuildRejectsInvalidScore(t *testing.T) {
	_, err := Build(Precursor{NoteID: 2, IsClone: true, SimilarityScore: 120})
	var invalid *domain.InvalidScoreError
	assert.ErrorAs(t, err, &invalid)

	_, err = BuildBadge(Precursor{IsClone: true, SimilarityScore: -1})
	assert.ErrorAs(t, err, &invalid)
}

func TestBuyerMessageToneEscalates(t *testing.T) {
	scores := []float64{60, 75, 95}
	titles := map[string]bool{}
	for _, s := range scores {
		msg, err := BuildBuyerMessage(Precursor{IsClone: true, SimilarityScore: s, OriginalNote: aliceNote(true)})
		require.NoError(t, err)
		assert.NotEmpty(t, msg.Recommendation)
		assert.NotEqual(t, originalMessage.Title, msg.Title)
		titles[msg.Title] = true
	}
	assert.Len(t, titles, 3)

	clone, err := BuildBuyerMessage(Precursor{IsClone: true, SimilarityScore: 95})
	require.NoError(t, err)
	assert.Contains(t, clone.Recommendation, "original")
	assert.Contains(t, clone.Description, "another creator")

	// a clone flag with a sub-threshold score reads as original
	low, err := BuildBuyerMessage(Precursor{IsClone: true, SimilarityScore: 30})
	require.NoError(t, err)
	assert.Equal(t, originalMessage, low)
}

func TestBadgeSeverity(t *testing.T) {
	cases := map[float64]domain.Severity{
		55:  domain.SeverityInfo,
		70:  domain.SeverityWarning,
		89:  domain.SeverityWarning,
		90:  domain.SeverityDanger,
		100: domain.SeverityDanger,
	}
	for score, want := range cases {
		badge, err := BuildBadge(Precursor{IsClone: true, SimilarityScore: score})
		require.NoError(t, err)
		assert.Equal(t, want, badge.Severity, "score %v", score)
	}
}

func TestPurchaseWarningLadder(t *testing.T) {
	_, ok := PurchaseWarning(49.9)
	assert.False(t, ok)

	w50, ok := PurchaseWarning(50)
	require.True(t, ok)
	w70, ok := PurchaseWarning(70)
	require.True(t, ok)
	w90, ok := PurchaseWarning(90)
	require.True(t, ok)

	assert.True(t, w50 != w70 && w70 != w90 && w50 != w90)
	assert.Contains(t, w90, "90%")
	assert.Contains(t, w70, "Caution")
}

func TestBadgeRoundsPercentage(t *testing.T) {
	badge, err := BuildBadge(Precursor{IsClone: true, SimilarityScore: 84.6, OriginalNote: aliceNote(true)})
	require.NoError(t, err)
	assert.Contains(t, badge.Text, "85%")
}
