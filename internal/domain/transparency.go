package domain

import "time"

// Severity grades how prominently a badge is displayed
type Severity string

const (
	SeverityNone    Severity = "NONE"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityDanger  Severity = "DANGER"
)

// OriginalNote is the public summary of the note a clone was copied from
type OriginalNote struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	CreatorID       int64     `json:"creator_id"`
	CreatorUsername string    `json:"creator_username"`
	CreatorIsPublic bool      `json:"creator_is_public"`
	CreatedAt       time.Time `json:"created_at"`
}

// Badge is the short marker shown next to a note in listings
type Badge struct {
	Text           string   `json:"text"`
	Severity       Severity `json:"severity"`
	ShowSourceLink bool     `json:"show_source_link"`
}

// BuyerMessage is the longer explanation shown before purchase
type BuyerMessage struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// TransparencyResult is the buyer-facing originality view of a note
type TransparencyResult struct {
	NoteID            int64            `json:"note_id"`
	IsClone           bool             `json:"is_clone"`
	OriginalityScore  float64          `json:"originality_score"`
	OriginalityLevel  OriginalityLevel `json:"originality_level"`
	SimilarityScore   *float64         `json:"similarity_score,omitempty"`
	OriginalNote      *OriginalNote    `json:"original_note,omitempty"`
	TransparencyBadge Badge            `json:"transparency_badge"`
	BuyerMessage      BuyerMessage     `json:"buyer_message"`
	PurchaseWarning   *string          `json:"purchase_warning,omitempty"`
}
