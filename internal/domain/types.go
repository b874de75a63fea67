package domain

import "time"

// Creator is a marketplace account that publishes notes
type Creator struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a short written work offered for sale
type Note struct {
	ID         int64     `json:"id"`
	CreatorID  int64     `json:"creator_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	PriceCents int       `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// WarningLevel is the pre-publish warning shown to an author
type WarningLevel string

const (
	WarningNone   WarningLevel = "NONE"
	WarningLow    WarningLevel = "LOW"
	WarningMedium WarningLevel = "MEDIUM"
	WarningHigh   WarningLevel = "HIGH"
)

// CloneStatus is the persisted, creator-facing label of a clone record
type CloneStatus string

const (
	StatusSimilar       CloneStatus = "SIMILAR"
	StatusPotentialCopy CloneStatus = "POTENTIAL_COPY"
	StatusClone         CloneStatus = "CLONE"
)

// OriginalityLevel is the buyer-facing label for the same score
type OriginalityLevel string

const (
	LevelOriginal        OriginalityLevel = "Original"
	LevelModified        OriginalityLevel = "Modified"
	LevelHeavilyInspired OriginalityLevel = "Heavily Inspired"
	LevelClone           OriginalityLevel = "Clone"
)

// CreatorAction is the moderation state of a clone record
type CreatorAction string

const (
	ActionPending           CreatorAction = "PENDING"
	ActionAllowed           CreatorAction = "ALLOWED"
	ActionDenied            CreatorAction = "DENIED"
	ActionTakedownRequested CreatorAction = "TAKEDOWN_REQUESTED"
)

// CloneRecord links an original note to a newer note that resembles it
type CloneRecord struct {
	ID              int64         `json:"id"`
	SourceNoteID    int64         `json:"source_note_id"`
	SuspectNoteID   int64         `json:"suspect_note_id"`
	SimilarityScore float64       `json:"similarity_score"`
	Status          CloneStatus   `json:"status"`
	CreatorAction   CreatorAction `json:"creator_action"`
	ResaleAllowed   *bool         `json:"resale_allowed"`
	DetectedAt      time.Time     `json:"detected_at"`
	LastActionAt    *time.Time    `json:"last_action_at,omitempty"`
}

// CloneUpdate is the mutation applied to a clone record by a moderation action
type CloneUpdate struct {
	CloneID       int64
	CreatorAction CreatorAction
	ResaleAllowed *bool
	ActedAt       time.Time
}

// ActionHistoryEntry is one row of a clone record's append-only audit log
type ActionHistoryEntry struct {
	ActionID        string    `json:"action_id"`
	CloneID         int64     `json:"clone_id"`
	ActionType      string    `json:"action_type"`
	Message         string    `json:"message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	CreatorUsername string    `json:"creator_username"`
}

// ClonerMessage is a note sent by an original creator to the owner of a clone
type ClonerMessage struct {
	ID            int64     `json:"id"`
	CloneID       int64     `json:"clone_id"`
	FromCreatorID int64     `json:"from_creator_id"`
	ToCreatorID   int64     `json:"to_creator_id"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	SentAt        time.Time `json:"sent_at"`
}

// CandidateMatch is one ranked result from the similarity search
type CandidateMatch struct {
	NoteID int64   `json:"note_id"`
	Score  float64 `json:"score"`
}

// CloneGroup is an original note together with every clone detected against it
type CloneGroup struct {
	OriginalNote Note          `json:"original_note"`
	Clones       []CloneRecord `json:"clones"`
}

// DashboardMetrics summarises a creator's clone records
type DashboardMetrics struct {
	TotalClones          int     `json:"total_clones"`
	HighSimilarityClones int     `json:"high_similarity_clones"`
	PendingActions       int     `json:"pending_actions"`
	TakedownRequests     int     `json:"takedown_requests"`
	AverageSimilarity    float64 `json:"average_similarity"`
}
