package entities

import (
	"time"

	"github.com/hikarw/kioku/internal/srs"
)

// Review is a study-queue row. The same aggregate shape backs both tracks:
// the flashcard table and the independent MCQ table. At most one row exists
// per (item_id, item_type) on each track.
type Review struct {
	ID           int64
	ItemID       int64
	ItemType     ItemType
	Card         srs.Card
	ReviewCount  uint32
	LastReviewed *time.Time // nil until the first completed review
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HistoryEntry is one completed review, appended to the track's history table
// and never updated or deleted. The flashcard track records the rating; the
// MCQ track additionally records the selected option and correctness from
// which its rating was derived.
type HistoryEntry struct {
	ID             int64
	ReviewID       int64
	Rating         srs.Rating
	SelectedOption *int  // MCQ only, 0..3
	IsCorrect      *bool // MCQ only
	DurationMs     *int
	ReviewedAt     time.Time
}

// ReviewFilter narrows due-selection and counting. Nil fields are unset.
type ReviewFilter struct {
	ItemType  *ItemType
	JLPTLevel *int
	Limit     int // 0 means no limit
}
