package entities

import (
	"time"

	"github.com/hikarw/kioku/internal/srs"
)

// MasteryThresholdDays is the stored stability, in days, at or above which a
// flashcard-track item counts as mastered. The MCQ track has no equivalent.
const MasteryThresholdDays = 21.0

// MasteryStats summarizes mastered items on the flashcard track.
// Total is always the exact sum of the per-type counts.
type MasteryStats struct {
	Mastered int
	Total    int
	ByType   map[ItemType]MasteryCount
}

// MasteryCount is the mastered/total pair for one item type.
type MasteryCount struct {
	Mastered int
	Total    int
}

// DailyCount is the number of completed reviews on one calendar date.
type DailyCount struct {
	Date  time.Time // midnight UTC
	Count int
}

// HistoryRow is the track-agnostic projection of a history entry used by the
// statistics engine. MCQ rows arrive with their derived rating.
type HistoryRow struct {
	Rating     srs.Rating
	DurationMs *int
	ReviewedAt time.Time
}
