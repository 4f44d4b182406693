package service

import (
	"context"
	"time"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/srs"
)

// ReviewStore is the persistence contract required by a scheduling track.
// The flashcard and MCQ tracks bind it to independent tables; rows are
// structurally identical.
//
// Apply must persist the new card state, bump review_count, set
// last_reviewed, and append the history entry as one atomic unit: a crash
// mid-update may not leave the row updated without its history entry.
type ReviewStore interface {
	Create(ctx context.Context, itemID int64, itemType entities.ItemType, card srs.Card) (int64, error)
	GetByID(ctx context.Context, id int64) (*entities.Review, error)
	GetByItem(ctx context.Context, itemID int64, itemType entities.ItemType) (*entities.Review, error)
	Due(ctx context.Context, now time.Time, f entities.ReviewFilter) ([]*entities.Review, error)
	CountDue(ctx context.Context, now time.Time, f entities.ReviewFilter) (int, error)
	Apply(ctx context.Context, reviewID int64, card srs.Card, entry entities.HistoryEntry) (*entities.Review, error)
}

// ItemStore is the read-only dictionary collaborator. The import pipeline
// that fills these records is outside this core.
//
// The ...By{Level,MeaningKeyword,ReadingPrefix,Onyomi,Appearance} queries
// return bounded candidate batches in a deterministic order (id ascending);
// any sampling randomness is applied by the caller.
type ItemStore interface {
	Exists(ctx context.Context, id int64, t entities.ItemType) (bool, error)
	VocabularyByID(ctx context.Context, id int64) (*entities.Vocabulary, error)
	KanjiByID(ctx context.Context, id int64) (*entities.Kanji, error)

	VocabularyByLevel(ctx context.Context, level int, excludeID int64, limit int) ([]*entities.Vocabulary, error)
	KanjiByLevel(ctx context.Context, level int, excludeID int64, limit int) ([]*entities.Kanji, error)
	VocabularyByMeaningKeyword(ctx context.Context, lang entities.Language, keyword string, excludeID int64, limit int) ([]*entities.Vocabulary, error)
	KanjiByMeaningKeyword(ctx context.Context, lang entities.Language, keyword string, excludeID int64, limit int) ([]*entities.Kanji, error)
	VocabularyByReadingPrefix(ctx context.Context, prefix string, excludeID int64, limit int) ([]*entities.Vocabulary, error)
	KanjiByOnyomi(ctx context.Context, fragment string, excludeID int64, limit int) ([]*entities.Kanji, error)
	KanjiByAppearance(ctx context.Context, radical string, strokeCount int, excludeID int64, limit int) ([]*entities.Kanji, error)
}

// StatsStore feeds the statistics engine with row-level data. ReviewRows and
// TopReviewed read the flashcard review table; HistoryBetween merges both
// history tables, with MCQ rows carrying their derived rating.
type StatsStore interface {
	ReviewRows(ctx context.Context, itemType *entities.ItemType, jlptLevel *int) ([]*entities.Review, error)
	TopReviewed(ctx context.Context, limit int, itemType *entities.ItemType) ([]*entities.Review, error)
	HistoryBetween(ctx context.Context, start, end *time.Time) ([]entities.HistoryRow, error)
}
