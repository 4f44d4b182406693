package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/srs"
)

// MCQService orchestrates the multiple-choice recognition track. It runs the
// same state machine as the flashcard track against an independently
// persisted table, and derives the rating from binary correctness:
// correct answers map to Good, wrong ones to Again. Collapsing the four
// ratings to two is intentional for the recognition track.
type MCQService struct {
	store   ReviewStore
	items   ItemStore
	machine *srs.StateMachine
	log     *zap.Logger
	now     func() time.Time
}

// NewMCQService wires the MCQ track.
func NewMCQService(store ReviewStore, items ItemStore, machine *srs.StateMachine, log *zap.Logger) *MCQService {
	return &MCQService{
		store:   store,
		items:   items,
		machine: machine,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create adds an item to the MCQ study queue. The MCQ queue is independent of
// the flashcard queue: the same item may be queued on both tracks.
func (s *MCQService) Create(ctx context.Context, itemID int64, itemType entities.ItemType) (int64, error) {
	if !itemType.IsValid() {
		return 0, fmt.Errorf("%w: item type %q", entities.ErrInvalidArgument, itemType)
	}

	exists, err := s.items.Exists(ctx, itemID, itemType)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s %d", entities.ErrNotFound, itemType, itemID)
	}

	id, err := s.store.Create(ctx, itemID, itemType, srs.NewCard(s.now()))
	if err != nil {
		return 0, err
	}

	s.log.Debug("mcq review created",
		zap.Int64("review_id", id),
		zap.Int64("item_id", itemID),
		zap.String("item_type", string(itemType)),
	)
	return id, nil
}

// GetDue returns MCQ reviews whose due timestamp has passed, ordered by due
// date ascending.
func (s *MCQService) GetDue(ctx context.Context, f entities.ReviewFilter) ([]*entities.Review, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	return s.store.Due(ctx, s.now(), f)
}

// Count counts due MCQ reviews under the same filters as GetDue.
func (s *MCQService) Count(ctx context.Context, f entities.ReviewFilter) (int, error) {
	if err := validateFilter(f); err != nil {
		return 0, err
	}
	return s.store.CountDue(ctx, s.now(), f)
}

// Process records an answered question. selectedOption must be in [0, 3];
// the history entry keeps the raw option and correctness alongside the
// derived rating.
func (s *MCQService) Process(ctx context.Context, reviewID int64, selectedOption int, isCorrect bool, durationMs *int) (*entities.Review, error) {
	if selectedOption < 0 || selectedOption > 3 {
		return nil, fmt.Errorf("%w: selected option %d outside 0-3", entities.ErrInvalidArgument, selectedOption)
	}
	if err := validateDuration(durationMs); err != nil {
		return nil, err
	}

	review, err := s.store.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	rating := srs.Again
	if isCorrect {
		rating = srs.Good
	}

	now := s.now()
	card, err := s.machine.Transition(review.Card, rating, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidArgument, err)
	}

	updated, err := s.store.Apply(ctx, review.ID, card, entities.HistoryEntry{
		ReviewID:       review.ID,
		Rating:         rating,
		SelectedOption: &selectedOption,
		IsCorrect:      &isCorrect,
		DurationMs:     durationMs,
		ReviewedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("mcq review processed",
		zap.Int64("review_id", review.ID),
		zap.Bool("correct", isCorrect),
		zap.Time("next_due", updated.Card.Due),
	)
	return updated, nil
}
