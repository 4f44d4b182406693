package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/srs"
)

// ReviewService orchestrates the free-recall flashcard track: it owns
// creation of review rows, due-selection, and rating-driven updates through
// the card state machine.
type ReviewService struct {
	store   ReviewStore
	items   ItemStore
	machine *srs.StateMachine
	log     *zap.Logger
	now     func() time.Time
}

// NewReviewService wires the flashcard track.
func NewReviewService(store ReviewStore, items ItemStore, machine *srs.StateMachine, log *zap.Logger) *ReviewService {
	return &ReviewService{
		store:   store,
		items:   items,
		machine: machine,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create adds an item to the study queue with a fresh Learning-state card due
// immediately. It fails with ErrNotFound if the item does not exist and with
// ErrConflict if the item is already queued on this track.
func (s *ReviewService) Create(ctx context.Context, itemID int64, itemType entities.ItemType) (int64, error) {
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

	s.log.Debug("review created",
		zap.Int64("review_id", id),
		zap.Int64("item_id", itemID),
		zap.String("item_type", string(itemType)),
	)
	return id, nil
}

// GetDue returns reviews whose due timestamp has passed, ordered by due date
// ascending, optionally filtered by item type and JLPT level.
func (s *ReviewService) GetDue(ctx context.Context, f entities.ReviewFilter) ([]*entities.Review, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	return s.store.Due(ctx, s.now(), f)
}

// Count counts due reviews under the same filters as GetDue.
func (s *ReviewService) Count(ctx context.Context, f entities.ReviewFilter) (int, error) {
	if err := validateFilter(f); err != nil {
		return 0, err
	}
	return s.store.CountDue(ctx, s.now(), f)
}

// Process records a completed review: it transitions the card with the given
// rating, persists the new state, and appends a history entry, all within one
// storage transaction. durationMs may be nil when the caller did not time the
// answer; negative values are rejected.
func (s *ReviewService) Process(ctx context.Context, reviewID int64, rating srs.Rating, durationMs *int) (*entities.Review, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: rating %d outside 1-4", entities.ErrInvalidArgument, int(rating))
	}
	if err := validateDuration(durationMs); err != nil {
		return nil, err
	}

	review, err := s.store.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	card, err := s.machine.Transition(review.Card, rating, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidArgument, err)
	}

	updated, err := s.store.Apply(ctx, review.ID, card, entities.HistoryEntry{
		ReviewID:   review.ID,
		Rating:     rating,
		DurationMs: durationMs,
		ReviewedAt: now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("review processed",
		zap.Int64("review_id", review.ID),
		zap.Stringer("rating", rating),
		zap.Time("next_due", updated.Card.Due),
	)
	return updated, nil
}

func validateDuration(durationMs *int) error {
	if durationMs != nil && *durationMs < 0 {
		return fmt.Errorf("%w: negative duration %dms", entities.ErrInvalidArgument, *durationMs)
	}
	return nil
}

func validateFilter(f entities.ReviewFilter) error {
	if f.ItemType != nil && !f.ItemType.IsValid() {
		return fmt.Errorf("%w: item type %q", entities.ErrInvalidArgument, *f.ItemType)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", entities.ErrInvalidArgument, f.Limit)
	}
	return nil
}
