package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/infra/postgres"
	"github.com/hikarw/kioku/internal/srs"
)

// StatsRepository feeds the statistics engine. It reads the flashcard review
// table and both history tables; nothing here writes.
type StatsRepository struct {
	db postgres.DBTX
}

// NewStatsRepository creates a StatsRepository.
func NewStatsRepository(db postgres.DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// ReviewRows returns flashcard review rows, optionally filtered by item type
// and JLPT level.
func (r *StatsRepository) ReviewRows(ctx context.Context, itemType *entities.ItemType, jlptLevel *int) ([]*entities.Review, error) {
	query := "SELECT " + reviewColumns + " FROM reviews WHERE TRUE"
	var args []any

	if itemType != nil {
		args = append(args, *itemType)
		query += fmt.Sprintf(" AND item_type = $%d", len(args))
	}
	if jlptLevel != nil {
		args = append(args, *jlptLevel)
		n := len(args)
		query += fmt.Sprintf(`
			AND ((item_type = 'vocab' AND EXISTS (
					SELECT 1 FROM vocabulary v WHERE v.id = item_id AND v.jlpt_level = $%d))
			  OR (item_type = 'kanji' AND EXISTS (
					SELECT 1 FROM kanji k WHERE k.id = item_id AND k.jlpt_level = $%d)))`, n, n)
	}
	query += " ORDER BY id ASC"

	return r.queryReviews(ctx, query, args...)
}

// TopReviewed returns the limit most-reviewed flashcard rows, ties broken by
// ascending id.
func (r *StatsRepository) TopReviewed(ctx context.Context, limit int, itemType *entities.ItemType) ([]*entities.Review, error) {
	query := "SELECT " + reviewColumns + " FROM reviews WHERE TRUE"
	var args []any

	if itemType != nil {
		args = append(args, *itemType)
		query += fmt.Sprintf(" AND item_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY review_count DESC, id ASC LIMIT $%d", len(args))

	return r.queryReviews(ctx, query, args...)
}

// HistoryBetween merges both history tables over the half-open [start, end)
// window. Nil bounds leave that side open. MCQ rows carry their derived
// rating: correct maps to Good, wrong to Again.
func (r *StatsRepository) HistoryBetween(ctx context.Context, start, end *time.Time) ([]entities.HistoryRow, error) {
	where, args := historyWindow(start, end)

	out, err := r.queryHistory(ctx,
		"SELECT rating, NULL::boolean, duration_ms, reviewed_at FROM review_history"+where, args...)
	if err != nil {
		return nil, err
	}

	mcq, err := r.queryHistory(ctx,
		"SELECT 0, is_correct, duration_ms, reviewed_at FROM mcq_review_history"+where, args...)
	if err != nil {
		return nil, err
	}
	return append(out, mcq...), nil
}

func historyWindow(start, end *time.Time) (string, []any) {
	where := " WHERE TRUE"
	var args []any
	if start != nil {
		args = append(args, *start)
		where += fmt.Sprintf(" AND reviewed_at >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		where += fmt.Sprintf(" AND reviewed_at < $%d", len(args))
	}
	return where, args
}

func (r *StatsRepository) queryHistory(ctx context.Context, query string, args ...any) ([]entities.HistoryRow, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []entities.HistoryRow
	for rows.Next() {
		var (
			rating    int
			isCorrect *bool
			row       entities.HistoryRow
		)
		if err := rows.Scan(&rating, &isCorrect, &row.DurationMs, &row.ReviewedAt); err != nil {
			return nil, fmt.Errorf("%w: scan history: %w", entities.ErrUnavailable, err)
		}
		row.Rating = srs.Rating(rating)
		if isCorrect != nil {
			row.Rating = srs.Again
			if *isCorrect {
				row.Rating = srs.Good
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query history: %w", entities.ErrUnavailable, err)
	}
	return out, nil
}

func (r *StatsRepository) queryReviews(ctx context.Context, query string, args ...any) ([]*entities.Review, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query reviews: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*entities.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query reviews: %w", entities.ErrUnavailable, err)
	}
	return out, nil
}
