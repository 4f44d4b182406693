package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/srs"
)

// StatsStore runs the aggregate reads for the statistics service on the
// embedded backend.
type StatsStore struct {
	conn *sql.DB
}

// ReviewRows returns every flashcard review matching the filters, ordered by
// id for stable aggregation.
func (s *StatsStore) ReviewRows(ctx context.Context, itemType *entities.ItemType, jlptLevel *int) ([]*entities.Review, error) {
	query := "SELECT " + reviewColumns + " FROM reviews WHERE 1 = 1"
	var args []any
	if itemType != nil {
		query += " AND item_type = ?"
		args = append(args, string(*itemType))
	}
	if jlptLevel != nil {
		query += `
			AND ((item_type = 'vocab' AND EXISTS (
					SELECT 1 FROM vocabulary v WHERE v.id = item_id AND v.jlpt_level = ?))
			  OR (item_type = 'kanji' AND EXISTS (
					SELECT 1 FROM kanji k WHERE k.id = item_id AND k.jlpt_level = ?)))`
		args = append(args, *jlptLevel, *jlptLevel)
	}
	query += " ORDER BY id ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query review rows: %w", entities.ErrUnavailable, err)
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
		return nil, fmt.Errorf("%w: query review rows: %w", entities.ErrUnavailable, err)
	}
	return out, nil
}

// TopReviewed returns the flashcard reviews with the highest review counts,
// ties broken by ascending id.
func (s *StatsStore) TopReviewed(ctx context.Context, limit int, itemType *entities.ItemType) ([]*entities.Review, error) {
	query := "SELECT " + reviewColumns + " FROM reviews"
	var args []any
	if itemType != nil {
		query += " WHERE item_type = ?"
		args = append(args, string(*itemType))
	}
	query += " ORDER BY review_count DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query top reviewed: %w", entities.ErrUnavailable, err)
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
		return nil, fmt.Errorf("%w: query top reviewed: %w", entities.ErrUnavailable, err)
	}
	return out, nil
}

// HistoryBetween merges flashcard and quiz history rows inside the window.
// Quiz rows carry correctness instead of a rating; the service maps them.
func (s *StatsStore) HistoryBetween(ctx context.Context, from, to *time.Time) ([]entities.HistoryRow, error) {
	flashcard := "SELECT rating, NULL, duration_ms, reviewed_at FROM review_history"
	quiz := "SELECT 0, is_correct, duration_ms, reviewed_at FROM mcq_review_history"

	var out []entities.HistoryRow
	for _, base := range []string{flashcard, quiz} {
		query, args := historyWindow(base, from, to)
		rows, err := s.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: query history: %w", entities.ErrUnavailable, err)
		}

		for rows.Next() {
			var (
				row       entities.HistoryRow
				rating    int
				isCorrect sql.NullBool
				duration  sql.NullInt64
			)
			if err := rows.Scan(&rating, &isCorrect, &duration, &row.ReviewedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scan history: %w", entities.ErrUnavailable, err)
			}
			row.Rating = srs.Rating(rating)
			if isCorrect.Valid {
				if isCorrect.Bool {
					row.Rating = srs.Good
				} else {
					row.Rating = srs.Again
				}
			}
			if duration.Valid {
				ms := int(duration.Int64)
				row.DurationMs = &ms
			}
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: query history: %w", entities.ErrUnavailable, err)
		}
		rows.Close()
	}
	return out, nil
}

func historyWindow(base string, from, to *time.Time) (string, []any) {
	var args []any
	if from != nil {
		base += " WHERE reviewed_at >= ?"
		args = append(args, *from)
	}
	if to != nil {
		if from == nil {
			base += " WHERE reviewed_at < ?"
		} else {
			base += " AND reviewed_at < ?"
		}
		args = append(args, *to)
	}
	return base, args
}
