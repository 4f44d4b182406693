package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/srs"
)

// ReviewStore persists one scheduling track on the embedded backend.
type ReviewStore struct {
	conn    *sql.DB
	table   string
	history string
	mcq     bool
}

const reviewColumns = "id, item_id, item_type, card_state, due, review_count, last_reviewed, created_at, updated_at"

// Create inserts a new review row; a duplicate (item_id, item_type) fails
// with ErrConflict through the unique constraint.
func (s *ReviewStore) Create(ctx context.Context, itemID int64, itemType entities.ItemType, card srs.Card) (int64, error) {
	blob, err := srs.EncodeCard(card)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO %s (item_id, item_type, card_state, due, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.table)

	res, err := s.conn.ExecContext(ctx, query, itemID, string(itemType), string(blob), card.Due, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return 0, fmt.Errorf("%w: %s review for %s %d", entities.ErrConflict, s.table, itemType, itemID)
		}
		return 0, fmt.Errorf("%w: create review: %w", entities.ErrUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: create review: %w", entities.ErrUnavailable, err)
	}
	return id, nil
}

// GetByID loads a review row by primary key.
func (s *ReviewStore) GetByID(ctx context.Context, id int64) (*entities.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", reviewColumns, s.table)
	return scanOneReview(s.conn.QueryRowContext(ctx, query, id))
}

// GetByItem loads the review row for an item, if any.
func (s *ReviewStore) GetByItem(ctx context.Context, itemID int64, itemType entities.ItemType) (*entities.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE item_id = ? AND item_type = ?", reviewColumns, s.table)
	return scanOneReview(s.conn.QueryRowContext(ctx, query, itemID, string(itemType)))
}

// Due selects rows due at or before now, ordered by due date then id.
func (s *ReviewStore) Due(ctx context.Context, now time.Time, f entities.ReviewFilter) ([]*entities.Review, error) {
	query, args := s.dueQuery("SELECT "+reviewColumns, now, f)
	query += " ORDER BY due ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get due reviews: %w", entities.ErrUnavailable, err)
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
		return nil, fmt.Errorf("%w: get due reviews: %w", entities.ErrUnavailable, err)
	}
	return out, nil
}

// CountDue counts rows due at or before now under the same filters as Due.
func (s *ReviewStore) CountDue(ctx context.Context, now time.Time, f entities.ReviewFilter) (int, error) {
	query, args := s.dueQuery("SELECT COUNT(*)", now, f)

	var n int
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count due reviews: %w", entities.ErrUnavailable, err)
	}
	return n, nil
}

// Apply persists a completed review and its history entry in one transaction.
func (s *ReviewStore) Apply(ctx context.Context, reviewID int64, card srs.Card, entry entities.HistoryEntry) (*entities.Review, error) {
	blob, err := srs.EncodeCard(card)
	if err != nil {
		return nil, err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %w", entities.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	update := fmt.Sprintf(`
		UPDATE %s
		SET card_state = ?, due = ?, review_count = review_count + 1,
		    last_reviewed = ?, updated_at = ?
		WHERE id = ?
	`, s.table)

	res, err := tx.ExecContext(ctx, update, string(blob), card.Due, entry.ReviewedAt, entry.ReviewedAt, reviewID)
	if err != nil {
		return nil, fmt.Errorf("%w: update review: %w", entities.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: update review: %w", entities.ErrUnavailable, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: review %d", entities.ErrNotFound, reviewID)
	}

	if s.mcq {
		insert := fmt.Sprintf(`
			INSERT INTO %s (review_id, selected_option, is_correct, duration_ms, reviewed_at)
			VALUES (?, ?, ?, ?, ?)
		`, s.history)
		_, err = tx.ExecContext(ctx, insert, reviewID, entry.SelectedOption, entry.IsCorrect, entry.DurationMs, entry.ReviewedAt)
	} else {
		insert := fmt.Sprintf(`
			INSERT INTO %s (review_id, rating, duration_ms, reviewed_at)
			VALUES (?, ?, ?, ?)
		`, s.history)
		_, err = tx.ExecContext(ctx, insert, reviewID, int(entry.Rating), entry.DurationMs, entry.ReviewedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: append history: %w", entities.ErrUnavailable, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", reviewColumns, s.table)
	updated, err := scanReview(tx.QueryRowContext(ctx, query, reviewID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit review: %w", entities.ErrUnavailable, err)
	}
	return updated, nil
}

func (s *ReviewStore) dueQuery(selectClause string, now time.Time, f entities.ReviewFilter) (string, []any) {
	query := fmt.Sprintf("%s FROM %s WHERE due <= ?", selectClause, s.table)
	args := []any{now}

	if f.ItemType != nil {
		query += " AND item_type = ?"
		args = append(args, string(*f.ItemType))
	}
	if f.JLPTLevel != nil {
		query += `
			AND ((item_type = 'vocab' AND EXISTS (
					SELECT 1 FROM vocabulary v WHERE v.id = item_id AND v.jlpt_level = ?))
			  OR (item_type = 'kanji' AND EXISTS (
					SELECT 1 FROM kanji k WHERE k.id = item_id AND k.jlpt_level = ?)))`
		args = append(args, *f.JLPTLevel, *f.JLPTLevel)
	}
	return query, args
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOneReview(row *sql.Row) (*entities.Review, error) {
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: review", entities.ErrNotFound)
		}
		return nil, err
	}
	return review, nil
}

func scanReview(row rowScanner) (*entities.Review, error) {
	var (
		review       entities.Review
		itemType     string
		blob         string
		lastReviewed sql.NullTime
	)
	err := row.Scan(
		&review.ID,
		&review.ItemID,
		&itemType,
		&blob,
		&review.Card.Due, // overwritten by the decoded blob below
		&review.ReviewCount,
		&lastReviewed,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan review: %w", entities.ErrUnavailable, err)
	}

	card, err := srs.DecodeCard([]byte(blob))
	if err != nil {
		return nil, err
	}
	review.Card = card
	review.ItemType = entities.ItemType(itemType)
	if lastReviewed.Valid {
		t := lastReviewed.Time
		review.LastReviewed = &t
	}
	return &review, nil
}
