package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/infra/postgres"
	"github.com/hikarw/kioku/internal/srs"
)

// pgUniqueViolation is SQLSTATE 23505.
const pgUniqueViolation = "23505"

// ReviewRepository persists one scheduling track. The flashcard and MCQ
// tracks share the row shape but live in independent tables; the mcq flag
// only changes how history entries are written.
type ReviewRepository struct {
	db      postgres.DBTX
	txr     *postgres.Transactor
	table   string
	history string
	mcq     bool
}

// NewReviewRepository binds the flashcard track tables.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{
		db:      pool,
		txr:     postgres.NewTransactor(pool),
		table:   "reviews",
		history: "review_history",
	}
}

// NewMCQReviewRepository binds the MCQ track tables.
func NewMCQReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{
		db:      pool,
		txr:     postgres.NewTransactor(pool),
		table:   "mcq_reviews",
		history: "mcq_review_history",
		mcq:     true,
	}
}

const reviewColumns = "id, item_id, item_type, card_state, due, review_count, last_reviewed, created_at, updated_at"

// Create inserts a new review row. A concurrent or repeated insert for the
// same (item_id, item_type) loses with ErrConflict via the unique constraint.
func (r *ReviewRepository) Create(ctx context.Context, itemID int64, itemType entities.ItemType, card srs.Card) (int64, error) {
	blob, err := srs.EncodeCard(card)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (item_id, item_type, card_state, due)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, r.table)

	var id int64
	err = r.db.QueryRow(ctx, query, itemID, itemType, blob, card.Due).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, fmt.Errorf("%w: %s review for %s %d", entities.ErrConflict, r.table, itemType, itemID)
		}
		return 0, fmt.Errorf("%w: create review: %w", entities.ErrUnavailable, err)
	}
	return id, nil
}

// GetByID loads a review row by primary key.
func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (*entities.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", reviewColumns, r.table)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByItem loads the review row for an item, if any.
func (r *ReviewRepository) GetByItem(ctx context.Context, itemID int64, itemType entities.ItemType) (*entities.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE item_id = $1 AND item_type = $2", reviewColumns, r.table)
	return r.scanOne(r.db.QueryRow(ctx, query, itemID, itemType))
}

// Due selects rows due at or before now, ordered by due date then id.
func (r *ReviewRepository) Due(ctx context.Context, now time.Time, f entities.ReviewFilter) ([]*entities.Review, error) {
	query, args := r.dueQuery("SELECT "+reviewColumns, now, f)
	query += " ORDER BY due ASC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
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
func (r *ReviewRepository) CountDue(ctx context.Context, now time.Time, f entities.ReviewFilter) (int, error) {
	query, args := r.dueQuery("SELECT COUNT(*)", now, f)

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count due reviews: %w", entities.ErrUnavailable, err)
	}
	return n, nil
}

// Apply persists a completed review: new card state, incremented counter,
// last_reviewed, and the history entry, all in one transaction.
func (r *ReviewRepository) Apply(ctx context.Context, reviewID int64, card srs.Card, entry entities.HistoryEntry) (*entities.Review, error) {
	blob, err := srs.EncodeCard(card)
	if err != nil {
		return nil, err
	}

	var updated *entities.Review
	err = r.txr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		update := fmt.Sprintf(`
			UPDATE %s
			SET card_state = $1, due = $2, review_count = review_count + 1,
			    last_reviewed = $3, updated_at = $3
			WHERE id = $4
		`, r.table)

		tag, err := tx.Exec(ctx, update, blob, card.Due, entry.ReviewedAt, reviewID)
		if err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: review %d", entities.ErrNotFound, reviewID)
		}

		if r.mcq {
			insert := fmt.Sprintf(`
				INSERT INTO %s (review_id, selected_option, is_correct, duration_ms, reviewed_at)
				VALUES ($1, $2, $3, $4, $5)
			`, r.history)
			if _, err := tx.Exec(ctx, insert, reviewID, entry.SelectedOption, entry.IsCorrect, entry.DurationMs, entry.ReviewedAt); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		} else {
			insert := fmt.Sprintf(`
				INSERT INTO %s (review_id, rating, duration_ms, reviewed_at)
				VALUES ($1, $2, $3, $4)
			`, r.history)
			if _, err := tx.Exec(ctx, insert, reviewID, int(entry.Rating), entry.DurationMs, entry.ReviewedAt); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}

		query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", reviewColumns, r.table)
		review, err := scanReview(tx.QueryRow(ctx, query, reviewID))
		if err != nil {
			return err
		}
		updated = review
		return nil
	})
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: apply review: %w", entities.ErrUnavailable, err)
	}
	return updated, nil
}

// dueQuery builds the shared WHERE clause for Due and CountDue.
func (r *ReviewRepository) dueQuery(selectClause string, now time.Time, f entities.ReviewFilter) (string, []any) {
	query := fmt.Sprintf("%s FROM %s WHERE due <= $1", selectClause, r.table)
	args := []any{now}

	if f.ItemType != nil {
		args = append(args, *f.ItemType)
		query += fmt.Sprintf(" AND item_type = $%d", len(args))
	}
	if f.JLPTLevel != nil {
		args = append(args, *f.JLPTLevel)
		n := len(args)
		query += fmt.Sprintf(`
			AND ((item_type = 'vocab' AND EXISTS (
					SELECT 1 FROM vocabulary v WHERE v.id = item_id AND v.jlpt_level = $%d))
			  OR (item_type = 'kanji' AND EXISTS (
					SELECT 1 FROM kanji k WHERE k.id = item_id AND k.jlpt_level = $%d)))`, n, n)
	}
	return query, args
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ReviewRepository) scanOne(row pgx.Row) (*entities.Review, error) {
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: review", entities.ErrNotFound)
		}
		return nil, err
	}
	return review, nil
}

func scanReview(row rowScanner) (*entities.Review, error) {
	var (
		review entities.Review
		blob   []byte
		due    time.Time
	)
	err := row.Scan(
		&review.ID,
		&review.ItemID,
		&review.ItemType,
		&blob,
		&due,
		&review.ReviewCount,
		&review.LastReviewed,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan review: %w", entities.ErrUnavailable, err)
	}

	card, err := srs.DecodeCard(blob)
	if err != nil {
		return nil, err
	}
	review.Card = card
	return &review, nil
}
