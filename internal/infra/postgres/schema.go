package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the dictionary, review, and history tables. Statements are
// idempotent so Migrate can run on every start.
const schema = `
CREATE TABLE IF NOT EXISTS vocabulary (
	id         BIGSERIAL PRIMARY KEY,
	word       TEXT NOT NULL,
	reading    TEXT NOT NULL,
	jlpt_level INT  NOT NULL
);

CREATE TABLE IF NOT EXISTS vocabulary_meanings (
	vocabulary_id BIGINT NOT NULL REFERENCES vocabulary(id) ON DELETE CASCADE,
	language      TEXT   NOT NULL,
	position      INT    NOT NULL,
	meaning       TEXT   NOT NULL,
	PRIMARY KEY (vocabulary_id, language, position)
);

CREATE TABLE IF NOT EXISTS kanji (
	id           BIGSERIAL PRIMARY KEY,
	character    TEXT NOT NULL,
	onyomi       TEXT NOT NULL DEFAULT '',
	kunyomi      TEXT NOT NULL DEFAULT '',
	radical      TEXT NOT NULL DEFAULT '',
	stroke_count INT  NOT NULL DEFAULT 0,
	jlpt_level   INT  NOT NULL
);

CREATE TABLE IF NOT EXISTS kanji_meanings (
	kanji_id BIGINT NOT NULL REFERENCES kanji(id) ON DELETE CASCADE,
	language TEXT   NOT NULL,
	position INT    NOT NULL,
	meaning  TEXT   NOT NULL,
	PRIMARY KEY (kanji_id, language, position)
);

CREATE TABLE IF NOT EXISTS reviews (
	id            BIGSERIAL PRIMARY KEY,
	item_id       BIGINT NOT NULL,
	item_type     TEXT   NOT NULL CHECK (item_type IN ('vocab', 'kanji')),
	card_state    JSONB  NOT NULL,
	due           TIMESTAMPTZ NOT NULL,
	review_count  INT    NOT NULL DEFAULT 0,
	last_reviewed TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (item_id, item_type)
);

CREATE TABLE IF NOT EXISTS mcq_reviews (
	id            BIGSERIAL PRIMARY KEY,
	item_id       BIGINT NOT NULL,
	item_type     TEXT   NOT NULL CHECK (item_type IN ('vocab', 'kanji')),
	card_state    JSONB  NOT NULL,
	due           TIMESTAMPTZ NOT NULL,
	review_count  INT    NOT NULL DEFAULT 0,
	last_reviewed TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (item_id, item_type)
);

CREATE TABLE IF NOT EXISTS review_history (
	id          BIGSERIAL PRIMARY KEY,
	review_id   BIGINT   NOT NULL REFERENCES reviews(id),
	rating      SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 4),
	duration_ms INT,
	reviewed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS mcq_review_history (
	id              BIGSERIAL PRIMARY KEY,
	review_id       BIGINT   NOT NULL REFERENCES mcq_reviews(id),
	selected_option SMALLINT NOT NULL CHECK (selected_option BETWEEN 0 AND 3),
	is_correct      BOOLEAN  NOT NULL,
	duration_ms     INT,
	reviewed_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_due ON reviews(due);
CREATE INDEX IF NOT EXISTS idx_mcq_reviews_due ON mcq_reviews(due);
CREATE INDEX IF NOT EXISTS idx_review_history_reviewed_at ON review_history(reviewed_at);
CREATE INDEX IF NOT EXISTS idx_mcq_review_history_reviewed_at ON mcq_review_history(reviewed_at);
CREATE INDEX IF NOT EXISTS idx_vocabulary_jlpt_level ON vocabulary(jlpt_level);
CREATE INDEX IF NOT EXISTS idx_kanji_jlpt_level ON kanji(jlpt_level);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
