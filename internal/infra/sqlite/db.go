package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the sqlite driver
)

// schema mirrors the PostgreSQL schema for the embedded backend.
const schema = `
CREATE TABLE IF NOT EXISTS vocabulary (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	word       TEXT NOT NULL,
	reading    TEXT NOT NULL,
	jlpt_level INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS vocabulary_meanings (
	vocabulary_id INTEGER NOT NULL REFERENCES vocabulary(id) ON DELETE CASCADE,
	language      TEXT    NOT NULL,
	position      INTEGER NOT NULL,
	meaning       TEXT    NOT NULL,
	PRIMARY KEY (vocabulary_id, language, position)
);

CREATE TABLE IF NOT EXISTS kanji (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	character    TEXT NOT NULL,
	onyomi       TEXT NOT NULL DEFAULT '',
	kunyomi      TEXT NOT NULL DEFAULT '',
	radical      TEXT NOT NULL DEFAULT '',
	stroke_count INTEGER NOT NULL DEFAULT 0,
	jlpt_level   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kanji_meanings (
	kanji_id INTEGER NOT NULL REFERENCES kanji(id) ON DELETE CASCADE,
	language TEXT    NOT NULL,
	position INTEGER NOT NULL,
	meaning  TEXT    NOT NULL,
	PRIMARY KEY (kanji_id, language, position)
);

CREATE TABLE IF NOT EXISTS reviews (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id       INTEGER NOT NULL,
	item_type     TEXT    NOT NULL CHECK (item_type IN ('vocab', 'kanji')),
	card_state    TEXT    NOT NULL,
	due           TIMESTAMP NOT NULL,
	review_count  INTEGER NOT NULL DEFAULT 0,
	last_reviewed TIMESTAMP,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (item_id, item_type)
);

CREATE TABLE IF NOT EXISTS mcq_reviews (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id       INTEGER NOT NULL,
	item_type     TEXT    NOT NULL CHECK (item_type IN ('vocab', 'kanji')),
	card_state    TEXT    NOT NULL,
	due           TIMESTAMP NOT NULL,
	review_count  INTEGER NOT NULL DEFAULT 0,
	last_reviewed TIMESTAMP,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (item_id, item_type)
);

CREATE TABLE IF NOT EXISTS review_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	review_id   INTEGER NOT NULL REFERENCES reviews(id),
	rating      INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 4),
	duration_ms INTEGER,
	reviewed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS mcq_review_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	review_id       INTEGER NOT NULL REFERENCES mcq_reviews(id),
	selected_option INTEGER NOT NULL CHECK (selected_option BETWEEN 0 AND 3),
	is_correct      BOOLEAN NOT NULL,
	duration_ms     INTEGER,
	reviewed_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_due ON reviews(due);
CREATE INDEX IF NOT EXISTS idx_mcq_reviews_due ON mcq_reviews(due);
CREATE INDEX IF NOT EXISTS idx_review_history_reviewed_at ON review_history(reviewed_at);
CREATE INDEX IF NOT EXISTS idx_mcq_review_history_reviewed_at ON mcq_review_history(reviewed_at);
`

// DB wraps the embedded SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open creates the connection and applies the schema. SQLite allows one
// writer at a time, so the pool is pinned to a single connection; that also
// keeps in-memory databases on one connection.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// ReviewStore binds the flashcard track tables.
func (d *DB) ReviewStore() *ReviewStore {
	return &ReviewStore{conn: d.conn, table: "reviews", history: "review_history"}
}

// MCQReviewStore binds the MCQ track tables.
func (d *DB) MCQReviewStore() *ReviewStore {
	return &ReviewStore{conn: d.conn, table: "mcq_reviews", history: "mcq_review_history", mcq: true}
}

// ItemStore exposes the dictionary tables.
func (d *DB) ItemStore() *ItemStore {
	return &ItemStore{conn: d.conn}
}

// StatsStore exposes the read-only statistics queries.
func (d *DB) StatsStore() *StatsStore {
	return &StatsStore{conn: d.conn}
}
