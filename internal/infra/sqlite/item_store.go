package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hikarw/kioku/internal/domain/entities"
)

// ItemStore reads the dictionary tables on the embedded backend. It also
// carries the insert helpers the import pipeline and test fixtures use.
type ItemStore struct {
	conn *sql.DB
}

// Exists reports whether the item is present in its dictionary table.
func (s *ItemStore) Exists(ctx context.Context, id int64, t entities.ItemType) (bool, error) {
	table := "vocabulary"
	if t == entities.ItemKanji {
		table = "kanji"
	}

	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table)
	if err := s.conn.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, fmt.Errorf("%w: item exists: %w", entities.ErrUnavailable, err)
	}
	return n > 0, nil
}

const vocabColumns = "id, word, reading, jlpt_level"

// VocabularyByID loads one vocabulary entry with its meanings.
func (s *ItemStore) VocabularyByID(ctx context.Context, id int64) (*entities.Vocabulary, error) {
	query := fmt.Sprintf("SELECT %s FROM vocabulary WHERE id = ?", vocabColumns)

	var v entities.Vocabulary
	err := s.conn.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.Word, &v.Reading, &v.JLPTLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: vocabulary %d", entities.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get vocabulary: %w", entities.ErrUnavailable, err)
	}

	if err := s.attachVocabMeanings(ctx, []*entities.Vocabulary{&v}); err != nil {
		return nil, err
	}
	return &v, nil
}

// VocabularyByLevel returns up to limit same-level entries, excluding one id.
func (s *ItemStore) VocabularyByLevel(ctx context.Context, level int, excludeID int64, limit int) ([]*entities.Vocabulary, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vocabulary
		WHERE jlpt_level = ? AND id <> ?
		ORDER BY id ASC
		LIMIT ?
	`, vocabColumns)
	return s.queryVocab(ctx, query, level, excludeID, limit)
}

// VocabularyByMeaningKeyword returns entries whose meaning in the language
// contains the keyword.
func (s *ItemStore) VocabularyByMeaningKeyword(ctx context.Context, lang entities.Language, keyword string, excludeID int64, limit int) ([]*entities.Vocabulary, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM vocabulary v
		JOIN vocabulary_meanings m ON m.vocabulary_id = v.id
		WHERE m.language = ? AND lower(m.meaning) LIKE ? ESCAPE '\' AND v.id <> ?
		ORDER BY v.id ASC
		LIMIT ?
	`, qualify(vocabColumns, "v"))
	return s.queryVocab(ctx, query, string(lang), "%"+escapeLike(strings.ToLower(keyword))+"%", excludeID, limit)
}

// VocabularyByReadingPrefix returns entries whose kana reading starts with
// the prefix.
func (s *ItemStore) VocabularyByReadingPrefix(ctx context.Context, prefix string, excludeID int64, limit int) ([]*entities.Vocabulary, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vocabulary
		WHERE reading LIKE ? ESCAPE '\' AND id <> ?
		ORDER BY id ASC
		LIMIT ?
	`, vocabColumns)
	return s.queryVocab(ctx, query, escapeLike(prefix)+"%", excludeID, limit)
}

const kanjiColumns = "id, character, onyomi, kunyomi, radical, stroke_count, jlpt_level"

// KanjiByID loads one kanji entry with its meanings.
func (s *ItemStore) KanjiByID(ctx context.Context, id int64) (*entities.Kanji, error) {
	query := fmt.Sprintf("SELECT %s FROM kanji WHERE id = ?", kanjiColumns)

	k, err := scanKanji(s.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: kanji %d", entities.ErrNotFound, id)
		}
		return nil, err
	}

	if err := s.attachKanjiMeanings(ctx, []*entities.Kanji{k}); err != nil {
		return nil, err
	}
	return k, nil
}

// KanjiByLevel returns up to limit same-level kanji, excluding one id.
func (s *ItemStore) KanjiByLevel(ctx context.Context, level int, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM kanji
		WHERE jlpt_level = ? AND id <> ?
		ORDER BY id ASC
		LIMIT ?
	`, kanjiColumns)
	return s.queryKanji(ctx, query, level, excludeID, limit)
}

// KanjiByMeaningKeyword returns kanji whose meaning in the language contains
// the keyword.
func (s *ItemStore) KanjiByMeaningKeyword(ctx context.Context, lang entities.Language, keyword string, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM kanji k
		JOIN kanji_meanings m ON m.kanji_id = k.id
		WHERE m.language = ? AND lower(m.meaning) LIKE ? ESCAPE '\' AND k.id <> ?
		ORDER BY k.id ASC
		LIMIT ?
	`, qualify(kanjiColumns, "k"))
	return s.queryKanji(ctx, query, string(lang), "%"+escapeLike(strings.ToLower(keyword))+"%", excludeID, limit)
}

// KanjiByOnyomi returns kanji whose on-yomi readings contain the fragment.
func (s *ItemStore) KanjiByOnyomi(ctx context.Context, fragment string, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM kanji
		WHERE onyomi LIKE ? ESCAPE '\' AND id <> ?
		ORDER BY id ASC
		LIMIT ?
	`, kanjiColumns)
	return s.queryKanji(ctx, query, "%"+escapeLike(fragment)+"%", excludeID, limit)
}

// KanjiByAppearance returns kanji sharing the radical or within two strokes.
func (s *ItemStore) KanjiByAppearance(ctx context.Context, radical string, strokeCount int, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM kanji
		WHERE ((radical <> '' AND radical = ?) OR stroke_count BETWEEN ? AND ?)
		  AND id <> ?
		ORDER BY id ASC
		LIMIT ?
	`, kanjiColumns)
	return s.queryKanji(ctx, query, radical, strokeCount-2, strokeCount+2, excludeID, limit)
}

// InsertVocabulary stores a vocabulary entry with its meanings and returns
// the generated id. Used by the import pipeline and test fixtures.
func (s *ItemStore) InsertVocabulary(ctx context.Context, v *entities.Vocabulary) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO vocabulary (word, reading, jlpt_level) VALUES (?, ?, ?)",
		v.Word, v.Reading, v.JLPTLevel)
	if err != nil {
		return 0, fmt.Errorf("%w: insert vocabulary: %w", entities.ErrUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: insert vocabulary: %w", entities.ErrUnavailable, err)
	}

	for lang, meanings := range v.Meanings {
		for i, meaning := range meanings {
			_, err := s.conn.ExecContext(ctx,
				"INSERT INTO vocabulary_meanings (vocabulary_id, language, position, meaning) VALUES (?, ?, ?, ?)",
				id, string(lang), i, meaning)
			if err != nil {
				return 0, fmt.Errorf("%w: insert vocabulary meaning: %w", entities.ErrUnavailable, err)
			}
		}
	}
	return id, nil
}

// InsertKanji stores a kanji entry with its meanings and returns the
// generated id.
func (s *ItemStore) InsertKanji(ctx context.Context, k *entities.Kanji) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO kanji (character, onyomi, kunyomi, radical, stroke_count, jlpt_level) VALUES (?, ?, ?, ?, ?, ?)",
		k.Character, strings.Join(k.Onyomi, " "), strings.Join(k.Kunyomi, " "), k.Radical, k.StrokeCount, k.JLPTLevel)
	if err != nil {
		return 0, fmt.Errorf("%w: insert kanji: %w", entities.ErrUnavailable, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: insert kanji: %w", entities.ErrUnavailable, err)
	}

	for lang, meanings := range k.Meanings {
		for i, meaning := range meanings {
			_, err := s.conn.ExecContext(ctx,
				"INSERT INTO kanji_meanings (kanji_id, language, position, meaning) VALUES (?, ?, ?, ?)",
				id, string(lang), i, meaning)
			if err != nil {
				return 0, fmt.Errorf("%w: insert kanji meaning: %w", entities.ErrUnavailable, err)
			}
		}
	}
	return id, nil
}

func (s *ItemStore) queryVocab(ctx context.Context, query string, args ...any) ([]*entities.Vocabulary, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query vocabulary: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*entities.Vocabulary
	for rows.Next() {
		var v entities.Vocabulary
		if err := rows.Scan(&v.ID, &v.Word, &v.Reading, &v.JLPTLevel); err != nil {
			return nil, fmt.Errorf("%w: scan vocabulary: %w", entities.ErrUnavailable, err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query vocabulary: %w", entities.ErrUnavailable, err)
	}

	if err := s.attachVocabMeanings(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ItemStore) queryKanji(ctx context.Context, query string, args ...any) ([]*entities.Kanji, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query kanji: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*entities.Kanji
	for rows.Next() {
		k, err := scanKanji(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query kanji: %w", entities.ErrUnavailable, err)
	}

	if err := s.attachKanjiMeanings(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanKanji(row rowScanner) (*entities.Kanji, error) {
	var (
		k               entities.Kanji
		onyomi, kunyomi string
	)
	err := row.Scan(&k.ID, &k.Character, &onyomi, &kunyomi, &k.Radical, &k.StrokeCount, &k.JLPTLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan kanji: %w", entities.ErrUnavailable, err)
	}
	k.Onyomi = strings.Fields(onyomi)
	k.Kunyomi = strings.Fields(kunyomi)
	return &k, nil
}

func (s *ItemStore) attachVocabMeanings(ctx context.Context, items []*entities.Vocabulary) error {
	byID := make(map[int64]*entities.Vocabulary, len(items))
	placeholders, ids := idList(len(items))
	for i, v := range items {
		byID[v.ID] = v
		ids[i] = v.ID
	}
	if len(items) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		SELECT vocabulary_id, language, meaning
		FROM vocabulary_meanings
		WHERE vocabulary_id IN (%s)
		ORDER BY vocabulary_id, language, position
	`, placeholders)

	rows, err := s.conn.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("%w: query vocabulary meanings: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			lang    string
			meaning string
		)
		if err := rows.Scan(&id, &lang, &meaning); err != nil {
			return fmt.Errorf("%w: scan vocabulary meaning: %w", entities.ErrUnavailable, err)
		}
		v := byID[id]
		if v.Meanings == nil {
			v.Meanings = make(map[entities.Language][]string)
		}
		v.Meanings[entities.Language(lang)] = append(v.Meanings[entities.Language(lang)], meaning)
	}
	return rows.Err()
}

func (s *ItemStore) attachKanjiMeanings(ctx context.Context, items []*entities.Kanji) error {
	byID := make(map[int64]*entities.Kanji, len(items))
	placeholders, ids := idList(len(items))
	for i, k := range items {
		byID[k.ID] = k
		ids[i] = k.ID
	}
	if len(items) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		SELECT kanji_id, language, meaning
		FROM kanji_meanings
		WHERE kanji_id IN (%s)
		ORDER BY kanji_id, language, position
	`, placeholders)

	rows, err := s.conn.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("%w: query kanji meanings: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			lang    string
			meaning string
		)
		if err := rows.Scan(&id, &lang, &meaning); err != nil {
			return fmt.Errorf("%w: scan kanji meaning: %w", entities.ErrUnavailable, err)
		}
		k := byID[id]
		if k.Meanings == nil {
			k.Meanings = make(map[entities.Language][]string)
		}
		k.Meanings[entities.Language(lang)] = append(k.Meanings[entities.Language(lang)], meaning)
	}
	return rows.Err()
}

// idList builds an "?, ?, ..." placeholder list and an args slice of size n.
func idList(n int) (string, []any) {
	if n == 0 {
		return "", nil
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", "), make([]any, n)
}

// qualify prefixes each column in a comma-separated list with an alias.
func qualify(columns, alias string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

// escapeLike escapes LIKE metacharacters in user-derived fragments.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
