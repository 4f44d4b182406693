package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/infra/postgres"
)

// ItemRepository reads the dictionary tables filled by the import pipeline.
// Candidate queries order by id so sampling randomness stays with the caller.
type ItemRepository struct {
	db postgres.DBTX
}

// NewItemRepository creates an ItemRepository.
func NewItemRepository(db postgres.DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

// Exists reports whether the item is present in its dictionary table.
func (r *ItemRepository) Exists(ctx context.Context, id int64, t entities.ItemType) (bool, error) {
	table := "vocabulary"
	if t == entities.ItemKanji {
		table = "kanji"
	}

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table)
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: item exists: %w", entities.ErrUnavailable, err)
	}
	return exists, nil
}

const vocabColumns = "id, word, reading, jlpt_level"

// VocabularyByID loads one vocabulary entry with its meanings.
func (r *ItemRepository) VocabularyByID(ctx context.Context, id int64) (*entities.Vocabulary, error) {
	query := fmt.Sprintf("SELECT %s FROM vocabulary WHERE id = $1", vocabColumns)

	var v entities.Vocabulary
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.Word, &v.Reading, &v.JLPTLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: vocabulary %d", entities.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get vocabulary: %w", entities.ErrUnavailable, err)
	}

	if err := r.attachVocabMeanings(ctx, []*entities.Vocabulary{&v}); err != nil {
		return nil, err
	}
	return &v, nil
}

// VocabularyByLevel returns up to limit same-level entries, excluding one id.
func (r *ItemRepository) VocabularyByLevel(ctx context.Context, level int, excludeID int64, limit int) ([]*entities.Vocabulary, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vocabulary
		WHERE jlpt_level = $1 AND id <> $2
		ORDER BY id ASC
		LIMIT $3
	`, vocabColumns)
	return r.queryVocab(ctx, query, level, excludeID, limit)
}

// VocabularyByMeaningKeyword returns entries whose meaning in the language
// contains the keyword.
func (r *ItemRepository) VocabularyByMeaningKeyword(ctx context.Context, lang entities.Language, keyword string, excludeID int64, limit int) ([]*entities.Vocabulary, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM vocabulary v
		JOIN vocabulary_meanings m ON m.vocabulary_id = v.id
		WHERE m.language = $1 AND lower(m.meaning) LIKE $2 AND v.id <> $3
		ORDER BY id ASC
		LIMIT $4
	`, qualify(vocabColumns, "v"))
	return r.queryVocab(ctx, query, lang, "%"+escapeLike(strings.ToLower(keyword))+"%", excludeID, limit)
}

// VocabularyByReadingPrefix returns entries whose kana reading starts with
// the prefix.
func (r *ItemRepository) VocabularyByReadingPrefix(ctx context.Context, prefix string, excludeID int64, limit int) ([]*entities.Vocabulary, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM vocabulary
		WHERE reading LIKE $1 AND id <> $2
		ORDER BY id ASC
		LIMIT $3
	`, vocabColumns)
	return r.queryVocab(ctx, query, escapeLike(prefix)+"%", excludeID, limit)
}

const kanjiColumns = "id, character, onyomi, kunyomi, radical, stroke_count, jlpt_level"

// KanjiByID loads one kanji entry with its meanings.
func (r *ItemRepository) KanjiByID(ctx context.Context, id int64) (*entities.Kanji, error) {
	query := fmt.Sprintf("SELECT %s FROM kanji WHERE id = $1", kanjiColumns)

	k, err := scanKanji(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: kanji %d", entities.ErrNotFound, id)
		}
		return nil, err
	}

	if err := r.attachKanjiMeanings(ctx, []*entities.Kanji{k}); err != nil {
		return nil, err
	}
	return k, nil
}

// KanjiByLevel returns up to limit same-level kanji, excluding one id.
func (r *ItemRepository) KanjiByLevel(ctx context.Context, level int, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM kanji
		WHERE jlpt_level = $1 AND id <> $2
		ORDER BY id ASC
		LIMIT $3
	`, kanjiColumns)
	return r.queryKanji(ctx, query, level, excludeID, limit)
}

// KanjiByMeaningKeyword returns kanji whose meaning in the language contains
// the keyword.
func (r *ItemRepository) KanjiByMeaningKeyword(ctx context.Context, lang entities.Language, keyword string, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM kanji k
		JOIN kanji_meanings m ON m.kanji_id = k.id
		WHERE m.language = $1 AND lower(m.meaning) LIKE $2 AND k.id <> $3
		ORDER BY id ASC
		LIMIT $4
	`, qualify(kanjiColumns, "k"))
	return r.queryKanji(ctx, query, lang, "%"+escapeLike(strings.ToLower(keyword))+"%", excludeID, limit)
}

// KanjiByOnyomi returns kanji whose on-yomi readings contain the fragment.
func (r *ItemRepository) KanjiByOnyomi(ctx context.Context, fragment string, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM kanji
		WHERE onyomi LIKE $1 AND id <> $2
		ORDER BY id ASC
		LIMIT $3
	`, kanjiColumns)
	return r.queryKanji(ctx, query, "%"+escapeLike(fragment)+"%", excludeID, limit)
}

// KanjiByAppearance returns kanji sharing the radical or within two strokes.
func (r *ItemRepository) KanjiByAppearance(ctx context.Context, radical string, strokeCount int, excludeID int64, limit int) ([]*entities.Kanji, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM kanji
		WHERE ((radical <> '' AND radical = $1) OR stroke_count BETWEEN $2 AND $3)
		  AND id <> $4
		ORDER BY id ASC
		LIMIT $5
	`, kanjiColumns)
	return r.queryKanji(ctx, query, radical, strokeCount-2, strokeCount+2, excludeID, limit)
}

func (r *ItemRepository) queryVocab(ctx context.Context, query string, args ...any) ([]*entities.Vocabulary, error) {
	rows, err := r.db.Query(ctx, query, args...)
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

	if err := r.attachVocabMeanings(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ItemRepository) queryKanji(ctx context.Context, query string, args ...any) ([]*entities.Kanji, error) {
	rows, err := r.db.Query(ctx, query, args...)
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

	if err := r.attachKanjiMeanings(ctx, out); err != nil {
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan kanji: %w", entities.ErrUnavailable, err)
	}
	k.Onyomi = strings.Fields(onyomi)
	k.Kunyomi = strings.Fields(kunyomi)
	return &k, nil
}

func (r *ItemRepository) attachVocabMeanings(ctx context.Context, items []*entities.Vocabulary) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int64]*entities.Vocabulary, len(items))
	ids := make([]int64, 0, len(items))
	for _, v := range items {
		byID[v.ID] = v
		ids = append(ids, v.ID)
	}

	query := `
		SELECT vocabulary_id, language, meaning
		FROM vocabulary_meanings
		WHERE vocabulary_id = ANY($1)
		ORDER BY vocabulary_id, language, position
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("%w: query vocabulary meanings: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			lang    entities.Language
			meaning string
		)
		if err := rows.Scan(&id, &lang, &meaning); err != nil {
			return fmt.Errorf("%w: scan vocabulary meaning: %w", entities.ErrUnavailable, err)
		}
		v := byID[id]
		if v.Meanings == nil {
			v.Meanings = make(map[entities.Language][]string)
		}
		v.Meanings[lang] = append(v.Meanings[lang], meaning)
	}
	return rows.Err()
}

func (r *ItemRepository) attachKanjiMeanings(ctx context.Context, items []*entities.Kanji) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int64]*entities.Kanji, len(items))
	ids := make([]int64, 0, len(items))
	for _, k := range items {
		byID[k.ID] = k
		ids = append(ids, k.ID)
	}

	query := `
		SELECT kanji_id, language, meaning
		FROM kanji_meanings
		WHERE kanji_id = ANY($1)
		ORDER BY kanji_id, language, position
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("%w: query kanji meanings: %w", entities.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			lang    entities.Language
			meaning string
		)
		if err := rows.Scan(&id, &lang, &meaning); err != nil {
			return fmt.Errorf("%w: scan kanji meaning: %w", entities.ErrUnavailable, err)
		}
		k := byID[id]
		if k.Meanings == nil {
			k.Meanings = make(map[entities.Language][]string)
		}
		k.Meanings[lang] = append(k.Meanings[lang], meaning)
	}
	return rows.Err()
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
