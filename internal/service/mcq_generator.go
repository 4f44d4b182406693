package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/hikarw/kioku/internal/domain/entities"
)

const (
	// strategyBatchSize bounds the candidates each similarity strategy may
	// contribute to the distractor pool.
	strategyBatchSize = 8

	// strategyWindowSize is how many rows a strategy fetches before the
	// generator samples its batch. Stores return windows in id order, so
	// sampling here is what keeps higher-id candidates reachable.
	strategyWindowSize = 4 * strategyBatchSize
)

// MCQGenerator builds four-option questions. Distractors are pooled from up
// to four weighted strategies (same JLPT level, meaning-keyword overlap,
// reading similarity, and for kanji visual similarity): each strategy fetches
// a window of candidates and a random batch is sampled from it, then the pool
// is de-duplicated in first-seen order and shuffled. All randomness flows
// through the injected rand source so tests can seed it.
type MCQGenerator struct {
	items       ItemStore
	defaultLang entities.Language
	rng         *rand.Rand
	log         *zap.Logger
}

// NewMCQGenerator builds a generator. rng must not be shared across
// goroutines with other users.
func NewMCQGenerator(items ItemStore, defaultLang entities.Language, rng *rand.Rand, log *zap.Logger) *MCQGenerator {
	return &MCQGenerator{
		items:       items,
		defaultLang: defaultLang,
		rng:         rng,
		log:         log,
	}
}

// Generate builds a question for the item in the given mode and language.
// The requested language is used when the item has at least one meaning in
// it; otherwise the generator falls back to its default language.
func (g *MCQGenerator) Generate(ctx context.Context, itemID int64, itemType entities.ItemType, mode entities.QuestionMode, lang entities.Language) (*entities.MCQQuestion, error) {
	if !itemType.IsValid() {
		return nil, fmt.Errorf("%w: item type %q", entities.ErrInvalidArgument, itemType)
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: question mode %q", entities.ErrInvalidArgument, mode)
	}
	if !lang.IsValid() {
		return nil, fmt.Errorf("%w: language %q", entities.ErrInvalidArgument, lang)
	}

	switch itemType {
	case entities.ItemVocab:
		return g.generateVocab(ctx, itemID, mode, lang)
	default:
		return g.generateKanji(ctx, itemID, mode, lang)
	}
}

func (g *MCQGenerator) generateVocab(ctx context.Context, itemID int64, mode entities.QuestionMode, lang entities.Language) (*entities.MCQQuestion, error) {
	item, err := g.items.VocabularyByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	lang = effectiveLanguage(item.Meanings, lang, g.defaultLang)
	meaning := item.FirstMeaning(lang)
	if meaning == "" {
		return nil, fmt.Errorf("%w: vocabulary %d has no meanings", entities.ErrNotFound, itemID)
	}

	var questionText, correct string
	if mode == entities.ModeWordToMeaning {
		questionText, correct = item.Word, meaning
	} else {
		questionText, correct = meaning, item.Word
	}

	pick := func(v *entities.Vocabulary) string {
		if mode == entities.ModeWordToMeaning {
			return v.FirstMeaning(lang)
		}
		return v.Word
	}

	var pool []string

	// Same-level neighbors carry the highest weight; they enter the pool first.
	byLevel, err := g.items.VocabularyByLevel(ctx, item.JLPTLevel, item.ID, strategyWindowSize)
	if err != nil {
		return nil, err
	}
	pool = sampleTexts(pool, g.rng, byLevel, pick)

	for _, kw := range meaningKeywords(meaning) {
		similar, err := g.items.VocabularyByMeaningKeyword(ctx, lang, kw, item.ID, strategyWindowSize)
		if err != nil {
			return nil, err
		}
		pool = sampleTexts(pool, g.rng, similar, pick)
	}

	if prefix := runePrefix(item.Reading, 2); prefix != "" {
		phonetic, err := g.items.VocabularyByReadingPrefix(ctx, prefix, item.ID, strategyWindowSize)
		if err != nil {
			return nil, err
		}
		pool = sampleTexts(pool, g.rng, phonetic, pick)
	}

	return g.assemble(item.ID, entities.ItemVocab, questionText, correct, pool,
		fmt.Sprintf("%s（%s）— %s", item.Word, item.Reading, meaning))
}

func (g *MCQGenerator) generateKanji(ctx context.Context, itemID int64, mode entities.QuestionMode, lang entities.Language) (*entities.MCQQuestion, error) {
	item, err := g.items.KanjiByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	lang = effectiveLanguage(item.Meanings, lang, g.defaultLang)
	meaning := item.FirstMeaning(lang)
	if meaning == "" {
		return nil, fmt.Errorf("%w: kanji %d has no meanings", entities.ErrNotFound, itemID)
	}

	var questionText, correct string
	if mode == entities.ModeWordToMeaning {
		questionText, correct = item.Character, meaning
	} else {
		questionText, correct = meaning, item.Character
	}

	pick := func(k *entities.Kanji) string {
		if mode == entities.ModeWordToMeaning {
			return k.FirstMeaning(lang)
		}
		return k.Character
	}

	var pool []string

	byLevel, err := g.items.KanjiByLevel(ctx, item.JLPTLevel, item.ID, strategyWindowSize)
	if err != nil {
		return nil, err
	}
	pool = sampleTexts(pool, g.rng, byLevel, pick)

	for _, kw := range meaningKeywords(meaning) {
		similar, err := g.items.KanjiByMeaningKeyword(ctx, lang, kw, item.ID, strategyWindowSize)
		if err != nil {
			return nil, err
		}
		pool = sampleTexts(pool, g.rng, similar, pick)
	}

	if len(item.Onyomi) > 0 && item.Onyomi[0] != "" {
		phonetic, err := g.items.KanjiByOnyomi(ctx, item.Onyomi[0], item.ID, strategyWindowSize)
		if err != nil {
			return nil, err
		}
		pool = sampleTexts(pool, g.rng, phonetic, pick)
	}

	// Visual similarity: same radical or a stroke count within ±2.
	visual, err := g.items.KanjiByAppearance(ctx, item.Radical, item.StrokeCount, item.ID, strategyWindowSize)
	if err != nil {
		return nil, err
	}
	pool = sampleTexts(pool, g.rng, visual, pick)

	explanation := fmt.Sprintf("%s — %s", item.Character, meaning)
	if len(item.Onyomi) > 0 {
		explanation = fmt.Sprintf("%s（%s）— %s", item.Character, strings.Join(item.Onyomi, "、"), meaning)
	}
	return g.assemble(item.ID, entities.ItemKanji, questionText, correct, pool, explanation)
}

// assemble de-duplicates the pooled texts in first-seen order, shuffles them,
// takes the first three as distractors, and shuffles the final four options
// while tracking where the correct answer lands.
func (g *MCQGenerator) assemble(itemID int64, itemType entities.ItemType, questionText, correct string, pool []string, explanation string) (*entities.MCQQuestion, error) {
	seen := map[string]struct{}{correct: {}, "": {}}
	unique := make([]string, 0, len(pool))
	for _, text := range pool {
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		unique = append(unique, text)
	}

	if len(unique) < 3 {
		return nil, fmt.Errorf("%w: item %d: %d candidates after pooling",
			entities.ErrInsufficientDistractors, itemID, len(unique))
	}

	g.rng.Shuffle(len(unique), func(i, j int) {
		unique[i], unique[j] = unique[j], unique[i]
	})
	distractors := unique[:3]

	options := [4]string{correct, distractors[0], distractors[1], distractors[2]}
	correctIndex := 0
	for i := 3; i > 0; i-- {
		j := g.rng.Intn(i + 1)
		options[i], options[j] = options[j], options[i]
		switch correctIndex {
		case i:
			correctIndex = j
		case j:
			correctIndex = i
		}
	}

	g.log.Debug("question generated",
		zap.Int64("item_id", itemID),
		zap.String("item_type", string(itemType)),
		zap.Int("pool_size", len(pool)),
	)

	return &entities.MCQQuestion{
		ItemID:       itemID,
		ItemType:     itemType,
		QuestionText: questionText,
		Options:      options,
		CorrectIndex: correctIndex,
		Explanation:  explanation,
	}, nil
}

// sampleTexts draws up to strategyBatchSize candidates from the batch without
// replacement and appends their texts to the pool. Every row of the fetched
// window has equal weight regardless of its position.
func sampleTexts[T any](pool []string, rng *rand.Rand, batch []T, pick func(T) string) []string {
	n := strategyBatchSize
	if n > len(batch) {
		n = len(batch)
	}
	for _, i := range rng.Perm(len(batch))[:n] {
		pool = append(pool, pick(batch[i]))
	}
	return pool
}

// meaningKeywords extracts the first one or two tokens of a meaning as crude
// similarity keys: the single leading token, and when available the leading
// two-token phrase.
func meaningKeywords(meaning string) []string {
	tokens := strings.Fields(strings.ToLower(meaning))
	switch {
	case len(tokens) == 0:
		return nil
	case len(tokens) == 1:
		return []string{tokens[0]}
	default:
		return []string{tokens[0], tokens[0] + " " + tokens[1]}
	}
}

// runePrefix returns the first n runes of s.
func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

// effectiveLanguage resolves the language to draw answer texts from.
func effectiveLanguage(meanings map[entities.Language][]string, requested, fallback entities.Language) entities.Language {
	if len(meanings[requested]) > 0 {
		return requested
	}
	return fallback
}
