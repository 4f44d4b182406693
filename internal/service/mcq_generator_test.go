package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hikarw/kioku/internal/domain/entities"
)

func newTestGenerator(env *testEnv, seed int64) *MCQGenerator {
	return NewMCQGenerator(env.db.ItemStore(), entities.LangVietnamese,
		rand.New(rand.NewSource(seed)), zap.NewNop())
}

// seedVocabPool inserts a target word plus enough same-level neighbors to
// fill a distractor pool, and returns the target id.
func seedVocabPool(t *testing.T, env *testEnv) int64 {
	t.Helper()
	target := env.seedVocab(t, "水", "みず", 5, "nước")
	env.seedVocab(t, "火", "ひ", 5, "lửa")
	env.seedVocab(t, "木", "き", 5, "cây")
	env.seedVocab(t, "金", "かね", 5, "tiền")
	env.seedVocab(t, "土", "つち", 5, "đất")
	return target
}

func TestGenerateVocabWordToMeaning(t *testing.T) {
	env := newTestEnv(t)
	target := seedVocabPool(t, env)
	gen := newTestGenerator(env, 1)

	q, err := gen.Generate(context.Background(), target, entities.ItemVocab,
		entities.ModeWordToMeaning, entities.LangVietnamese)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if q.QuestionText != "水" {
		t.Errorf("question text: want the word, got %q", q.QuestionText)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
		t.Fatalf("correct index %d outside 0-3", q.CorrectIndex)
	}
	if q.Options[q.CorrectIndex] != "nước" {
		t.Errorf("options[%d]: want the correct meaning, got %q", q.CorrectIndex, q.Options[q.CorrectIndex])
	}
	if !q.IsCorrect(q.CorrectIndex) || q.IsCorrect((q.CorrectIndex+1)%4) {
		t.Error("IsCorrect disagrees with CorrectIndex")
	}

	seen := map[string]bool{}
	valid := map[string]bool{"nước": true, "lửa": true, "cây": true, "tiền": true, "đất": true}
	for _, opt := range q.Options {
		if opt == "" {
			t.Error("empty option")
		}
		if seen[opt] {
			t.Errorf("duplicate option %q", opt)
		}
		if !valid[opt] {
			t.Errorf("option %q is not a seeded meaning", opt)
		}
		seen[opt] = true
	}
}

func TestGenerateVocabMeaningToWord(t *testing.T) {
	env := newTestEnv(t)
	target := seedVocabPool(t, env)
	gen := newTestGenerator(env, 1)

	q, err := gen.Generate(context.Background(), target, entities.ItemVocab,
		entities.ModeMeaningToWord, entities.LangVietnamese)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if q.QuestionText != "nước" {
		t.Errorf("question text: want the meaning, got %q", q.QuestionText)
	}
	if q.Options[q.CorrectIndex] != "水" {
		t.Errorf("options[%d]: want the target word, got %q", q.CorrectIndex, q.Options[q.CorrectIndex])
	}
}

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	env := newTestEnv(t)
	target := seedVocabPool(t, env)

	a, err := newTestGenerator(env, 42).Generate(context.Background(), target,
		entities.ItemVocab, entities.ModeWordToMeaning, entities.LangVietnamese)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := newTestGenerator(env, 42).Generate(context.Background(), target,
		entities.ItemVocab, entities.ModeWordToMeaning, entities.LangVietnamese)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed diverged:\n%+v\n%+v", a, b)
	}
}

func TestGenerateSamplesAcrossSameLevelPool(t *testing.T) {
	env := newTestEnv(t)
	target := env.seedVocab(t, "水", "みず", 5, "nước")

	// Twenty same-level neighbors with strictly increasing ids. If the
	// same-level strategy only ever drew the lowest-id rows, meanings from
	// the later half could never surface as distractors.
	const neighbors = 20
	lateHalf := map[string]bool{}
	for i := 0; i < neighbors; i++ {
		meaning := fmt.Sprintf("nghĩa %02d", i)
		env.seedVocab(t, fmt.Sprintf("語%02d", i), fmt.Sprintf("ご%02d", i), 5, meaning)
		if i >= neighbors/2 {
			lateHalf[meaning] = true
		}
	}

	lateHits := 0
	for seed := int64(0); seed < 50; seed++ {
		q, err := newTestGenerator(env, seed).Generate(context.Background(), target,
			entities.ItemVocab, entities.ModeWordToMeaning, entities.LangVietnamese)
		if err != nil {
			t.Fatalf("Generate(seed %d): %v", seed, err)
		}
		for _, opt := range q.Options {
			if lateHalf[opt] {
				lateHits++
			}
		}
	}
	if lateHits == 0 {
		t.Error("no distractor drawn from the high-id half of the same-level pool across 50 seeds")
	}
}

func TestGenerateInsufficientDistractors(t *testing.T) {
	env := newTestEnv(t)
	target := env.seedVocab(t, "水", "みず", 5, "nước")
	env.seedVocab(t, "火", "ひ", 5, "lửa")
	env.seedVocab(t, "木", "き", 5, "cây")
	gen := newTestGenerator(env, 1)

	_, err := gen.Generate(context.Background(), target, entities.ItemVocab,
		entities.ModeWordToMeaning, entities.LangVietnamese)
	if !errors.Is(err, entities.ErrInsufficientDistractors) {
		t.Errorf("two candidates: want ErrInsufficientDistractors, got %v", err)
	}
}

func TestGenerateSkipsDuplicateMeanings(t *testing.T) {
	env := newTestEnv(t)
	target := env.seedVocab(t, "水", "みず", 5, "nước")
	// Shares the target's meaning, so it cannot appear as a distractor.
	env.seedVocab(t, "お冷", "おひや", 5, "nước")
	env.seedVocab(t, "火", "ひ", 5, "lửa")
	env.seedVocab(t, "木", "き", 5, "cây")
	env.seedVocab(t, "金", "かね", 5, "tiền")
	gen := newTestGenerator(env, 1)

	q, err := gen.Generate(context.Background(), target, entities.ItemVocab,
		entities.ModeWordToMeaning, entities.LangVietnamese)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	dupes := 0
	for _, opt := range q.Options {
		if opt == "nước" {
			dupes++
		}
	}
	if dupes != 1 {
		t.Errorf("the shared meaning must appear exactly once, got %d", dupes)
	}
}

func TestGenerateLanguageFallback(t *testing.T) {
	env := newTestEnv(t)
	// Items carry Vietnamese meanings only; an English request falls back.
	target := seedVocabPool(t, env)
	gen := newTestGenerator(env, 1)

	q, err := gen.Generate(context.Background(), target, entities.ItemVocab,
		entities.ModeWordToMeaning, entities.LangEnglish)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q.Options[q.CorrectIndex] != "nước" {
		t.Errorf("fallback: want the default-language meaning, got %q", q.Options[q.CorrectIndex])
	}
}

func TestGenerateKanji(t *testing.T) {
	env := newTestEnv(t)
	vi := entities.LangVietnamese

	target := env.seedKanji(t, &entities.Kanji{
		Character: "水", Onyomi: []string{"スイ"}, Kunyomi: []string{"みず"},
		Radical: "水", StrokeCount: 4, JLPTLevel: 5,
		Meanings: map[entities.Language][]string{vi: {"nước"}},
	})
	for _, k := range []*entities.Kanji{
		{Character: "火", Onyomi: []string{"カ"}, Radical: "火", StrokeCount: 4, JLPTLevel: 5,
			Meanings: map[entities.Language][]string{vi: {"lửa"}}},
		{Character: "木", Onyomi: []string{"モク"}, Radical: "木", StrokeCount: 4, JLPTLevel: 5,
			Meanings: map[entities.Language][]string{vi: {"cây"}}},
		{Character: "金", Onyomi: []string{"キン"}, Radical: "金", StrokeCount: 8, JLPTLevel: 5,
			Meanings: map[entities.Language][]string{vi: {"vàng"}}},
	} {
		env.seedKanji(t, k)
	}
	gen := newTestGenerator(env, 1)

	q, err := gen.Generate(context.Background(), target, entities.ItemKanji,
		entities.ModeMeaningToWord, vi)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if q.QuestionText != "nước" {
		t.Errorf("question text: want the meaning, got %q", q.QuestionText)
	}
	if q.Options[q.CorrectIndex] != "水" {
		t.Errorf("options[%d]: want the target character, got %q", q.CorrectIndex, q.Options[q.CorrectIndex])
	}
	if q.ItemType != entities.ItemKanji {
		t.Errorf("want kanji item type, got %q", q.ItemType)
	}
}

func TestGenerateValidation(t *testing.T) {
	env := newTestEnv(t)
	target := seedVocabPool(t, env)
	gen := newTestGenerator(env, 1)
	ctx := context.Background()

	cases := []struct {
		name string
		typ  entities.ItemType
		mode entities.QuestionMode
		lang entities.Language
	}{
		{"bad type", "grammar", entities.ModeWordToMeaning, entities.LangVietnamese},
		{"bad mode", entities.ItemVocab, "reading_to_word", entities.LangVietnamese},
		{"bad language", entities.ItemVocab, entities.ModeWordToMeaning, "fr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gen.Generate(ctx, target, tc.typ, tc.mode, tc.lang)
			if !errors.Is(err, entities.ErrInvalidArgument) {
				t.Errorf("want ErrInvalidArgument, got %v", err)
			}
		})
	}

	_, err := gen.Generate(ctx, 999, entities.ItemVocab, entities.ModeWordToMeaning, entities.LangVietnamese)
	if !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("missing item: want ErrNotFound, got %v", err)
	}
}
