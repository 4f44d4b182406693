package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hikarw/kioku/internal/domain/entities"
	"github.com/hikarw/kioku/internal/srs"
)

func TestRetentionRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rate, err := env.stats.RetentionRate(ctx, nil, nil)
	if err != nil {
		t.Fatalf("RetentionRate: %v", err)
	}
	if rate != 0.0 {
		t.Errorf("empty history: want 0.0, got %v", rate)
	}

	words := []struct {
		word, reading, meaning string
		rating                 srs.Rating
	}{
		{"水", "みず", "nước", srs.Again},
		{"火", "ひ", "lửa", srs.Hard},
		{"木", "き", "cây", srs.Good},
		{"金", "かね", "tiền", srs.Easy},
	}
	for _, w := range words {
		itemID := env.seedVocab(t, w.word, w.reading, 5, w.meaning)
		id, err := env.reviews.Create(ctx, itemID, entities.ItemVocab)
		if err != nil {
			t.Fatalf("Create(%s): %v", w.word, err)
		}
		if _, err := env.reviews.Process(ctx, id, w.rating, nil); err != nil {
			t.Fatalf("Process(%s): %v", w.word, err)
		}
	}

	// Good and Easy count as retained; Again and Hard do not.
	rate, err = env.stats.RetentionRate(ctx, nil, nil)
	if err != nil {
		t.Fatalf("RetentionRate: %v", err)
	}
	if rate != 50.0 {
		t.Errorf("want 50.0, got %v", rate)
	}
}

func TestRetentionRateMergesTracks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedVocab(t, "土", "つち", 5, "đất")

	flashID, err := env.reviews.Create(ctx, itemID, entities.ItemVocab)
	if err != nil {
		t.Fatalf("Create flashcard: %v", err)
	}
	if _, err := env.reviews.Process(ctx, flashID, srs.Good, nil); err != nil {
		t.Fatalf("Process flashcard: %v", err)
	}

	quizID, err := env.quizzes.Create(ctx, itemID, entities.ItemVocab)
	if err != nil {
		t.Fatalf("Create quiz: %v", err)
	}
	if _, err := env.quizzes.Process(ctx, quizID, 1, false, nil); err != nil {
		t.Fatalf("Process quiz: %v", err)
	}

	// One retained flashcard answer plus one failed quiz answer.
	rate, err := env.stats.RetentionRate(ctx, nil, nil)
	if err != nil {
		t.Fatalf("RetentionRate: %v", err)
	}
	if rate != 50.0 {
		t.Errorf("want 50.0 across both tracks, got %v", rate)
	}
}

func TestDailyCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.seedVocab(t, "山", "やま", 5, "núi")
	second := env.seedVocab(t, "川", "かわ", 5, "sông")

	start := env.clock.Now()
	id, err := env.reviews.Create(ctx, first, entities.ItemVocab)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.reviews.Process(ctx, id, srs.Good, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}

	env.clock.Advance(48 * time.Hour)
	end := env.clock.Now()
	id, err = env.reviews.Create(ctx, second, entities.ItemVocab)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.reviews.Process(ctx, id, srs.Good, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// A bounded range is zero-filled: the quiet middle day still appears.
	counts, err := env.stats.DailyCounts(ctx, &start, &end)
	if err != nil {
		t.Fatalf("DailyCounts: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("want 3 dates in range, got %d: %v", len(counts), counts)
	}
	for i, want := range []int{1, 0, 1} {
		if counts[i].Count != want {
			t.Errorf("day %d: want %d reviews, got %d", i, want, counts[i].Count)
		}
		if d := counts[i].Date; d.Hour() != 0 || d.Location() != time.UTC {
			t.Errorf("day %d: date not midnight UTC: %v", i, d)
		}
	}

	// Without bounds only active dates appear, in ascending order.
	counts, err = env.stats.DailyCounts(ctx, nil, nil)
	if err != nil {
		t.Fatalf("DailyCounts: %v", err)
	}
	if len(counts) != 2 || !counts[0].Date.Before(counts[1].Date) {
		t.Errorf("unbounded: want 2 ascending dates, got %v", counts)
	}
}

func TestAverageDuration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	avg, err := env.stats.AverageDuration(ctx, nil, nil)
	if err != nil {
		t.Fatalf("AverageDuration: %v", err)
	}
	if avg != 0.0 {
		t.Errorf("no history: want 0.0, got %v", avg)
	}

	durations := []*int{intPtr(1200), intPtr(1800), nil}
	for i, d := range durations {
		word := []string{"水", "火", "木"}[i]
		itemID := env.seedVocab(t, word, word, 5, word+"-meaning")
		id, err := env.reviews.Create(ctx, itemID, entities.ItemVocab)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := env.reviews.Process(ctx, id, srs.Good, d); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}

	// 1.2s and 1.8s average to 1.5s; the untimed row is skipped.
	avg, err = env.stats.AverageDuration(ctx, nil, nil)
	if err != nil {
		t.Fatalf("AverageDuration: %v", err)
	}
	if avg != 1.5 {
		t.Errorf("want 1.5, got %v", avg)
	}
}

func TestMastery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	vocabID := env.seedVocab(t, "水", "みず", 5, "nước")
	kanjiID := env.seedKanji(t, &entities.Kanji{
		Character: "水", StrokeCount: 4, JLPTLevel: 4,
		Meanings: map[entities.Language][]string{entities.LangVietnamese: {"nước"}},
	})

	masteredID, err := env.reviews.Create(ctx, vocabID, entities.ItemVocab)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.reviews.Create(ctx, kanjiID, entities.ItemKanji); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Push one card past the mastery threshold through the store.
	now := env.clock.Now()
	card := srs.Card{
		Stability:  25.0,
		Difficulty: 4.0,
		Due:        now.AddDate(0, 0, 25),
		LastReview: &now,
		Reps:       1,
		State:      srs.Review,
	}
	entry := entities.HistoryEntry{ReviewID: masteredID, Rating: srs.Good, ReviewedAt: now}
	if _, err := env.db.ReviewStore().Apply(ctx, masteredID, card, entry); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	stats, err := env.stats.Mastery(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Mastery: %v", err)
	}
	if stats.Mastered != 1 || stats.Total != 2 {
		t.Errorf("want 1/2 mastered, got %d/%d", stats.Mastered, stats.Total)
	}
	if got := stats.ByType[entities.ItemVocab]; got.Mastered != 1 || got.Total != 1 {
		t.Errorf("vocab: want 1/1, got %+v", got)
	}
	if got := stats.ByType[entities.ItemKanji]; got.Mastered != 0 || got.Total != 1 {
		t.Errorf("kanji: want 0/1, got %+v", got)
	}

	kanji := entities.ItemKanji
	stats, err = env.stats.Mastery(ctx, &kanji, nil)
	if err != nil {
		t.Fatalf("Mastery by type: %v", err)
	}
	if stats.Mastered != 0 || stats.Total != 1 {
		t.Errorf("kanji filter: want 0/1, got %d/%d", stats.Mastered, stats.Total)
	}

	level := 5
	stats, err = env.stats.Mastery(ctx, nil, &level)
	if err != nil {
		t.Fatalf("Mastery by level: %v", err)
	}
	if stats.Mastered != 1 || stats.Total != 1 {
		t.Errorf("level filter: want 1/1, got %d/%d", stats.Mastered, stats.Total)
	}

	bad := entities.ItemType("grammar")
	if _, err := env.stats.Mastery(ctx, &bad, nil); !errors.Is(err, entities.ErrInvalidArgument) {
		t.Errorf("bad type: want ErrInvalidArgument, got %v", err)
	}
}

func TestMostReviewed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	busy := env.seedVocab(t, "水", "みず", 5, "nước")
	quiet := env.seedVocab(t, "火", "ひ", 5, "lửa")

	busyID, err := env.reviews.Create(ctx, busy, entities.ItemVocab)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	quietID, err := env.reviews.Create(ctx, quiet, entities.ItemVocab)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := env.reviews.Process(ctx, busyID, srs.Good, nil); err != nil {
			t.Fatalf("Process: %v", err)
		}
		env.clock.Advance(time.Hour)
	}
	if _, err := env.reviews.Process(ctx, quietID, srs.Good, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}

	top, err := env.stats.MostReviewed(ctx, 10, nil)
	if err != nil {
		t.Fatalf("MostReviewed: %v", err)
	}
	if len(top) != 2 || top[0].ID != busyID || top[1].ID != quietID {
		t.Errorf("want [busy, quiet], got %v", top)
	}
	if top[0].ReviewCount != 2 {
		t.Errorf("want 2 reviews on the busy item, got %d", top[0].ReviewCount)
	}

	top, err = env.stats.MostReviewed(ctx, 1, nil)
	if err != nil {
		t.Fatalf("MostReviewed with limit: %v", err)
	}
	if len(top) != 1 || top[0].ID != busyID {
		t.Errorf("limit 1: want only the busy item, got %v", top)
	}

	if _, err := env.stats.MostReviewed(ctx, 0, nil); !errors.Is(err, entities.ErrInvalidArgument) {
		t.Errorf("limit 0: want ErrInvalidArgument, got %v", err)
	}
}

func intPtr(v int) *int { return &v }
