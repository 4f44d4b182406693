package srs

import (
	"math"
	"testing"
	"time"
)

func newTestMachine(t *testing.T, cfg Config) *StateMachine {
	t.Helper()
	m, err := NewStateMachine(cfg)
	if err != nil {
		t.Fatalf("NewStateMachine: %v", err)
	}
	return m
}

func TestNewStateMachineDefaults(t *testing.T) {
	m := newTestMachine(t, Config{})

	if m.desiredRetention != 0.9 {
		t.Errorf("expected default retention 0.9, got %v", m.desiredRetention)
	}
	if m.maximumInterval != 36500 {
		t.Errorf("expected default maximum interval 36500, got %d", m.maximumInterval)
	}
	if len(m.learningSteps) != 2 || len(m.relearningSteps) != 1 {
		t.Errorf("expected default steps [1m 10m] / [10m], got %v / %v", m.learningSteps, m.relearningSteps)
	}
}

func TestNewStateMachineRejectsBadConfig(t *testing.T) {
	badWeights := DefaultWeights
	badWeights[4] = 0.5 // below the lower bound of 1.0

	cases := []struct {
		name string
		cfg  Config
	}{
		{"retention too high", Config{DesiredRetention: 1.5}},
		{"retention negative", Config{DesiredRetention: -0.1}},
		{"weight out of bounds", Config{Weights: badWeights}},
		{"negative maximum interval", Config{MaximumInterval: -7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewStateMachine(tc.cfg); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestTransitionRejectsInvalidRating(t *testing.T) {
	m := newTestMachine(t, Config{})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, r := range []Rating{0, 5, -1} {
		if _, err := m.Transition(NewCard(now), r, now); err == nil {
			t.Errorf("rating %d: expected an error, got nil", int(r))
		}
	}
}

func TestLearningProgression(t *testing.T) {
	m := newTestMachine(t, Config{})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card := NewCard(now)
	if card.State != Learning || !card.Due.Equal(now) {
		t.Fatalf("fresh card should be Learning and due now, got %v due %v", card.State, card.Due)
	}

	// First Good moves to the second learning step, due in 10 minutes.
	card, err := m.Transition(card, Good, now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if card.State != Learning || card.Step != 1 {
		t.Errorf("after first Good: want Learning step 1, got %v step %d", card.State, card.Step)
	}
	if want := now.Add(10 * time.Minute); !card.Due.Equal(want) {
		t.Errorf("after first Good: want due %v, got %v", want, card.Due)
	}
	if card.Reps != 1 {
		t.Errorf("after first Good: want 1 rep, got %d", card.Reps)
	}
	if card.Stability <= 0 || card.Difficulty < 1 || card.Difficulty > 10 {
		t.Errorf("memory state out of range: stability %v difficulty %v", card.Stability, card.Difficulty)
	}

	// Second Good exhausts the steps and graduates to Review.
	now = now.Add(10 * time.Minute)
	card, err = m.Transition(card, Good, now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if card.State != Review || card.Step != 0 {
		t.Errorf("after graduating: want Review step 0, got %v step %d", card.State, card.Step)
	}
	if !card.Due.After(now.Add(12 * time.Hour)) {
		t.Errorf("graduated card should be due at least a day out, got %v", card.Due)
	}
}

func TestLearningAgainResetsStep(t *testing.T) {
	m := newTestMachine(t, Config{})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card, err := m.Transition(NewCard(now), Good, now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	card, err = m.Transition(card, Again, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if card.State != Learning || card.Step != 0 {
		t.Errorf("Again should restart the learning steps, got %v step %d", card.State, card.Step)
	}
}

func TestEasySkipsLearningSteps(t *testing.T) {
	m := newTestMachine(t, Config{})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card, err := m.Transition(NewCard(now), Easy, now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if card.State != Review {
		t.Errorf("Easy on a fresh card should graduate immediately, got %v", card.State)
	}
}

func TestReviewAgainLapsesToRelearning(t *testing.T) {
	m := newTestMachine(t, Config{EnableFuzzing: false})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card := reviewCard(t, m, now)

	lapsed, err := m.Transition(card, Again, card.Due)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if lapsed.State != Relearning || lapsed.Step != 0 {
		t.Errorf("Review + Again should lapse to Relearning step 0, got %v step %d", lapsed.State, lapsed.Step)
	}
	if lapsed.Stability >= card.Stability {
		t.Errorf("a lapse should shrink stability: %v -> %v", card.Stability, lapsed.Stability)
	}
	if want := lapsed.Due.Sub(card.Due); want != 10*time.Minute {
		t.Errorf("lapsed card should be due in 10 minutes, got %v", want)
	}
}

func TestSpacedGoodReviewsGrowStability(t *testing.T) {
	m := newTestMachine(t, Config{EnableFuzzing: false})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card := reviewCard(t, m, now)
	prev := card.Stability
	for i := 0; i < 5; i++ {
		next, err := m.Transition(card, Good, card.Due)
		if err != nil {
			t.Fatalf("Transition: %v", err)
		}
		if next.Stability <= prev {
			t.Fatalf("review %d: stability did not grow: %v -> %v", i, prev, next.Stability)
		}
		if next.Due.Before(card.Due) {
			t.Fatalf("review %d: due went backwards: %v -> %v", i, card.Due, next.Due)
		}
		prev = next.Stability
		card = next
	}
}

func TestTransitionIsDeterministicWithoutFuzzing(t *testing.T) {
	m := newTestMachine(t, Config{EnableFuzzing: false})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card := reviewCard(t, m, now)
	a, err := m.Transition(card, Good, card.Due)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	b, err := m.Transition(card, Good, card.Due)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !a.Due.Equal(b.Due) || a.Stability != b.Stability || a.Difficulty != b.Difficulty {
		t.Errorf("identical inputs diverged: %+v vs %+v", a, b)
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	m := newTestMachine(t, Config{})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card := reviewCard(t, m, now)
	before := card
	beforeLast := *card.LastReview

	if _, err := m.Transition(card, Again, card.Due); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if card.Stability != before.Stability || card.State != before.State || !card.LastReview.Equal(beforeLast) {
		t.Errorf("input card was mutated: %+v", card)
	}
}

func TestMaximumIntervalCap(t *testing.T) {
	m := newTestMachine(t, Config{MaximumInterval: 30, EnableFuzzing: false})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card := reviewCard(t, m, now)
	card.Stability = 500 // would schedule far past the cap

	next, err := m.Transition(card, Good, card.Due)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got := next.Due.Sub(card.Due); got > 30*24*time.Hour {
		t.Errorf("interval exceeds the 30 day cap: %v", got)
	}
}

func TestRetrievability(t *testing.T) {
	m := newTestMachine(t, Config{EnableFuzzing: false})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if got := m.Retrievability(NewCard(now), now); got != 0 {
		t.Errorf("fresh card retrievability should be 0, got %v", got)
	}

	card := reviewCard(t, m, now)

	// Right after a review recall probability is essentially 1.
	if got := m.Retrievability(card, *card.LastReview); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("retrievability at review time should be 1, got %v", got)
	}

	// After exactly one stability worth of days it equals 0.9 by definition.
	elapsed := time.Duration(card.Stability * 24 * float64(time.Hour))
	if got := m.Retrievability(card, card.LastReview.Add(elapsed)); math.Abs(got-0.9) > 1e-6 {
		t.Errorf("retrievability at t = S should be 0.9, got %v", got)
	}
}

func TestPreviewCoversAllRatings(t *testing.T) {
	m := newTestMachine(t, Config{EnableFuzzing: false})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	card := reviewCard(t, m, now)
	preview := m.Preview(card, card.Due)
	if len(preview) != 4 {
		t.Fatalf("expected previews for all 4 ratings, got %d", len(preview))
	}
	if preview[Again].State != Relearning {
		t.Errorf("Again preview should lapse, got %v", preview[Again].State)
	}
	if !preview[Easy].Due.After(preview[Hard].Due) {
		t.Errorf("Easy should schedule further out than Hard: %v vs %v", preview[Easy].Due, preview[Hard].Due)
	}
	if card.Reps != 2 {
		t.Errorf("Preview must not advance the card, reps became %d", card.Reps)
	}
}

func TestFuzzedIntervalStaysInBand(t *testing.T) {
	m := newTestMachine(t, Config{EnableFuzzing: true})

	for days := 1; days <= 60; days++ {
		for i := 0; i < 20; i++ {
			got := m.fuzzedInterval(days)
			if got < 1 || got > m.maximumInterval {
				t.Fatalf("days=%d: fuzzed interval %d outside [1, %d]", days, got, m.maximumInterval)
			}
			// 15% is the widest band, plus the constant slack near the floor.
			limit := int(float64(days)*0.20) + 2
			if diff := got - days; diff < -limit || diff > limit {
				t.Fatalf("days=%d: fuzzed interval %d strays too far", days, got)
			}
		}
	}
}

// reviewCard graduates a fresh card into the Review state via two
// same-session Good ratings.
func reviewCard(t *testing.T, m *StateMachine, now time.Time) Card {
	t.Helper()
	card, err := m.Transition(NewCard(now), Good, now)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	card, err = m.Transition(card, Good, now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if card.State != Review {
		t.Fatalf("expected a Review card, got %v", card.State)
	}
	return card
}
