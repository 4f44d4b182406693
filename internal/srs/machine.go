package srs

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// DefaultWeights are the FSRS v6 defaults published by the py-fsrs project.
var DefaultWeights = [21]float64{
	0.212, 1.2931, 2.3065, 8.2956,
	6.4133, 0.8334, 3.0194, 0.001,
	1.8722, 0.1666, 0.796, 1.4835,
	0.0614, 0.2629, 1.6483, 0.6014,
	1.8729, 0.5425, 0.0912, 0.0658,
	0.1542,
}

var (
	weightLowerBounds = [21]float64{
		0.001, 0.001, 0.001, 0.001,
		1.0, 0.001, 0.001, 0.001,
		0.0, 0.0, 0.001, 0.001,
		0.001, 0.001, 0.0, 0.0,
		1.0, 0.0, 0.0, 0.0,
		0.1,
	}
	weightUpperBounds = [21]float64{
		100.0, 100.0, 100.0, 100.0,
		10.0, 4.0, 4.0, 0.75,
		4.5, 0.8, 3.5, 5.0,
		0.25, 0.9, 4.0, 1.0,
		6.0, 2.0, 2.0, 0.8,
		0.8,
	}
)

// Config holds the scheduling parameters for a StateMachine. The zero value
// of every field maps to a sensible default, so Config{} is usable as-is.
type Config struct {
	Weights          [21]float64     // zero array → DefaultWeights
	DesiredRetention float64         // zero → 0.9; must stay in (0, 1)
	LearningSteps    []time.Duration // nil → [1m, 10m]; empty slice → no steps
	RelearningSteps  []time.Duration // nil → [10m]; empty slice → no steps
	MaximumInterval  int             // days; zero → 36500
	EnableFuzzing    bool            // bounded jitter on review intervals
	Rand             *rand.Rand      // fuzz source; nil → time-seeded
}

// StateMachine computes card transitions. It is immutable after construction
// and, with fuzzing disabled, a pure function of (card, rating, now).
type StateMachine struct {
	weights          [21]float64
	decay            float64 // -w[20]
	factor           float64 // 0.9^(1/decay) - 1
	desiredRetention float64
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
	maximumInterval  int
	fuzzing          bool
	rng              *rand.Rand
}

// NewStateMachine builds a StateMachine from cfg, filling zero-value fields
// with defaults and rejecting out-of-range values.
func NewStateMachine(cfg Config) (*StateMachine, error) {
	w := cfg.Weights
	if w == ([21]float64{}) {
		w = DefaultWeights
	}
	for i := range w {
		if w[i] < weightLowerBounds[i] || w[i] > weightUpperBounds[i] {
			return nil, fmt.Errorf("srs: weight w[%d] = %v outside [%v, %v]",
				i, w[i], weightLowerBounds[i], weightUpperBounds[i])
		}
	}

	retention := cfg.DesiredRetention
	if retention == 0 {
		retention = 0.9
	}
	if retention <= 0 || retention >= 1 {
		return nil, fmt.Errorf("srs: desired retention %v outside (0, 1)", retention)
	}

	maxIvl := cfg.MaximumInterval
	if maxIvl == 0 {
		maxIvl = 36500
	}
	if maxIvl < 1 {
		return nil, fmt.Errorf("srs: maximum interval %d must be at least one day", maxIvl)
	}

	learning := cfg.LearningSteps
	if learning == nil {
		learning = []time.Duration{time.Minute, 10 * time.Minute}
	}
	relearning := cfg.RelearningSteps
	if relearning == nil {
		relearning = []time.Duration{10 * time.Minute}
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	decay := -w[20]
	return &StateMachine{
		weights:          w,
		decay:            decay,
		factor:           math.Pow(0.9, 1.0/decay) - 1.0,
		desiredRetention: retention,
		learningSteps:    learning,
		relearningSteps:  relearning,
		maximumInterval:  maxIvl,
		fuzzing:          cfg.EnableFuzzing,
		rng:              rng,
	}, nil
}

// Transition applies a rating to a card at the given time and returns the
// updated card. The input card is not mutated. The returned card's Due is
// never before now.
func (m *StateMachine) Transition(card Card, rating Rating, now time.Time) (Card, error) {
	if !rating.IsValid() {
		return Card{}, fmt.Errorf("srs: invalid rating: %d", int(rating))
	}

	c := card
	if c.LastReview != nil {
		lr := *c.LastReview
		c.LastReview = &lr
	}

	var elapsedDays float64
	if c.reviewed() {
		elapsedDays = now.Sub(*c.LastReview).Hours() / 24.0
	}
	m.reviseMemory(&c, rating, elapsedDays)

	interval := m.advance(&c, rating)

	if m.fuzzing && c.State == Review {
		if days := int(interval.Hours() / 24.0); days > 0 {
			interval = time.Duration(m.fuzzedInterval(days)) * 24 * time.Hour
		}
	}
	if interval < 0 {
		interval = 0
	}

	c.Due = now.Add(interval)
	c.LastReview = &now
	c.Reps++
	return c, nil
}

// Preview returns the card that would result from each possible rating.
func (m *StateMachine) Preview(card Card, now time.Time) map[Rating]Card {
	out := make(map[Rating]Card, 4)
	for _, r := range []Rating{Again, Hard, Good, Easy} {
		c, err := m.Transition(card, r, now)
		if err == nil {
			out[r] = c
		}
	}
	return out
}

// Retrievability is the estimated probability the card can still be recalled
// at the given time. Zero for cards that were never reviewed.
func (m *StateMachine) Retrievability(card Card, now time.Time) float64 {
	if !card.reviewed() || card.Stability <= 0 {
		return 0
	}
	elapsed := now.Sub(*card.LastReview).Hours() / 24.0
	return m.forgettingCurve(elapsed, card.Stability)
}

// reviseMemory updates stability and difficulty from the review outcome.
func (m *StateMachine) reviseMemory(c *Card, rating Rating, elapsedDays float64) {
	if !c.reviewed() {
		c.Stability = clampStability(m.weights[rating-1])
		c.Difficulty = clampDifficulty(m.initialDifficulty(rating))
		return
	}

	if elapsedDays < 1 {
		c.Stability = m.sameDayStability(c.Stability, rating)
	} else {
		r := m.forgettingCurve(elapsedDays, c.Stability)
		if rating == Again {
			c.Stability = m.forgetStability(c.Difficulty, c.Stability, r)
		} else {
			c.Stability = m.recallStability(c.Difficulty, c.Stability, r, rating)
		}
	}
	c.Difficulty = m.nextDifficulty(c.Difficulty, rating)
}

// advance runs the state table and returns the next interval.
//
//	{Learning,Relearning} × {Again,Hard,Good,Easy} → {Learning,Review,Relearning}
//	Review × Again                                 → Relearning
//	Review × {Hard,Good,Easy}                      → Review
func (m *StateMachine) advance(c *Card, rating Rating) time.Duration {
	switch c.State {
	case Learning:
		return m.advanceSteps(c, rating, m.learningSteps)
	case Relearning:
		return m.advanceSteps(c, rating, m.relearningSteps)
	default:
		return m.advanceReview(c, rating)
	}
}

func (m *StateMachine) advanceSteps(c *Card, rating Rating, steps []time.Duration) time.Duration {
	if len(steps) == 0 || (c.Step >= len(steps) && rating != Again) {
		return m.graduate(c)
	}

	switch rating {
	case Again:
		c.Step = 0
		return steps[0]

	case Hard:
		// Hard repeats the current step with a stretched delay on step 0.
		if c.Step == 0 && len(steps) == 1 {
			return time.Duration(float64(steps[0]) * 1.5)
		}
		if c.Step == 0 && len(steps) >= 2 {
			return (steps[0] + steps[1]) / 2
		}
		return steps[c.Step]

	case Good:
		next := c.Step + 1
		if next >= len(steps) {
			return m.graduate(c)
		}
		c.Step = next
		return steps[next]

	default: // Easy skips the remaining steps.
		return m.graduate(c)
	}
}

func (m *StateMachine) advanceReview(c *Card, rating Rating) time.Duration {
	if rating == Again && len(m.relearningSteps) > 0 {
		c.State = Relearning
		c.Step = 0
		return m.relearningSteps[0]
	}
	c.Step = 0
	return time.Duration(m.nextIntervalDays(c.Stability)) * 24 * time.Hour
}

func (m *StateMachine) graduate(c *Card) time.Duration {
	c.State = Review
	c.Step = 0
	return time.Duration(m.nextIntervalDays(c.Stability)) * 24 * time.Hour
}

// forgettingCurve computes R(t, S) = (1 + factor·t/S)^decay.
func (m *StateMachine) forgettingCurve(elapsedDays, stability float64) float64 {
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

// nextIntervalDays inverts the forgetting curve at the retention target,
// clamped to [1, maximumInterval].
func (m *StateMachine) nextIntervalDays(stability float64) int {
	ivl := stability / m.factor * (math.Pow(m.desiredRetention, 1.0/m.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > m.maximumInterval {
		days = m.maximumInterval
	}
	return days
}

// initialDifficulty computes D₀(G) = w[4] - e^(w[5]·(G-1)) + 1, unclamped.
func (m *StateMachine) initialDifficulty(rating Rating) float64 {
	return m.weights[4] - math.Exp(m.weights[5]*float64(rating-1)) + 1
}

// nextDifficulty applies linear damping and mean reversion toward D₀(Easy).
func (m *StateMachine) nextDifficulty(difficulty float64, rating Rating) float64 {
	delta := -m.weights[6] * (float64(rating) - 3)
	damped := difficulty + (10-difficulty)*delta/9
	reverted := m.weights[7]*m.initialDifficulty(Easy) + (1-m.weights[7])*damped
	return clampDifficulty(reverted)
}

// recallStability grows stability after a successful cross-day recall.
func (m *StateMachine) recallStability(difficulty, stability, retrievability float64, rating Rating) float64 {
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = m.weights[15]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = m.weights[16]
	}
	grown := stability * (1 + math.Exp(m.weights[8])*
		(11-difficulty)*
		math.Pow(stability, -m.weights[9])*
		(math.Exp((1-retrievability)*m.weights[10])-1)*
		hardPenalty*easyBonus)
	return clampStability(grown)
}

// forgetStability reduces stability after a lapse.
func (m *StateMachine) forgetStability(difficulty, stability, retrievability float64) float64 {
	long := m.weights[11] *
		math.Pow(difficulty, -m.weights[12]) *
		(math.Pow(stability+1, m.weights[13]) - 1) *
		math.Exp((1-retrievability)*m.weights[14])
	short := stability / math.Exp(m.weights[17]*m.weights[18])
	return clampStability(math.Min(long, short))
}

// sameDayStability adjusts stability for a review less than a day after the
// previous one.
func (m *StateMachine) sameDayStability(stability float64, rating Rating) float64 {
	inc := math.Exp(m.weights[17]*(float64(rating)-3+m.weights[18])) *
		math.Pow(stability, -m.weights[19])
	if rating.Success() {
		inc = math.Max(inc, 1.0)
	}
	return clampStability(stability * inc)
}

func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
