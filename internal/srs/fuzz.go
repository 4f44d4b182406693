package srs

import "math"

// Intervals below this many days are never fuzzed.
const fuzzFloor = 2.5

type fuzzBand struct {
	start, end float64
	factor     float64
}

var fuzzBands = []fuzzBand{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// fuzzedInterval jitters a review interval so cards reviewed together do not
// stay due together forever. The result never exceeds the maximum interval.
func (m *StateMachine) fuzzedInterval(days int) int {
	if float64(days) < fuzzFloor {
		return days
	}

	ivl := float64(days)
	delta := 1.0
	for _, b := range fuzzBands {
		delta += b.factor * math.Max(math.Min(ivl, b.end)-b.start, 0)
	}

	lo := max(2, int(math.Round(ivl-delta)))
	hi := min(int(math.Round(ivl+delta)), m.maximumInterval)
	lo = min(lo, hi)

	fuzzed := lo + int(math.Round(m.rng.Float64()*float64(hi-lo+1)))
	return min(fuzzed, m.maximumInterval)
}
