package srs

import (
	"encoding/json"
	"time"
)

// Card is the memory state tracked per studied item. It is embedded in a
// review row as a versioned blob, never stored as a row of its own.
type Card struct {
	Stability  float64    // estimated days until recall probability decays to the retention target
	Difficulty float64    // per-card scalar in [1, 10]; zero before the first review
	Due        time.Time  // absolute timestamp at which the card becomes reviewable
	LastReview *time.Time // nil before the first review
	Reps       uint32     // completed reviews
	State      State
	Step       int // index into the learning/relearning steps; meaningless in Review

	// Extra carries fields of the persisted blob this version does not know
	// about, so they survive a decode/encode round trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// NewCard returns a fresh Learning-state card due immediately.
func NewCard(now time.Time) Card {
	return Card{
		State: Learning,
		Due:   now,
	}
}

// reviewed reports whether the card has been reviewed at least once.
func (c Card) reviewed() bool {
	return c.LastReview != nil
}
