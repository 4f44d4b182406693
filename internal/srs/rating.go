package srs

import "fmt"

// Rating is the user's assessment of recall quality for a single review.
// Ratings cross the storage boundary as the integers 1 through 4.
type Rating int

const (
	Again Rating = iota + 1 // failed to recall
	Hard                    // recalled with significant difficulty
	Good                    // recalled with some effort
	Easy                    // recalled effortlessly
)

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// IsValid reports whether r is within the Again..Easy range.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// Success reports whether the rating counts as a successful recall
// for retention statistics (Good or Easy).
func (r Rating) Success() bool {
	return r == Good || r == Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}
