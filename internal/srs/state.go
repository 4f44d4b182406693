package srs

import "fmt"

// State is the learning stage of a card.
type State int

const (
	Learning   State = iota + 1 // new card working through the initial learning steps
	Review                      // graduated into the long-term review cycle
	Relearning                  // lapsed from Review, re-stabilizing
)

var (
	stateNames  = [...]string{Learning: "Learning", Review: "Review", Relearning: "Relearning"}
	stateByName = map[string]State{
		"Learning":   Learning,
		"Review":     Review,
		"Relearning": Relearning,
	}
)

// IsValid reports whether s is one of the three defined states.
func (s State) IsValid() bool {
	return s >= Learning && s <= Relearning
}

func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("srs: invalid state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("srs: invalid state: %q", text)
	}
	*s = v
	return nil
}
