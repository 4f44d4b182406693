package entities

import "errors"

// Error taxonomy shared by the services and both storage backends.
// Callers match with errors.Is.
var (
	// ErrNotFound - the referenced item or review does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict - a review already exists for the (item_id, item_type) key
	// on the requested track.
	ErrConflict = errors.New("already exists")
	// ErrInvalidArgument - a rating outside 1-4, a selected option outside
	// 0-3, or an unknown mode/language.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientDistractors - fewer than three usable distractors
	// remained after pooling.
	ErrInsufficientDistractors = errors.New("insufficient distractors")
	// ErrUnavailable - the storage layer failed; never swallowed.
	ErrUnavailable = errors.New("storage unavailable")
)
