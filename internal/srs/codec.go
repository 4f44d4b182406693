package srs

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the current version of the persisted card blob.
const SchemaVersion = 1

// Keys of the persisted card blob. Anything else round-trips via Card.Extra.
const (
	keySchemaVersion = "schema_version"
	keyStability     = "stability"
	keyDifficulty    = "difficulty"
	keyDue           = "due"
	keyLastReview    = "last_review"
	keyReps          = "reps"
	keyState         = "state"
	keyStep          = "step"
)

// EncodeCard serializes a card as a versioned JSON blob. Unknown fields
// captured at decode time are written back untouched.
func EncodeCard(c Card) ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(c.Extra)+8)
	for k, v := range c.Extra {
		fields[k] = v
	}

	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("srs: encode card field %s: %w", key, err)
		}
		fields[key] = raw
		return nil
	}

	stateText, err := c.State.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("srs: encode card: %w", err)
	}
	if err := put(keySchemaVersion, SchemaVersion); err != nil {
		return nil, err
	}
	if err := put(keyStability, c.Stability); err != nil {
		return nil, err
	}
	if err := put(keyDifficulty, c.Difficulty); err != nil {
		return nil, err
	}
	if err := put(keyDue, c.Due.Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	if err := put(keyLastReview, c.LastReview); err != nil {
		return nil, err
	}
	if err := put(keyReps, c.Reps); err != nil {
		return nil, err
	}
	if err := put(keyState, string(stateText)); err != nil {
		return nil, err
	}
	if err := put(keyStep, c.Step); err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}

// DecodeCard parses a versioned card blob. Blobs without a schema_version
// field are treated as version 0 and migrated; fields this version does not
// know about are preserved in Card.Extra.
func DecodeCard(data []byte) (Card, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Card{}, fmt.Errorf("srs: decode card: %w", err)
	}

	version := 0
	if raw, ok := fields[keySchemaVersion]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return Card{}, fmt.Errorf("srs: decode card: schema_version: %w", err)
		}
	}
	if version > SchemaVersion {
		return Card{}, fmt.Errorf("srs: card blob schema version %d is newer than supported %d", version, SchemaVersion)
	}
	if version < SchemaVersion {
		migrateCardFields(fields, version)
	}
	delete(fields, keySchemaVersion)

	var c Card
	take := func(key string, dst any) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		delete(fields, key)
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("srs: decode card field %s: %w", key, err)
		}
		return nil
	}

	var dueText string
	var stateText string
	if err := take(keyStability, &c.Stability); err != nil {
		return Card{}, err
	}
	if err := take(keyDifficulty, &c.Difficulty); err != nil {
		return Card{}, err
	}
	if err := take(keyDue, &dueText); err != nil {
		return Card{}, err
	}
	if err := take(keyLastReview, &c.LastReview); err != nil {
		return Card{}, err
	}
	if err := take(keyReps, &c.Reps); err != nil {
		return Card{}, err
	}
	if err := take(keyState, &stateText); err != nil {
		return Card{}, err
	}
	if err := take(keyStep, &c.Step); err != nil {
		return Card{}, err
	}

	if dueText == "" {
		return Card{}, fmt.Errorf("srs: card blob has no due timestamp")
	}
	due, err := time.Parse(time.RFC3339Nano, dueText)
	if err != nil {
		return Card{}, fmt.Errorf("srs: decode card field due: %w", err)
	}
	c.Due = due

	if err := c.State.UnmarshalText([]byte(stateText)); err != nil {
		return Card{}, err
	}

	if len(fields) > 0 {
		c.Extra = fields
	}
	return c, nil
}

// migrateCardFields upgrades an older blob's field set in place.
// Version 0 blobs predate the version marker; they carried no step counter
// and no reps counter, which default to zero.
func migrateCardFields(fields map[string]json.RawMessage, from int) {
	if from == 0 {
		if _, ok := fields[keyReps]; !ok {
			fields[keyReps] = json.RawMessage("0")
		}
		if _, ok := fields[keyStep]; !ok {
			fields[keyStep] = json.RawMessage("0")
		}
	}
}
