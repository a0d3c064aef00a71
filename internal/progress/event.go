// Package progress defines the event stream emitted by the acquisition run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageDayStart        Stage = "DAY_START"
	StageDayFound        Stage = "DAY_FOUND"
	StageDayEmpty        Stage = "DAY_EMPTY"
	StageDayError        Stage = "DAY_ERROR"
	StageCheckpointSaved Stage = "CHECKPOINT_SAVED"
	StageCheckpointError Stage = "CHECKPOINT_ERROR"
	StageRunDone         Stage = "RUN_DONE"
)

// Event captures a single milestone of an acquisition run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Day scopes day-level events to their calendar day.
	Day civil.Date
	// URL is the selected article URL for DAY_FOUND events.
	URL string
	// Results carries the current result count for checkpoint and run events.
	Results int
	// Dur captures execution latency for day completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCheckpointSaved, StageCheckpointError, StageRunDone:
	case StageDayStart, StageDayEmpty, StageDayError:
		if !e.Day.IsValid() {
			return fmt.Errorf("%s requires a day", e.Stage)
		}
	case StageDayFound:
		if !e.Day.IsValid() {
			return errors.New("day found requires a day")
		}
		if e.URL == "" {
			return errors.New("day found requires a url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
