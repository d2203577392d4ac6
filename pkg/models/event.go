// Package models contains domain models for vibe-replay.
package models

import "time"

// EventKind classifies a captured tool action.
type EventKind string

const (
	KindFileRead      EventKind = "file-read"
	KindFileWrite     EventKind = "file-write"
	KindFileEdit      EventKind = "file-edit"
	KindSearch        EventKind = "search"
	KindCommandRun    EventKind = "command-run"
	KindCommandResult EventKind = "command-result"
	KindOther         EventKind = "other"
)

// Outcome is the observed result of an event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown"
)

// Payload carries kind-specific event data. Fields are optional and
// only populated for the kinds they apply to.
type Payload struct {
	OldContent string `json:"old_content,omitempty"`
	NewContent string `json:"new_content,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	MatchCount *int   `json:"match_count,omitempty"`
	// Discarded marks an edit that replaced a previously written
	// alternative rather than extending it.
	Discarded bool `json:"discarded,omitempty"`
	// Decision marks a record the capture layer tagged as a
	// deliberate choice.
	Decision bool `json:"decision,omitempty"`
}

// Event is one normalized, ordered record of a tool action within a
// session. Events are totally ordered by SequenceIndex; timestamps
// are non-decreasing when capture provides them.
type Event struct {
	SequenceIndex int       `json:"sequence_index"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          EventKind `json:"kind"`
	Target        string    `json:"target,omitempty"`
	Tool          string    `json:"tool,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Payload       Payload   `json:"payload"`
	Outcome       Outcome   `json:"outcome"`
}

// IsModification reports whether the event changed a file.
func (e *Event) IsModification() bool {
	return e.Kind == KindFileEdit || e.Kind == KindFileWrite
}
