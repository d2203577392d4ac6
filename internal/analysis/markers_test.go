package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/vibe-replay/pkg/models"
)

func TestDetectDecisionsDiscardedEdit(t *testing.T) {
	events := []models.Event{
		{SequenceIndex: 0, Kind: models.KindFileRead, Target: "internal/queue/ring.go"},
		{SequenceIndex: 1, Kind: models.KindFileEdit, Target: "internal/queue/list.go",
			Payload: models.Payload{OldContent: "ring buffer impl", NewContent: "linked list impl", Discarded: true}},
	}

	decisions := detectDecisions(events)
	require.Len(t, decisions, 1)
	assert.Equal(t, 1, decisions[0].AnchorIndex)
	assert.Contains(t, decisions[0].Summary, "list.go")
	assert.Contains(t, decisions[0].Rationale, "ring.go")
}

func TestDetectDecisionsExplicitFlag(t *testing.T) {
	events := []models.Event{
		{SequenceIndex: 0, Kind: models.KindOther, Summary: "switch storage to append-only log",
			Payload: models.Payload{Decision: true}},
	}

	decisions := detectDecisions(events)
	require.Len(t, decisions, 1)
	assert.Equal(t, "switch storage to append-only log", decisions[0].Summary)
	assert.Empty(t, decisions[0].Rationale)
}

func TestDetectDecisionsNoneOnPlainEdits(t *testing.T) {
	events := []models.Event{
		{SequenceIndex: 0, Kind: models.KindFileEdit, Target: "internal/queue/ring.go"},
		{SequenceIndex: 1, Kind: models.KindFileWrite, Target: "internal/queue/ring.go"},
	}
	assert.Empty(t, detectDecisions(events))
}

func TestTurningPointBreakthrough(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []models.Event{
		{SequenceIndex: 0, Kind: models.KindFileEdit, Target: "internal/core/engine.go", Timestamp: base},
		{SequenceIndex: 1, Kind: models.KindCommandRun, Target: "make build",
			Outcome: models.OutcomeFailure, Timestamp: base.Add(time.Minute)},
		{SequenceIndex: 2, Kind: models.KindCommandRun, Target: "make build",
			Outcome: models.OutcomeSuccess, Timestamp: base.Add(3 * time.Minute)},
	}

	points := detectTurningPoints(events, DefaultConfig())
	require.Len(t, points, 1)
	assert.Equal(t, models.TurningBreakthrough, points[0].Kind)
	assert.Equal(t, 1, points[0].TriggerIndex)
	assert.Equal(t, 2, points[0].ResolutionIndex)
	assert.Equal(t, 2*time.Minute, points[0].Duration)
}

func TestTurningPointDetourKeepsFirstTrigger(t *testing.T) {
	// Repeated failures on the same target extend one investigation;
	// the trigger stays at the first failure.
	events := make([]models.Event, 8)
	for i := range events {
		events[i] = models.Event{SequenceIndex: i, Kind: models.KindCommandRun, Target: "go test ./..."}
	}
	events[0].Outcome = models.OutcomeFailure
	events[3].Outcome = models.OutcomeFailure
	events[7].Outcome = models.OutcomeSuccess

	points := detectTurningPoints(events, DefaultConfig())
	require.Len(t, points, 1)
	assert.Equal(t, models.TurningDetour, points[0].Kind)
	assert.Equal(t, 0, points[0].TriggerIndex)
	assert.Equal(t, 7, points[0].ResolutionIndex)
}

func TestTurningPointUnresolvedEmitsNothing(t *testing.T) {
	events := []models.Event{
		{SequenceIndex: 0, Kind: models.KindCommandRun, Target: "make build", Outcome: models.OutcomeFailure},
		{SequenceIndex: 1, Kind: models.KindFileRead, Target: "internal/core/engine.go"},
	}
	assert.Empty(t, detectTurningPoints(events, DefaultConfig()))
}

func TestTurningPointSeparateEpisodesPerTarget(t *testing.T) {
	events := []models.Event{
		{SequenceIndex: 0, Kind: models.KindCommandRun, Target: "make build", Outcome: models.OutcomeFailure},
		{SequenceIndex: 1, Kind: models.KindCommandRun, Target: "make build", Outcome: models.OutcomeSuccess},
		{SequenceIndex: 2, Kind: models.KindCommandRun, Target: "make build", Outcome: models.OutcomeFailure},
		{SequenceIndex: 3, Kind: models.KindCommandRun, Target: "make build", Outcome: models.OutcomeSuccess},
	}

	points := detectTurningPoints(events, DefaultConfig())
	require.Len(t, points, 2)
	assert.Equal(t, 0, points[0].TriggerIndex)
	assert.Equal(t, 1, points[0].ResolutionIndex)
	assert.Equal(t, 2, points[1].TriggerIndex)
	assert.Equal(t, 3, points[1].ResolutionIndex)
}

func TestTurningPointCommandsShareKeyByFirstToken(t *testing.T) {
	events := []models.Event{
		{SequenceIndex: 0, Kind: models.KindCommandRun, Target: "go test ./internal/...", Outcome: models.OutcomeFailure},
		{SequenceIndex: 1, Kind: models.KindCommandRun, Target: "go build ./...", Outcome: models.OutcomeSuccess},
	}

	points := detectTurningPoints(events, DefaultConfig())
	require.Len(t, points, 1)
	assert.Equal(t, 0, points[0].TriggerIndex)
	assert.Equal(t, 1, points[0].ResolutionIndex)
}

func TestTargetKey(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{"file path unchanged", "internal/core/engine.go", "internal/core/engine.go"},
		{"command keys by first token", "npm run build", "npm"},
		{"absolute path with space unchanged", "/tmp/my project/notes.md", "/tmp/my project/notes.md"},
		{"whitespace only is empty", "   ", ""},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, targetKey(tt.target))
		})
	}
}
