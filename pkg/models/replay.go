package models

import "time"

// PhaseLabel is the coarse activity label assigned to a phase.
type PhaseLabel string

const (
	PhaseExplore   PhaseLabel = "explore"
	PhaseImplement PhaseLabel = "implement"
	PhaseDebug     PhaseLabel = "debug"
	PhaseTest      PhaseLabel = "test"
	PhaseRefactor  PhaseLabel = "refactor"
	PhaseOther     PhaseLabel = "other"
)

// TimelinePhase is a maximal contiguous run of events sharing one
// activity label. Phases of a session form an exact partition of its
// event indices: ordered, non-overlapping, no gaps.
type TimelinePhase struct {
	Label      PhaseLabel `json:"label"`
	StartIndex int        `json:"start_index"`
	EndIndex   int        `json:"end_index"` // inclusive
	EventCount int        `json:"event_count"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
}

// Contains reports whether the event index falls inside the phase.
func (p *TimelinePhase) Contains(idx int) bool {
	return idx >= p.StartIndex && idx <= p.EndIndex
}

// Span returns the wall-clock duration of the phase.
func (p *TimelinePhase) Span() time.Duration {
	return p.EndTime.Sub(p.StartTime)
}

// Decision annotates one event that exhibits a deliberate branching
// choice.
type Decision struct {
	AnchorIndex int    `json:"anchor_index"`
	Summary     string `json:"summary"`
	Rationale   string `json:"rationale,omitempty"`
}

// TurningPointKind distinguishes quick fixes from drawn-out detours.
type TurningPointKind string

const (
	TurningDetour       TurningPointKind = "detour"
	TurningBreakthrough TurningPointKind = "breakthrough"
)

// TurningPoint is a failure event paired with the first subsequent
// success on the same (or a causally related) target.
// TriggerIndex < ResolutionIndex always holds.
type TurningPoint struct {
	TriggerIndex    int              `json:"trigger_index"`
	ResolutionIndex int              `json:"resolution_index"`
	Kind            TurningPointKind `json:"kind"`
	Duration        time.Duration    `json:"duration"`
}

// InsightCategory types a derived finding.
type InsightCategory string

const (
	InsightHotspot     InsightCategory = "hotspot"
	InsightRhythm      InsightCategory = "rhythm"
	InsightDifficulty  InsightCategory = "difficulty"
	InsightFamiliarity InsightCategory = "familiarity"
	InsightOther       InsightCategory = "other"
)

// Insight is an evidence-backed claim derived from a session.
// Evidence holds event indices into the owning session and is never
// empty for an emitted insight.
type Insight struct {
	Category  InsightCategory `json:"category"`
	Subject   string          `json:"subject,omitempty"`
	Metric    float64         `json:"metric"`
	Statement string          `json:"statement"`
	Evidence  []int           `json:"evidence"`
}

// Statistics are session-level aggregate counts computed alongside
// the insights.
type Statistics struct {
	TotalEvents     int            `json:"total_events"`
	DurationSeconds float64        `json:"duration_seconds"`
	ToolCounts      map[string]int `json:"tool_counts,omitempty"`
	FilesTouched    []string       `json:"files_touched,omitempty"`
	CodeChanges     int            `json:"code_changes"`
	ErrorCount      int            `json:"error_count"`
	PayloadTokens   int            `json:"payload_tokens"`
}

// SessionReplay owns the full analysis output for one session:
// the normalized events, the phase partition, markers, and insights.
// It is immutable once built; re-analysis replaces the whole value.
type SessionReplay struct {
	SessionID     string          `json:"session_id"`
	Project       string          `json:"project,omitempty"`
	Events        []Event         `json:"events"`
	Phases        []TimelinePhase `json:"phases"`
	Decisions     []Decision      `json:"decisions"`
	TurningPoints []TurningPoint  `json:"turning_points"`
	Insights      []Insight       `json:"insights"`
	Statistics    Statistics      `json:"statistics"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// StartTime returns the timestamp of the first event, or the zero
// time for an empty session.
func (r *SessionReplay) StartTime() time.Time {
	if len(r.Events) == 0 {
		return time.Time{}
	}
	return r.Events[0].Timestamp
}

// EndTime returns the timestamp of the last event, or the zero time
// for an empty session.
func (r *SessionReplay) EndTime() time.Time {
	if len(r.Events) == 0 {
		return time.Time{}
	}
	return r.Events[len(r.Events)-1].Timestamp
}
