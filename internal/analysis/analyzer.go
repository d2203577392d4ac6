package analysis

import (
	"github.com/thebtf/vibe-replay/pkg/models"
)

// Analyzer runs the full per-session pipeline:
// normalize -> segment -> detect markers -> generate insights.
// One Analyzer is safe for concurrent use across sessions; each call
// is a single sequential pass with no shared mutable state.
type Analyzer struct {
	cfg   Config
	rules *Rules
}

// New creates an Analyzer. Zero config fields and a nil rules pointer
// fall back to defaults.
func New(cfg Config, rules *Rules) *Analyzer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Analyzer{cfg: cfg.withDefaults(), rules: rules}
}

// Analyze builds the immutable replay for one completed session.
// It never fails: malformed records coerce, an empty session yields
// an empty replay, and ordering problems surface as warnings. Running
// it twice on identical input produces identical output.
func (a *Analyzer) Analyze(sessionID, project string, records []RawRecord) *models.SessionReplay {
	events, warnings := Normalize(records)

	replay := &models.SessionReplay{
		SessionID:     sessionID,
		Project:       project,
		Events:        events,
		Phases:        []models.TimelinePhase{},
		Decisions:     []models.Decision{},
		TurningPoints: []models.TurningPoint{},
		Insights:      []models.Insight{},
		Warnings:      warnings,
	}
	if len(events) == 0 {
		return replay
	}

	labels := labelEvents(events, a.rules)
	replay.Phases = segment(events, labels, a.cfg)

	if decisions := detectDecisions(events); decisions != nil {
		replay.Decisions = decisions
	}
	if points := detectTurningPoints(events, a.cfg); points != nil {
		replay.TurningPoints = points
	}
	if insights := generateInsights(events, replay.Phases, replay.TurningPoints, a.cfg); insights != nil {
		replay.Insights = insights
	}
	replay.Statistics = computeStatistics(events)

	return replay
}
