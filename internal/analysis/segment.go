package analysis

import (
	"time"

	"github.com/thebtf/vibe-replay/pkg/models"
)

// labelWindow is the trailing window the labeling pass may consult.
// No lookahead: the scan stays single-pass.
const labelWindow = 3

// labelEvents assigns a provisional activity label to every event
// using only the current event and the trailing window.
func labelEvents(events []models.Event, rules *Rules) []models.PhaseLabel {
	labels := make([]models.PhaseLabel, len(events))

	for i := range events {
		labels[i] = labelEvent(events, i, rules)

		// Smooth single-event blips: an A B A pattern inside the
		// trailing window rewrites B to A, unless B was a failure
		// (failures must stay visible to the debug rule).
		if i >= 2 &&
			labels[i-1] != labels[i] &&
			labels[i-2] == labels[i] &&
			events[i-1].Outcome != models.OutcomeFailure {
			labels[i-1] = labels[i]
		}
	}

	return labels
}

func labelEvent(events []models.Event, i int, rules *Rules) models.PhaseLabel {
	ev := &events[i]

	if ev.Outcome == models.OutcomeFailure {
		return models.PhaseDebug
	}
	// Events immediately following a failure are part of the
	// investigation.
	for j := max(0, i-labelWindow); j < i; j++ {
		if events[j].Outcome == models.OutcomeFailure {
			return models.PhaseDebug
		}
	}

	text := ev.Target + " " + ev.Summary
	switch {
	case matchesAny(text, rules.DebugKeywords):
		return models.PhaseDebug
	case matchesAny(text, rules.TestKeywords):
		return models.PhaseTest
	case matchesAny(text, rules.RefactorKeywords):
		return models.PhaseRefactor
	}

	switch ev.Kind {
	case models.KindFileRead, models.KindSearch:
		return models.PhaseExplore
	case models.KindFileEdit, models.KindFileWrite:
		return models.PhaseImplement
	default:
		return models.PhaseOther
	}
}

// segment partitions the events into ordered, contiguous phases and
// merges undersized ones. The result is always an exact partition of
// [0, len(events)-1]; empty input yields no phases.
func segment(events []models.Event, labels []models.PhaseLabel, cfg Config) []models.TimelinePhase {
	if len(events) == 0 {
		return nil
	}

	phases := buildRuns(events, labels)
	phases = mergeUndersized(phases, events, cfg)

	maxPhases := cfg.MaxPhases
	if sessionSpan(events) > cfg.LongSessionSpan {
		maxPhases = cfg.MaxPhasesLong
	}
	phases = capPhaseCount(phases, maxPhases)

	return phases
}

// buildRuns turns consecutive equal labels into provisional phases.
func buildRuns(events []models.Event, labels []models.PhaseLabel) []models.TimelinePhase {
	var runs []models.TimelinePhase
	start := 0
	for i := 1; i <= len(labels); i++ {
		if i == len(labels) || labels[i] != labels[start] {
			runs = append(runs, models.TimelinePhase{
				Label:      labels[start],
				StartIndex: start,
				EndIndex:   i - 1,
				EventCount: i - start,
				StartTime:  events[start].Timestamp,
				EndTime:    events[i-1].Timestamp,
			})
			start = i
		}
	}
	return runs
}

// mergeUndersized repeatedly absorbs phases below the minimum event
// count or span into a neighbor, preferring the chronologically
// following phase. Each absorption removes one phase, so the loop
// terminates in at most len(phases) iterations.
func mergeUndersized(phases []models.TimelinePhase, events []models.Event, cfg Config) []models.TimelinePhase {
	for len(phases) > 1 {
		phases = coalesceSameLabel(phases)

		idx := -1
		for i := range phases {
			if undersized(&phases[i], cfg) {
				idx = i
				break
			}
		}
		if idx == -1 || len(phases) == 1 {
			break
		}

		if idx < len(phases)-1 {
			phases[idx+1] = absorb(phases[idx], phases[idx+1], phases[idx+1].Label)
			phases = append(phases[:idx], phases[idx+1:]...)
		} else {
			// No following phase: absorb into the preceding one.
			phases[idx-1] = absorb(phases[idx-1], phases[idx], phases[idx-1].Label)
			phases = phases[:idx]
		}
	}
	return coalesceSameLabel(phases)
}

// undersized applies the count rule always and the span rule only
// when the phase carries wall-clock data.
func undersized(p *models.TimelinePhase, cfg Config) bool {
	if p.EventCount < cfg.MinPhaseEvents {
		return true
	}
	if !p.StartTime.IsZero() && !p.EndTime.IsZero() && p.Span() < cfg.MinPhaseSpan {
		return true
	}
	return false
}

// coalesceSameLabel merges adjacent phases sharing a label.
func coalesceSameLabel(phases []models.TimelinePhase) []models.TimelinePhase {
	if len(phases) < 2 {
		return phases
	}
	out := phases[:1]
	for _, p := range phases[1:] {
		last := &out[len(out)-1]
		if last.Label == p.Label {
			*last = absorb(*last, p, last.Label)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// capPhaseCount merges the smallest phase into its smaller neighbor
// until the phase count fits the cap. The larger side keeps its label.
func capPhaseCount(phases []models.TimelinePhase, maxPhases int) []models.TimelinePhase {
	for len(phases) > maxPhases {
		minIdx := 0
		for i := range phases {
			if phases[i].EventCount < phases[minIdx].EventCount {
				minIdx = i
			}
		}

		var neighbor int
		switch {
		case minIdx == 0:
			neighbor = 1
		case minIdx == len(phases)-1:
			neighbor = minIdx - 1
		case phases[minIdx-1].EventCount <= phases[minIdx+1].EventCount:
			neighbor = minIdx - 1
		default:
			neighbor = minIdx + 1
		}

		a, b := minIdx, neighbor
		if a > b {
			a, b = b, a
		}
		label := phases[a].Label
		if phases[b].EventCount > phases[a].EventCount {
			label = phases[b].Label
		}
		phases[a] = absorb(phases[a], phases[b], label)
		phases = append(phases[:b], phases[b+1:]...)
		phases = coalesceSameLabel(phases)
	}
	return phases
}

// absorb merges two adjacent phases into one carrying the given label.
func absorb(first, second models.TimelinePhase, label models.PhaseLabel) models.TimelinePhase {
	return models.TimelinePhase{
		Label:      label,
		StartIndex: first.StartIndex,
		EndIndex:   second.EndIndex,
		EventCount: first.EventCount + second.EventCount,
		StartTime:  first.StartTime,
		EndTime:    second.EndTime,
	}
}

func sessionSpan(events []models.Event) time.Duration {
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].Timestamp.Sub(events[0].Timestamp)
}
