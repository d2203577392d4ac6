package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/thebtf/vibe-replay/pkg/models"
)

// detectDecisions scans for explicit branching signals: an edit or
// write whose payload discarded a prior alternative, or a record the
// capture layer tagged as a deliberate choice. Rationale is filled
// opportunistically from a nearby read or search target.
func detectDecisions(events []models.Event) []models.Decision {
	var decisions []models.Decision

	for i := range events {
		ev := &events[i]

		branching := ev.Payload.Decision ||
			(ev.IsModification() && ev.Payload.Discarded)
		if !branching {
			continue
		}

		d := models.Decision{
			AnchorIndex: i,
			Summary:     decisionSummary(ev),
		}
		if rationale := nearbyRationale(events, i); rationale != "" {
			d.Rationale = rationale
		}
		decisions = append(decisions, d)
	}

	return decisions
}

func decisionSummary(ev *models.Event) string {
	if ev.Summary != "" {
		return ev.Summary
	}
	if ev.Target != "" {
		return fmt.Sprintf("chose a new approach for %s", filepath.Base(ev.Target))
	}
	return "made a deliberate choice"
}

// nearbyRationale looks back through the trailing window for a read
// or search whose target differs from the anchor's, suggesting the
// author compared alternatives before committing.
func nearbyRationale(events []models.Event, anchor int) string {
	for j := anchor - 1; j >= max(0, anchor-labelWindow); j-- {
		prev := &events[j]
		if prev.Kind != models.KindFileRead && prev.Kind != models.KindSearch {
			continue
		}
		if prev.Target == "" || prev.Target == events[anchor].Target {
			continue
		}
		return fmt.Sprintf("after reviewing %s", filepath.Base(prev.Target))
	}
	return ""
}

// automaton tracks one target through its failure/investigation
// cycle. All automata advance during the same linear scan; there is
// no real concurrency, just independent state keyed by target.
type automaton struct {
	triggerIndex int
	failed       bool
}

// detectTurningPoints runs a state machine per target over one scan:
// NORMAL -> FAILED -> INVESTIGATING -> RESOLVED. A failure opens an
// episode; the first subsequent success on the same (or a causally
// related) target closes it and emits a marker. Targets still
// investigating at session end emit nothing.
func detectTurningPoints(events []models.Event, cfg Config) []models.TurningPoint {
	machines := make(map[string]*automaton)
	var points []models.TurningPoint

	for i := range events {
		ev := &events[i]
		key := targetKey(ev.Target)
		if key == "" {
			continue
		}

		m := machines[key]
		switch ev.Outcome {
		case models.OutcomeFailure:
			if m == nil || !m.failed {
				// First failure of the episode is the trigger; later
				// failures extend the same investigation.
				machines[key] = &automaton{triggerIndex: i, failed: true}
			}
		case models.OutcomeSuccess:
			if m != nil && m.failed {
				points = append(points, resolve(events, m.triggerIndex, i, cfg))
				m.failed = false
			}
		}
	}

	return points
}

func resolve(events []models.Event, trigger, resolution int, cfg Config) models.TurningPoint {
	kind := models.TurningBreakthrough
	if resolution-trigger > cfg.DetourMinEvents {
		kind = models.TurningDetour
	}
	return models.TurningPoint{
		TriggerIndex:    trigger,
		ResolutionIndex: resolution,
		Kind:            kind,
		Duration:        events[resolution].Timestamp.Sub(events[trigger].Timestamp),
	}
}

// targetKey normalizes a target so causally related events share an
// automaton: file paths key by the path itself, command strings by
// their first token ("go test ./..." and "go build" both key "go").
func targetKey(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if strings.ContainsRune(target, ' ') && !strings.HasPrefix(target, "/") {
		return strings.Fields(target)[0]
	}
	return target
}
