package analysis

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/thebtf/vibe-replay/pkg/models"
)

// maxEvidence caps the evidence list on a single insight. Evidence is
// never empty for an emitted insight.
const maxEvidence = 8

// generateInsights derives session-level findings from the phases,
// markers, and events. Pure and deterministic: insights appear in a
// fixed category order with stable intra-category sorting.
func generateInsights(events []models.Event, phases []models.TimelinePhase, points []models.TurningPoint, cfg Config) []models.Insight {
	var insights []models.Insight

	insights = append(insights, hotspotInsights(events, phases, cfg)...)
	if in, ok := rhythmInsight(phases, cfg); ok {
		insights = append(insights, in)
	}
	insights = append(insights, difficultyInsights(events, points)...)
	if in, ok := familiarityInsight(phases, cfg); ok {
		insights = append(insights, in)
	}

	return insights
}

// hotspotInsights finds targets modified at least HotspotThreshold
// times across two or more distinct phases. The statement names the
// phase spread, not just the count.
func hotspotInsights(events []models.Event, phases []models.TimelinePhase, cfg Config) []models.Insight {
	touches := make(map[string][]int)
	for i := range events {
		if events[i].IsModification() && events[i].Target != "" {
			touches[events[i].Target] = append(touches[events[i].Target], i)
		}
	}

	targets := make([]string, 0, len(touches))
	for t := range touches {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	var insights []models.Insight
	for _, target := range targets {
		indices := touches[target]
		if len(indices) < cfg.HotspotThreshold {
			continue
		}

		spread := phaseSpread(phases, indices)
		if len(spread) < 2 {
			continue
		}

		insights = append(insights, models.Insight{
			Category: models.InsightHotspot,
			Subject:  target,
			Metric:   float64(len(indices)),
			Statement: fmt.Sprintf(
				"%s was modified %d times across the %s phases; it anchors this session's work rather than being a one-off change",
				filepath.Base(target), len(indices), joinLabels(spread)),
			Evidence: capEvidence(indices),
		})
	}
	return insights
}

// phaseSpread returns the distinct phase labels covering the given
// event indices, in phase order.
func phaseSpread(phases []models.TimelinePhase, indices []int) []models.PhaseLabel {
	var spread []models.PhaseLabel
	seen := make(map[models.PhaseLabel]bool)
	for p := range phases {
		for _, idx := range indices {
			if phases[p].Contains(idx) && !seen[phases[p].Label] {
				seen[phases[p].Label] = true
				spread = append(spread, phases[p].Label)
			}
		}
	}
	return spread
}

// rhythmInsight counts explore/implement alternations across the
// phase sequence. Enough alternations describe incremental discovery.
func rhythmInsight(phases []models.TimelinePhase, cfg Config) (models.Insight, bool) {
	alternations := 0
	var evidence []int

	for i := 1; i < len(phases); i++ {
		prev, cur := phases[i-1].Label, phases[i].Label
		exploreToImplement := prev == models.PhaseExplore && cur == models.PhaseImplement
		implementToExplore := prev == models.PhaseImplement && cur == models.PhaseExplore
		if exploreToImplement || implementToExplore {
			alternations++
			evidence = append(evidence, phases[i].StartIndex)
		}
	}

	if alternations < cfg.RhythmThreshold || len(evidence) == 0 {
		return models.Insight{}, false
	}

	return models.Insight{
		Category: models.InsightRhythm,
		Metric:   float64(alternations),
		Statement: fmt.Sprintf(
			"the session alternated between exploring and implementing %d times; the work proceeded by incremental discovery rather than a single planned pass",
			alternations),
		Evidence: capEvidence(evidence),
	}, true
}

// difficultyInsights emits one insight per detour, carrying the
// investigation duration as the metric.
func difficultyInsights(events []models.Event, points []models.TurningPoint) []models.Insight {
	var insights []models.Insight
	for _, tp := range points {
		if tp.Kind != models.TurningDetour {
			continue
		}

		subject := events[tp.TriggerIndex].Target
		name := subject
		if name == "" {
			name = "an unnamed target"
		} else {
			name = filepath.Base(targetKey(name))
		}

		insights = append(insights, models.Insight{
			Category: models.InsightDifficulty,
			Subject:  subject,
			Metric:   tp.Duration.Seconds(),
			Statement: fmt.Sprintf(
				"a failure around %s took %d events%s to resolve; this was the hard part of the session",
				name, tp.ResolutionIndex-tp.TriggerIndex, spanClause(tp.Duration)),
			Evidence: []int{tp.TriggerIndex, tp.ResolutionIndex},
		})
	}
	return insights
}

func spanClause(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf(" and %s", d.Round(time.Second))
}

// familiarityInsight surfaces the explore-to-implement event ratio
// only when it falls outside the normal band.
func familiarityInsight(phases []models.TimelinePhase, cfg Config) (models.Insight, bool) {
	explore, implement := 0, 0
	var evidence []int
	for i := range phases {
		switch phases[i].Label {
		case models.PhaseExplore:
			explore += phases[i].EventCount
			evidence = append(evidence, phases[i].StartIndex)
		case models.PhaseImplement:
			implement += phases[i].EventCount
			evidence = append(evidence, phases[i].StartIndex)
		}
	}
	if explore == 0 || implement == 0 {
		return models.Insight{}, false
	}

	ratio := float64(explore) / float64(implement)
	in := models.Insight{
		Category: models.InsightFamiliarity,
		Metric:   ratio,
		Evidence: capEvidence(evidence),
	}

	switch {
	case ratio > cfg.FamiliarityHigh:
		in.Statement = fmt.Sprintf(
			"reading outweighed writing %.1f to 1; this looks like unfamiliar territory that needed mapping before changing",
			ratio)
	case ratio < cfg.FamiliarityLow:
		in.Statement = fmt.Sprintf(
			"writing outweighed reading %.1f to 1; the author knew this ground and went straight to changes",
			1/ratio)
	default:
		return models.Insight{}, false
	}
	return in, true
}

func capEvidence(indices []int) []int {
	if len(indices) > maxEvidence {
		indices = indices[:maxEvidence]
	}
	out := make([]int, len(indices))
	copy(out, indices)
	return out
}

func joinLabels(labels []models.PhaseLabel) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}
