// Package render turns replays and wisdom summaries into their export
// formats. Output is deterministic: the same replay always renders to
// the same bytes.
package render

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/vibe-replay/pkg/models"
)

// JSON renders a replay as indented JSON.
func JSON(replay *models.SessionReplay) ([]byte, error) {
	return json.MarshalIndent(replay, "", "  ")
}

// Markdown renders a replay as a human-readable session story.
func Markdown(replay *models.SessionReplay) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", replay.SessionID)
	if replay.Project != "" {
		fmt.Fprintf(&b, "Project: `%s`\n\n", replay.Project)
	}

	stats := replay.Statistics
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(&b, "- Files touched: %d\n", len(stats.FilesTouched))
	fmt.Fprintf(&b, "- Code changes: %d\n", stats.CodeChanges)
	fmt.Fprintf(&b, "- Errors hit: %d\n", stats.ErrorCount)
	if stats.DurationSeconds > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", formatDuration(stats.DurationSeconds))
	}
	b.WriteString("\n")

	if len(replay.Phases) > 0 {
		b.WriteString("## Timeline\n\n")
		for _, phase := range replay.Phases {
			fmt.Fprintf(&b, "- **%s** (events %d-%d, %d events)%s\n",
				phase.Label, phase.StartIndex, phase.EndIndex,
				phase.EventCount, phaseSpan(phase))
		}
		b.WriteString("\n")
	}

	if len(replay.Decisions) > 0 {
		b.WriteString("## Decisions\n\n")
		for _, d := range replay.Decisions {
			fmt.Fprintf(&b, "- [event %d] %s", d.AnchorIndex, d.Summary)
			if d.Rationale != "" {
				fmt.Fprintf(&b, " (%s)", d.Rationale)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(replay.TurningPoints) > 0 {
		b.WriteString("## Turning points\n\n")
		for _, tp := range replay.TurningPoints {
			fmt.Fprintf(&b, "- **%s**: failed at event %d, resolved at event %d%s: %s\n",
				tp.Kind, tp.TriggerIndex, tp.ResolutionIndex,
				durationClause(tp.Duration), turningTarget(replay, tp))
		}
		b.WriteString("\n")
	}

	if len(replay.Insights) > 0 {
		b.WriteString("## Insights\n\n")
		for _, in := range replay.Insights {
			fmt.Fprintf(&b, "- **%s**: %s\n", in.Category, in.Statement)
		}
		b.WriteString("\n")
	}

	if len(replay.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range replay.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// WisdomMarkdown renders the cross-session summary.
func WisdomMarkdown(summary *models.WisdomSummary) string {
	var b strings.Builder

	b.WriteString("# Accumulated wisdom\n\n")
	fmt.Fprintf(&b, "Across %d analyzed sessions.\n\n", summary.SessionCount)

	if len(summary.Clusters) == 0 {
		b.WriteString("No recurring findings yet.\n")
		return b.String()
	}

	for _, c := range summary.Clusters {
		subject := c.Subject
		if subject == "" {
			subject = string(c.Category)
		} else {
			subject = filepath.Base(subject)
		}
		fmt.Fprintf(&b, "- **%s** (%s, seen in %d sessions): %s\n",
			subject, c.Category, c.Occurrences, c.Statement)
	}
	return b.String()
}

func phaseSpan(phase models.TimelinePhase) string {
	span := phase.Span()
	if span <= 0 {
		return ""
	}
	return fmt.Sprintf(", %s", span.Round(time.Second))
}

func durationClause(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf(" after %s", d.Round(time.Second))
}

func turningTarget(replay *models.SessionReplay, tp models.TurningPoint) string {
	if tp.TriggerIndex < 0 || tp.TriggerIndex >= len(replay.Events) {
		return "unknown target"
	}
	target := replay.Events[tp.TriggerIndex].Target
	if target == "" {
		return "unknown target"
	}
	return target
}

func formatDuration(seconds float64) string {
	return (time.Duration(seconds) * time.Second).Round(time.Second).String()
}
