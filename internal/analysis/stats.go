package analysis

import (
	"sort"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/vibe-replay/pkg/models"
)

var (
	encoderOnce sync.Once
	encoder     tokenizer.Codec
)

// countTokens estimates the token footprint of a piece of captured
// text. Falls back to a bytes/4 approximation if the encoder is
// unavailable.
func countTokens(text string) int {
	if text == "" {
		return 0
	}
	encoderOnce.Do(func() {
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		return len(text) / 4
	}
	n, err := encoder.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// computeStatistics rolls up the aggregate counts the renderers and
// the session index need.
func computeStatistics(events []models.Event) models.Statistics {
	stats := models.Statistics{TotalEvents: len(events)}
	if len(events) == 0 {
		return stats
	}

	stats.ToolCounts = make(map[string]int)
	files := make(map[string]bool)

	for i := range events {
		ev := &events[i]
		if ev.Tool != "" {
			stats.ToolCounts[ev.Tool]++
		}
		switch ev.Kind {
		case models.KindFileRead, models.KindFileWrite, models.KindFileEdit:
			if ev.Target != "" {
				files[ev.Target] = true
			}
		}
		if ev.IsModification() {
			stats.CodeChanges++
		}
		if ev.Outcome == models.OutcomeFailure {
			stats.ErrorCount++
		}
		stats.PayloadTokens += countTokens(ev.Summary) +
			countTokens(ev.Payload.OldContent) +
			countTokens(ev.Payload.NewContent)
	}

	for f := range files {
		stats.FilesTouched = append(stats.FilesTouched, f)
	}
	sort.Strings(stats.FilesTouched)

	first, last := events[0].Timestamp, events[len(events)-1].Timestamp
	if !first.IsZero() && !last.IsZero() {
		stats.DurationSeconds = last.Sub(first).Seconds()
	}

	return stats
}
