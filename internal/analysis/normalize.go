package analysis

import (
	"fmt"
	"time"

	"github.com/thebtf/vibe-replay/pkg/models"
)

// RawRecord is one heterogeneous capture record: an opaque key/value
// map as read back from a session's event log.
type RawRecord map[string]any

// toolKinds maps capture tool names to canonical event kinds.
// Unlisted tools fall through to kind "other".
var toolKinds = map[string]models.EventKind{
	"Read":         models.KindFileRead,
	"Glob":         models.KindSearch,
	"Grep":         models.KindSearch,
	"WebSearch":    models.KindSearch,
	"WebFetch":     models.KindSearch,
	"Edit":         models.KindFileEdit,
	"NotebookEdit": models.KindFileEdit,
	"Write":        models.KindFileWrite,
	"Bash":         models.KindCommandRun,
}

// Normalize canonicalizes a raw record sequence into ordered events.
// It never rejects a session: malformed records coerce to kind
// "other", missing timestamps inherit their predecessor, and
// decreasing timestamps are reported as a warning while sequence
// order is trusted. Pure function of its input.
func Normalize(records []RawRecord) ([]models.Event, []string) {
	if len(records) == 0 {
		return nil, nil
	}

	events := make([]models.Event, 0, len(records))
	var warnings []string
	var prevTS time.Time
	orderWarned := false

	for i, rec := range records {
		ev := models.Event{
			SequenceIndex: i,
			Kind:          recordKind(rec),
			Tool:          strField(rec, "tool_name", "tool"),
			Target:        strField(rec, "target", "file_path", "path", "notebook_path", "command"),
			Summary:       strField(rec, "summary"),
			Payload:       recordPayload(rec),
			Outcome:       recordOutcome(rec),
		}

		ts, ok := recordTimestamp(rec)
		if !ok {
			ts = prevTS // capture order is monotonic even without wall-clock data
		}
		if !orderWarned && !prevTS.IsZero() && ts.Before(prevTS) {
			warnings = append(warnings, fmt.Sprintf(
				"inconsistent ordering: timestamp decreases at sequence index %d; trusting sequence order", i))
			orderWarned = true
		}
		ev.Timestamp = ts
		prevTS = ts

		events = append(events, ev)
	}

	return events, warnings
}

// recordKind resolves the event kind from an explicit kind field or
// the tool name, defaulting to other.
func recordKind(rec RawRecord) models.EventKind {
	switch models.EventKind(strField(rec, "kind")) {
	case models.KindFileRead, models.KindFileWrite, models.KindFileEdit,
		models.KindSearch, models.KindCommandRun, models.KindCommandResult,
		models.KindOther:
		return models.EventKind(strField(rec, "kind"))
	}
	if k, ok := toolKinds[strField(rec, "tool_name", "tool")]; ok {
		return k
	}
	return models.KindOther
}

func recordPayload(rec RawRecord) models.Payload {
	p := models.Payload{
		OldContent: strField(rec, "old_content", "old_string"),
		NewContent: strField(rec, "new_content", "new_string", "content"),
		Discarded:  boolField(rec, "discarded"),
		Decision:   boolField(rec, "decision"),
	}
	if v, ok := intField(rec, "exit_code"); ok {
		p.ExitCode = &v
	}
	if v, ok := intField(rec, "match_count"); ok {
		p.MatchCount = &v
	}
	return p
}

// recordOutcome resolves the outcome from an explicit field, an error
// flag, or a command exit code, in that order.
func recordOutcome(rec RawRecord) models.Outcome {
	switch models.Outcome(strField(rec, "outcome")) {
	case models.OutcomeSuccess:
		return models.OutcomeSuccess
	case models.OutcomeFailure:
		return models.OutcomeFailure
	case models.OutcomeUnknown:
		return models.OutcomeUnknown
	}
	if boolField(rec, "error") || strField(rec, "error") != "" {
		return models.OutcomeFailure
	}
	if code, ok := intField(rec, "exit_code"); ok {
		if code == 0 {
			return models.OutcomeSuccess
		}
		return models.OutcomeFailure
	}
	return models.OutcomeUnknown
}

// recordTimestamp accepts RFC3339 strings and epoch milliseconds.
func recordTimestamp(rec RawRecord) (time.Time, bool) {
	switch v := rec["timestamp"].(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts, true
		}
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts, true
		}
	case float64:
		if v > 0 {
			return time.UnixMilli(int64(v)).UTC(), true
		}
	case int64:
		if v > 0 {
			return time.UnixMilli(v).UTC(), true
		}
	}
	return time.Time{}, false
}

func strField(rec RawRecord, keys ...string) string {
	for _, key := range keys {
		if v, ok := rec[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func boolField(rec RawRecord, key string) bool {
	v, _ := rec[key].(bool)
	return v
}

func intField(rec RawRecord, key string) (int, bool) {
	switch v := rec[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
