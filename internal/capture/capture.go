// Package capture converts Claude Code tool-use hook payloads into
// the flat records the event log stores. Capture is lossy on purpose:
// payloads are truncated and scrubbed before anything touches disk.
package capture

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/thebtf/vibe-replay/internal/analysis"
	"github.com/thebtf/vibe-replay/internal/privacy"
)

// Limits bounds how much captured text a single record may carry.
type Limits struct {
	// MaxStringLen caps each captured string field, in bytes.
	MaxStringLen int
	// MaxPayloadLen caps the whole serialized record, in bytes.
	MaxPayloadLen int
	// Redact enables secret scrubbing of captured content.
	Redact bool
	// RedactPatterns are extra user-configured secret prefixes.
	RedactPatterns []string
}

// DefaultLimits matches the config package defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxStringLen:  5000,
		MaxPayloadLen: 50000,
		Redact:        true,
	}
}

// SessionID returns the provided id, or a fresh one when the hook
// arrived without one. Every record must land in some session.
func SessionID(provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return "anon-" + uuid.NewString()
}

// ToolUseRecord builds one event-log record from a post-tool-use hook
// payload. It never fails: unusable fields are simply absent from the
// record.
func ToolUseRecord(toolName string, toolInput, toolResponse any, ts time.Time, limits Limits) analysis.RawRecord {
	input := asMap(toolInput)
	response := asMap(toolResponse)

	record := analysis.RawRecord{
		"tool_name": toolName,
		"timestamp": ts.UTC().Format(time.RFC3339Nano),
	}

	if target := extractTarget(toolName, input); target != "" {
		record["target"] = target
	}
	if summary := stringValue(input, "description"); summary != "" {
		record["summary"] = summary
	}

	if v := stringValue(input, "old_string"); v != "" {
		record["old_content"] = v
	}
	if v := stringValue(input, "new_string", "content", "new_source"); v != "" {
		record["new_content"] = v
	}

	if code, ok := exitCode(response); ok {
		record["exit_code"] = code
	}
	if isError(response) {
		record["error"] = true
	}

	clean(record, limits)
	truncate(record, limits)
	return record
}

// extractTarget pulls the operation's subject out of the tool input.
func extractTarget(toolName string, input map[string]any) string {
	switch toolName {
	case "Bash":
		return stringValue(input, "command")
	case "Grep", "Glob":
		return stringValue(input, "pattern")
	case "WebFetch", "WebSearch":
		return stringValue(input, "url", "query")
	default:
		return stringValue(input, "file_path", "notebook_path", "path")
	}
}

// exitCode digs the command exit code out of the tool response.
func exitCode(response map[string]any) (int, bool) {
	for _, key := range []string{"exit_code", "exitCode", "code"} {
		switch v := response[key].(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		}
	}
	return 0, false
}

// isError checks the error signals the hook protocol uses.
func isError(response map[string]any) bool {
	if v, ok := response["is_error"].(bool); ok && v {
		return true
	}
	if v, ok := response["interrupted"].(bool); ok && v {
		return true
	}
	if v, ok := response["error"].(string); ok && v != "" {
		return true
	}
	if v, ok := response["error"].(bool); ok && v {
		return true
	}
	return false
}

// clean scrubs private tags and secrets from every captured string.
func clean(record analysis.RawRecord, limits Limits) {
	if !limits.Redact {
		return
	}
	for key, value := range record {
		if s, ok := value.(string); ok && key != "timestamp" && key != "tool_name" {
			record[key] = privacy.Clean(s, limits.RedactPatterns)
		}
	}
}

// truncate enforces the per-string and whole-record byte caps. Content
// fields go first when the record is still too large; the record shape
// itself always survives.
func truncate(record analysis.RawRecord, limits Limits) {
	if limits.MaxStringLen <= 0 {
		limits.MaxStringLen = DefaultLimits().MaxStringLen
	}
	if limits.MaxPayloadLen <= 0 {
		limits.MaxPayloadLen = DefaultLimits().MaxPayloadLen
	}

	truncated := false
	for key, value := range record {
		if s, ok := value.(string); ok && len(s) > limits.MaxStringLen {
			record[key] = cut(s, limits.MaxStringLen)
			truncated = true
		}
	}

	for _, key := range []string{"old_content", "new_content", "summary"} {
		if recordSize(record) <= limits.MaxPayloadLen {
			break
		}
		if _, ok := record[key]; ok {
			delete(record, key)
			truncated = true
		}
	}

	if truncated {
		record["truncated"] = true
	}
}

func recordSize(record analysis.RawRecord) int {
	data, err := json.Marshal(record)
	if err != nil {
		return 0
	}
	return len(data)
}

// cut shortens a string on a rune boundary and marks the cut.
func cut(s string, limit int) string {
	marker := fmt.Sprintf("... [truncated %d bytes]", len(s)-limit)
	cutAt := limit
	for cutAt > 0 && !isRuneStart(s[cutAt]) {
		cutAt--
	}
	return s[:cutAt] + marker
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func stringValue(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
