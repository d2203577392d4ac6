// Package main provides the post-tool-use hook entry point.
package main

import (
	"time"

	"github.com/thebtf/vibe-replay/internal/capture"
	"github.com/thebtf/vibe-replay/internal/config"
	"github.com/thebtf/vibe-replay/pkg/hooks"
)

// Input is the hook input from Claude Code.
type Input struct {
	hooks.BaseInput
	ToolName     string      `json:"tool_name"`
	ToolInput    interface{} `json:"tool_input"`
	ToolResponse interface{} `json:"tool_response"`
	ToolUseID    string      `json:"tool_use_id"`
}

func main() {
	hooks.RunHook("PostToolUse", handlePostToolUse)
}

func handlePostToolUse(ctx *hooks.HookContext, input *Input) (string, error) {
	cfg := config.Get()
	limits := capture.Limits{
		MaxStringLen:   cfg.MaxStringLen,
		MaxPayloadLen:  cfg.MaxPayloadLen,
		Redact:         cfg.RedactSecrets,
		RedactPatterns: cfg.RedactPatterns,
	}

	record := capture.ToolUseRecord(input.ToolName, input.ToolInput, input.ToolResponse, time.Now(), limits)

	_, err := hooks.POST(ctx.Port, "/api/sessions/events", map[string]interface{}{
		"session_id": capture.SessionID(ctx.SessionID),
		"project":    ctx.Project,
		"record":     record,
	})
	return "", err
}
