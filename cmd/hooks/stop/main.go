// Package main provides the stop hook entry point. It marks the
// session completed so the worker analyzes it.
package main

import (
	"fmt"

	"github.com/thebtf/vibe-replay/internal/capture"
	"github.com/thebtf/vibe-replay/pkg/hooks"
)

// Input is the hook input from Claude Code.
type Input struct {
	hooks.BaseInput
	StopHookActive bool   `json:"stop_hook_active"`
	TranscriptPath string `json:"transcript_path"`
}

func main() {
	hooks.RunHook("Stop", handleStop)
}

func handleStop(ctx *hooks.HookContext, input *Input) (string, error) {
	// A stop hook firing while a previous stop is still being handled
	// means the session is not actually over.
	if input.StopHookActive {
		return "", nil
	}

	sessionID := capture.SessionID(ctx.SessionID)
	_, err := hooks.POST(ctx.Port, fmt.Sprintf("/api/sessions/%s/complete", sessionID), map[string]interface{}{})
	if err != nil {
		// An unknown session just means no tool use happened.
		return "", nil
	}
	return "", nil
}
