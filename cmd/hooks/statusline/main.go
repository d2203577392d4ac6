// Package main provides the statusline hook for Claude Code. It
// prints a one-line summary of what vibe-replay has recorded for the
// current project.
package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/vibe-replay/pkg/hooks"
)

// StatusInput is the JSON input from Claude Code's statusline feature.
type StatusInput struct {
	HookEventName string `json:"hook_event_name"`
	SessionID     string `json:"session_id"`
	CWD           string `json:"cwd"`
	Model         struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"model"`
	Workspace struct {
		CurrentDir string `json:"current_dir"`
		ProjectDir string `json:"project_dir"`
	} `json:"workspace"`
}

type sessionList struct {
	Sessions []struct {
		SessionID  string `json:"session_id"`
		Status     string `json:"status"`
		EventCount int    `json:"event_count"`
	} `json:"sessions"`
	Count int `json:"count"`
}

func main() {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Print("vibe-replay")
		return
	}

	var input StatusInput
	if err := json.Unmarshal(data, &input); err != nil {
		fmt.Print("vibe-replay")
		return
	}

	cwd := input.Workspace.CurrentDir
	if cwd == "" {
		cwd = input.CWD
	}
	project := hooks.ProjectIDWithName(cwd)

	// The statusline must never block or spawn the worker; if it is
	// not up, say so and move on.
	port := hooks.GetWorkerPort()
	list, err := fetchSessions(port, project)
	if err != nil {
		fmt.Print("⏺ replay: worker offline")
		return
	}

	recording := 0
	analyzed := 0
	for _, s := range list.Sessions {
		switch s.Status {
		case "active":
			if s.SessionID == input.SessionID {
				recording = s.EventCount
			}
		case "analyzed":
			analyzed++
		}
	}

	if recording > 0 {
		fmt.Printf("⏺ replay: recording (%d events) | %d analyzed", recording, analyzed)
		return
	}
	fmt.Printf("⏺ replay: %d sessions analyzed", analyzed)
}

func fetchSessions(port int, project string) (*sessionList, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	endpoint := fmt.Sprintf("http://localhost:%d/api/sessions?project=%s", port, url.QueryEscape(project))

	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("worker returned status %d", resp.StatusCode)
	}

	var list sessionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}
