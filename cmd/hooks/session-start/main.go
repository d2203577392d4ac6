// Package main provides the session-start hook entry point. It
// registers the session with the worker and injects accumulated
// wisdom from earlier sessions in the same project.
package main

import (
	"fmt"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/thebtf/vibe-replay/pkg/hooks"
)

// Input is the hook input from Claude Code.
type Input struct {
	hooks.BaseInput
	Source string `json:"source"`
}

// maxInjectedClusters caps how much wisdom lands in the context.
const maxInjectedClusters = 5

func main() {
	hooks.RunHook("SessionStart", handleSessionStart)
}

// wisdomResponse is the subset of the worker's wisdom payload the
// hook cares about.
type wisdomResponse struct {
	Clusters []struct {
		Statement   string `json:"statement"`
		Occurrences int    `json:"occurrences"`
	} `json:"clusters"`
}

func handleSessionStart(ctx *hooks.HookContext, input *Input) (string, error) {
	data, err := hooks.GET(ctx.Port, "/api/wisdom?project="+url.QueryEscape(ctx.Project))
	if err != nil {
		// No wisdom yet is not an error.
		return "", nil
	}

	var wisdom wisdomResponse
	if err := json.Unmarshal(data, &wisdom); err != nil || len(wisdom.Clusters) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Recurring findings from earlier coding sessions in this project:\n")
	for i, cluster := range wisdom.Clusters {
		if i >= maxInjectedClusters {
			break
		}
		if cluster.Statement == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s (seen %d times)\n", cluster.Statement, cluster.Occurrences)
	}
	return b.String(), nil
}
