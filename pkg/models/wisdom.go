package models

import "time"

// WisdomCluster is a recurring insight aggregated across sessions.
type WisdomCluster struct {
	Category    InsightCategory `json:"category"`
	Subject     string          `json:"subject,omitempty"`
	Statement   string          `json:"statement"`
	Occurrences int             `json:"occurrences"`
	SessionIDs  []string        `json:"session_ids"`
	// LastSeenEpoch is the epoch-millisecond timestamp of the most
	// recent supporting session.
	LastSeenEpoch int64 `json:"last_seen_epoch"`
}

// WisdomSummary is the ranked cross-session view over many session
// replays. It is derived data: recomputed from the stored replays on
// every request, never persisted as authoritative state.
type WisdomSummary struct {
	GeneratedAt  time.Time       `json:"generated_at"`
	SessionCount int             `json:"session_count"`
	Clusters     []WisdomCluster `json:"clusters"`
}
