package analysis

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/thebtf/vibe-replay/pkg/models"
	"github.com/thebtf/vibe-replay/pkg/similarity"
)

// statementSimilarity is the Jaccard threshold at which two
// subject-less insights of the same category join one cluster.
const statementSimilarity = 0.5

type wisdomCluster struct {
	category  models.InsightCategory
	subject   string
	statement string
	terms     map[string]bool
	sessions  map[string]int64 // session id -> session epoch millis
	lastSeen  int64
}

// Aggregate combines the insight sets of many session replays into a
// ranked, deduplicated cross-session summary. Stateless: recomputed
// from the full corpus on every call, never mutating a replay.
// Sessions without insights are skipped, not fatal.
func Aggregate(replays []*models.SessionReplay) *models.WisdomSummary {
	// Process oldest first so the most recent occurrence supplies
	// each cluster's representative statement, regardless of the
	// caller's ordering.
	ordered := make([]*models.SessionReplay, 0, len(replays))
	for _, r := range replays {
		if r != nil && len(r.Insights) > 0 {
			ordered = append(ordered, r)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		ti, tj := ordered[i].EndTime(), ordered[j].EndTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ordered[i].SessionID < ordered[j].SessionID
	})

	byKey := make(map[string]*wisdomCluster)
	var clusters []*wisdomCluster

	for _, replay := range ordered {
		epoch := replay.EndTime().UnixMilli()
		for _, in := range replay.Insights {
			c := findCluster(byKey, clusters, &in)
			if c == nil {
				c = &wisdomCluster{
					category: in.Category,
					subject:  in.Subject,
					terms:    similarity.ExtractTerms(in.Statement),
					sessions: make(map[string]int64),
				}
				clusters = append(clusters, c)
				if key := subjectKey(&in); key != "" {
					byKey[key] = c
				}
			}
			c.statement = in.Statement
			c.sessions[replay.SessionID] = epoch
			if epoch > c.lastSeen {
				c.lastSeen = epoch
			}
		}
	}

	summary := &models.WisdomSummary{
		GeneratedAt:  time.Now().UTC(),
		SessionCount: len(ordered),
		Clusters:     make([]models.WisdomCluster, 0, len(clusters)),
	}
	for _, c := range clusters {
		summary.Clusters = append(summary.Clusters, models.WisdomCluster{
			Category:      c.category,
			Subject:       c.subject,
			Statement:     c.statement,
			Occurrences:   len(c.sessions),
			SessionIDs:    sessionIDsByRecency(c.sessions),
			LastSeenEpoch: c.lastSeen,
		})
	}

	sort.SliceStable(summary.Clusters, func(i, j int) bool {
		a, b := &summary.Clusters[i], &summary.Clusters[j]
		if a.Occurrences != b.Occurrences {
			return a.Occurrences > b.Occurrences
		}
		if a.LastSeenEpoch != b.LastSeenEpoch {
			return a.LastSeenEpoch > b.LastSeenEpoch
		}
		return a.Subject < b.Subject
	})

	return summary
}

// findCluster matches an insight to an existing cluster: by
// normalized subject when it has one, otherwise by statement
// similarity within the same category.
func findCluster(byKey map[string]*wisdomCluster, clusters []*wisdomCluster, in *models.Insight) *wisdomCluster {
	if key := subjectKey(in); key != "" {
		return byKey[key]
	}

	terms := similarity.ExtractTerms(in.Statement)
	for _, c := range clusters {
		if c.category != in.Category || c.subject != "" {
			continue
		}
		if similarity.Jaccard(terms, c.terms) >= statementSimilarity {
			return c
		}
	}
	return nil
}

// subjectKey normalizes a subject so the same file discussed in
// different sessions clusters together: category plus the lowercase
// base name for paths.
func subjectKey(in *models.Insight) string {
	if in.Subject == "" {
		return ""
	}
	return string(in.Category) + "|" + strings.ToLower(filepath.Base(in.Subject))
}

func sessionIDsByRecency(sessions map[string]int64) []string {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if sessions[ids[i]] != sessions[ids[j]] {
			return sessions[ids[i]] > sessions[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
