package worker

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/vibe-replay/internal/analysis"
	"github.com/thebtf/vibe-replay/internal/db"
	"github.com/thebtf/vibe-replay/internal/render"
	"github.com/thebtf/vibe-replay/internal/worker/sse"
)

const defaultListLimit = 50

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  int64(s.uptime().Seconds()),
	})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// recordEventRequest is what the post-tool-use hook posts for each
// tool invocation.
type recordEventRequest struct {
	SessionID string             `json:"session_id"`
	Project   string             `json:"project"`
	Record    analysis.RawRecord `json:"record"`
}

func (s *Service) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Record == nil {
		writeError(w, http.StatusBadRequest, "record is required")
		return
	}

	if err := s.store.EnsureSession(r.Context(), req.SessionID, req.Project); err != nil {
		log.Error().Err(err).Str("sessionId", req.SessionID).Msg("Failed to register session")
		writeError(w, http.StatusInternalServerError, "failed to register session")
		return
	}
	if err := s.logs.Append(req.SessionID, req.Record); err != nil {
		log.Error().Err(err).Str("sessionId", req.SessionID).Msg("Failed to append event")
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}
	if err := s.store.RecordEvent(r.Context(), req.SessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", req.SessionID).Msg("Failed to bump event counter")
	}

	eventsRecorded.Add(r.Context(), 1)
	s.broadcaster.Broadcast(sse.Event{
		Type:      sse.EventRecorded,
		SessionID: req.SessionID,
		Project:   req.Project,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Service) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up session")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	if err := s.store.CompleteSession(r.Context(), sessionID); err != nil {
		// Already completed or analyzed. Requeue anyway so a lost
		// stop hook can be retried safely.
		log.Debug().Err(err).Str("sessionId", sessionID).Msg("Session not active, requeueing analysis")
	}

	s.scheduler.enqueue(job{sessionID: sessionID, project: session.Project})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// sessionSummary is the list-endpoint view of a session row.
type sessionSummary struct {
	SessionID       string  `json:"session_id"`
	Project         string  `json:"project"`
	Status          string  `json:"status"`
	EventCount      int     `json:"event_count"`
	ErrorCount      int     `json:"error_count"`
	CodeChanges     int     `json:"code_changes"`
	PhaseCount      int     `json:"phase_count"`
	InsightCount    int     `json:"insight_count"`
	DurationSeconds float64 `json:"duration_seconds"`
	StartedAt       string  `json:"started_at"`
	CompletedAt     string  `json:"completed_at,omitempty"`
}

func summarizeSession(row db.Session) sessionSummary {
	summary := sessionSummary{
		SessionID:       row.SessionID,
		Project:         row.Project,
		Status:          row.Status,
		EventCount:      row.EventCount,
		ErrorCount:      row.ErrorCount,
		CodeChanges:     row.CodeChanges,
		PhaseCount:      row.PhaseCount,
		InsightCount:    row.InsightCount,
		DurationSeconds: row.DurationSeconds,
		StartedAt:       row.StartedAt,
	}
	if row.CompletedAt.Valid {
		summary.CompletedAt = row.CompletedAt.String
	}
	return summary
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	limit := limitParam(r, defaultListLimit)

	rows, err := s.store.ListSessions(r.Context(), project, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	sessions := make([]sessionSummary, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, summarizeSession(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Service) handleGetReplay(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	replay, err := s.store.GetReplay(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load replay")
		return
	}
	if replay == nil {
		writeError(w, http.StatusNotFound, "no replay for session")
		return
	}
	writeJSON(w, http.StatusOK, replay)
}

func (s *Service) handleExportReplay(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	replay, err := s.store.GetReplay(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load replay")
		return
	}
	if replay == nil {
		writeError(w, http.StatusNotFound, "no replay for session")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(render.Markdown(replay)))
	case "json":
		data, err := render.JSON(replay)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to render replay")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "unsupported format: "+format)
	}
}

func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.store.DeleteSession(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if err := s.logs.Delete(sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Failed to remove session files")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Service) handleWisdom(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")

	replays, err := s.store.AllReplays(r.Context(), project)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load replays")
		return
	}
	summary := analysis.Aggregate(replays)

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(render.WisdomMarkdown(summary)))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// insightResult is the search-endpoint view of an insight row.
type insightResult struct {
	SessionID string  `json:"session_id"`
	Project   string  `json:"project"`
	Category  string  `json:"category"`
	Subject   string  `json:"subject,omitempty"`
	Statement string  `json:"statement"`
	Metric    float64 `json:"metric,omitempty"`
}

func (s *Service) handleSearchInsights(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := limitParam(r, 20)

	rows, err := s.store.SearchInsights(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]insightResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, insightResult{
			SessionID: row.SessionID,
			Project:   row.Project,
			Category:  row.Category,
			Subject:   row.Subject,
			Statement: row.Statement,
			Metric:    row.Metric,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (s *Service) uptime() time.Duration {
	return time.Since(s.startTime)
}
