//go:build fts5

package worker

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/vibe-replay/internal/analysis"
	"github.com/thebtf/vibe-replay/internal/config"
	"github.com/thebtf/vibe-replay/internal/db"
	"github.com/thebtf/vibe-replay/internal/eventlog"
)

// testService creates a Service backed by a temp database and a temp
// session directory.
func testService(t *testing.T) *Service {
	t.Helper()

	dir := t.TempDir()
	store, err := db.NewStore(db.Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logs, err := eventlog.NewStore(filepath.Join(dir, "sessions"))
	require.NoError(t, err)

	svc := New(Options{
		Version: "test-version",
		Config:  config.Default(),
		Store:   store,
		Logs:    logs,
	})
	t.Cleanup(svc.cancel)
	svc.ready.Store(true)

	return svc
}

func doJSON(t *testing.T, svc *Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// postSession records a session through the ingest endpoint. The
// shape (a hotspot file edited across phases, one drawn-out failure)
// guarantees the analysis yields insights.
func postSession(t *testing.T, svc *Service, sessionID string) {
	t.Helper()

	var records []analysis.RawRecord
	for i := 0; i < 6; i++ {
		records = append(records, analysis.RawRecord{"tool_name": "Read", "file_path": "internal/app/server.go"})
	}
	for i := 0; i < 6; i++ {
		records = append(records, analysis.RawRecord{"tool_name": "Edit", "file_path": "internal/app/server.go",
			"old_string": "old", "new_string": "new"})
	}
	records = append(records, analysis.RawRecord{"tool_name": "Bash", "command": "make lint", "exit_code": 1})
	for i := 0; i < 6; i++ {
		records = append(records, analysis.RawRecord{"tool_name": "Edit", "file_path": "internal/app/server.go",
			"old_string": "old", "new_string": "new"})
	}
	records = append(records, analysis.RawRecord{"tool_name": "Bash", "command": "make lint", "exit_code": 0})

	for _, record := range records {
		rec := doJSON(t, svc, http.MethodPost, "/api/sessions/events", map[string]any{
			"session_id": sessionID,
			"project":    "vibe-replay_abc123",
			"record":     record,
		})
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}
}

// analyzeSession runs the analysis job synchronously.
func analyzeSession(t *testing.T, svc *Service, sessionID string) {
	t.Helper()
	svc.scheduler.runJob(job{sessionID: sessionID, project: "vibe-replay_abc123"})
}

func TestHandleHealth(t *testing.T) {
	svc := testService(t)
	svc.version = "test-version-1.2.3"

	rec := doJSON(t, svc, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "test-version-1.2.3", body["version"])
}

func TestHandleVersion(t *testing.T) {
	svc := testService(t)
	svc.version = "v2.0.0-beta"

	rec := doJSON(t, svc, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2.0.0-beta", decodeBody(t, rec)["version"])
}

func TestHandleReady_NotReady(t *testing.T) {
	svc := testService(t)
	svc.ready.Store(false)

	rec := doJSON(t, svc, http.MethodGet, "/api/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireReadyBlocksAPI(t *testing.T) {
	svc := testService(t)
	svc.ready.Store(false)

	rec := doJSON(t, svc, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleRecordEvent_Validation(t *testing.T) {
	svc := testService(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{
			name:       "missing session_id",
			body:       map[string]any{"record": analysis.RawRecord{"tool_name": "Read"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing record",
			body:       map[string]any{"session_id": "sess-1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "valid",
			body:       map[string]any{"session_id": "sess-1", "record": analysis.RawRecord{"tool_name": "Read"}},
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, svc, http.MethodPost, "/api/sessions/events", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleRecordEvent_InvalidJSON(t *testing.T) {
	svc := testService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/events", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecordEvent_RegistersSession(t *testing.T) {
	svc := testService(t)
	postSession(t, svc, "sess-1")

	session, err := svc.store.GetSession(svc.ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "active", session.Status)
	assert.Equal(t, 20, session.EventCount)
}

func TestHandleCompleteSession_Unknown(t *testing.T) {
	svc := testService(t)

	rec := doJSON(t, svc, http.MethodPost, "/api/sessions/never-seen/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCompleteSession_Queues(t *testing.T) {
	svc := testService(t)
	postSession(t, svc, "sess-1")

	rec := doJSON(t, svc, http.MethodPost, "/api/sessions/sess-1/complete", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", decodeBody(t, rec)["status"])

	session, err := svc.store.GetSession(svc.ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", session.Status)
}

func TestAnalysisJobProducesReplay(t *testing.T) {
	svc := testService(t)
	postSession(t, svc, "sess-1")
	analyzeSession(t, svc, "sess-1")

	rec := doJSON(t, svc, http.MethodGet, "/api/sessions/sess-1/replay", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "sess-1", body["session_id"])
	events, ok := body["events"].([]any)
	require.True(t, ok)
	assert.Len(t, events, 20)
	phases, ok := body["phases"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, phases)

	session, err := svc.store.GetSession(svc.ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "analyzed", session.Status)
}

func TestHandleGetReplay_Missing(t *testing.T) {
	svc := testService(t)

	rec := doJSON(t, svc, http.MethodGet, "/api/sessions/sess-1/replay", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleExportReplay(t *testing.T) {
	svc := testService(t)
	postSession(t, svc, "sess-1")
	analyzeSession(t, svc, "sess-1")

	markdown := doJSON(t, svc, http.MethodGet, "/api/sessions/sess-1/export", nil)
	require.Equal(t, http.StatusOK, markdown.Code)
	assert.Contains(t, markdown.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, markdown.Body.String(), "# Session sess-1")
	assert.Contains(t, markdown.Body.String(), "## Timeline")

	asJSON := doJSON(t, svc, http.MethodGet, "/api/sessions/sess-1/export?format=json", nil)
	require.Equal(t, http.StatusOK, asJSON.Code)
	assert.Contains(t, asJSON.Body.String(), `"session_id": "sess-1"`)

	bad := doJSON(t, svc, http.MethodGet, "/api/sessions/sess-1/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestHandleListSessions(t *testing.T) {
	svc := testService(t)
	postSession(t, svc, "sess-1")
	postSession(t, svc, "sess-2")

	rec := doJSON(t, svc, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])

	limited := doJSON(t, svc, http.MethodGet, "/api/sessions?limit=1", nil)
	assert.EqualValues(t, 1, decodeBody(t, limited)["count"])

	other := doJSON(t, svc, http.MethodGet, "/api/sessions?project=unrelated", nil)
	assert.EqualValues(t, 0, decodeBody(t, other)["count"])
}

func TestHandleDeleteSession(t *testing.T) {
	svc := testService(t)
	postSession(t, svc, "sess-1")
	analyzeSession(t, svc, "sess-1")

	rec := doJSON(t, svc, http.MethodDelete, "/api/sessions/sess-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	replay := doJSON(t, svc, http.MethodGet, "/api/sessions/sess-1/replay", nil)
	assert.Equal(t, http.StatusNotFound, replay.Code)

	records, err := svc.logs.ReadAll("sess-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHandleWisdom(t *testing.T) {
	svc := testService(t)

	empty := doJSON(t, svc, http.MethodGet, "/api/wisdom", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.EqualValues(t, 0, decodeBody(t, empty)["session_count"])

	postSession(t, svc, "sess-1")
	analyzeSession(t, svc, "sess-1")
	postSession(t, svc, "sess-2")
	analyzeSession(t, svc, "sess-2")

	rec := doJSON(t, svc, http.MethodGet, "/api/wisdom", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decodeBody(t, rec)["session_count"])

	markdown := doJSON(t, svc, http.MethodGet, "/api/wisdom?format=markdown", nil)
	require.Equal(t, http.StatusOK, markdown.Code)
	assert.Contains(t, markdown.Body.String(), "# Accumulated wisdom")
}

func TestHandleSearchInsights(t *testing.T) {
	svc := testService(t)

	missing := doJSON(t, svc, http.MethodGet, "/api/insights/search", nil)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	postSession(t, svc, "sess-1")
	analyzeSession(t, svc, "sess-1")

	rec := doJSON(t, svc, http.MethodGet, "/api/insights/search?q=server", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, results)

	none := doJSON(t, svc, http.MethodGet, "/api/insights/search?q=nonexistentterm", nil)
	assert.EqualValues(t, 0, decodeBody(t, none)["count"])
}

func TestSchedulerRequeuesPending(t *testing.T) {
	svc := testService(t)
	postSession(t, svc, "sess-1")

	rec := doJSON(t, svc, http.MethodPost, "/api/sessions/sess-1/complete", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	pending, err := svc.store.PendingSessions(svc.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, svc.requeuePending())
	// The complete handler queued one job, requeuePending a second.
	assert.Len(t, svc.scheduler.jobs, 2)
}
