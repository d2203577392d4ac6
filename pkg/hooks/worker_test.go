package hooks

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverPort(t *testing.T, server *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

func TestGetWorkerPort(t *testing.T) {
	t.Setenv("VIBE_REPLAY_WORKER_PORT", "")
	assert.Equal(t, DefaultWorkerPort, GetWorkerPort())

	t.Setenv("VIBE_REPLAY_WORKER_PORT", "12345")
	assert.Equal(t, 12345, GetWorkerPort())

	t.Setenv("VIBE_REPLAY_WORKER_PORT", "invalid")
	assert.Equal(t, DefaultWorkerPort, GetWorkerPort())
}

func TestIsWorkerRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	assert.True(t, IsWorkerRunning(serverPort(t, server)))
	assert.False(t, IsWorkerRunning(1)) // nothing listens there
}

func TestIsPortInUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.True(t, IsPortInUse(serverPort(t, server)))
	assert.False(t, IsPortInUse(1))
}

func TestGetWorkerVersion(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expected       string
	}{
		{
			name: "returns version from server",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/version" {
					json.NewEncoder(w).Encode(map[string]string{"version": "1.2.3"})
				}
			},
			expected: "1.2.3",
		},
		{
			name: "returns empty on 404",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expected: "",
		},
		{
			name: "returns empty on invalid JSON",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			assert.Equal(t, tt.expected, GetWorkerVersion(serverPort(t, server)))
		})
	}
}

func TestPOST(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sessions/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := POST(serverPort(t, server), "/api/sessions/events", map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "s1", received["session_id"])
}

func TestPOSTErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"missing session_id"}`))
	}))
	defer server.Close()

	body, err := POST(serverPort(t, server), "/api/sessions/events", map[string]any{})
	assert.Error(t, err)
	assert.Contains(t, string(body), "missing session_id")
}

func TestGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/wisdom", r.URL.Path)
		w.Write([]byte(`{"session_count":0}`))
	}))
	defer server.Close()

	body, err := GET(serverPort(t, server), "/api/wisdom")
	require.NoError(t, err)
	assert.Contains(t, string(body), "session_count")
}

func TestProjectIDWithName(t *testing.T) {
	tests := []struct {
		cwd    string
		prefix string
	}{
		{cwd: "/Users/test/projects/my-project", prefix: "my-project_"},
		{cwd: "/tmp", prefix: "tmp_"},
	}

	for _, tt := range tests {
		t.Run(tt.cwd, func(t *testing.T) {
			result := ProjectIDWithName(tt.cwd)
			assert.Contains(t, result, tt.prefix)
			// Stable: same path always hashes the same.
			assert.Equal(t, result, ProjectIDWithName(tt.cwd))
		})
	}
}

func TestKillProcessOnPort_NoProcess(t *testing.T) {
	// No listener on the port: should be a no-op, not an error.
	require.NoError(t, KillProcessOnPort(1))
}

func TestFindWorkerBinary(t *testing.T) {
	// Result depends on the installation; just verify it does not panic.
	t.Logf("findWorkerBinary returned: %s", findWorkerBinary())
}
