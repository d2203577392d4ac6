package hooks

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultWorkerPort is the localhost port the worker listens on.
// Kept in sync with the config package default.
const DefaultWorkerPort = 37731

// Version is stamped at build time and compared against the running
// worker so stale workers get restarted after an upgrade.
var Version = "dev"

const (
	healthTimeout  = 500 * time.Millisecond
	startupTimeout = 10 * time.Second
)

// GetWorkerPort returns the configured worker port without starting
// anything.
func GetWorkerPort() int {
	if env := os.Getenv("VIBE_REPLAY_WORKER_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			return port
		}
	}
	return DefaultWorkerPort
}

// IsWorkerRunning reports whether a healthy worker answers on the port.
func IsWorkerRunning(port int) bool {
	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/api/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// IsPortInUse reports whether anything is listening on the port.
func IsPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), healthTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// GetWorkerVersion asks the running worker for its version. Empty on
// any failure.
func GetWorkerVersion(port int) string {
	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/api/version", port))
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Version
}

// KillProcessOnPort terminates whatever holds the port. Used when a
// stale or foreign process blocks the worker's port. No process is
// not an error.
func KillProcessOnPort(port int) error {
	out, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil || len(bytes.TrimSpace(out)) == 0 {
		return nil
	}

	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
	time.Sleep(200 * time.Millisecond)
	return nil
}

// findWorkerBinary locates the worker executable: next to the hook
// binary first, then the data dir, then PATH.
func findWorkerBinary() string {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "vibe-replay-worker")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".vibe-replay", "bin", "vibe-replay-worker")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if path, err := exec.LookPath("vibe-replay-worker"); err == nil {
		return path
	}
	return ""
}

// EnsureWorkerRunning returns the port of a healthy worker, starting
// (or restarting) one if needed.
func EnsureWorkerRunning() (int, error) {
	port := GetWorkerPort()

	if IsWorkerRunning(port) {
		running := GetWorkerVersion(port)
		if running == "" || running == Version {
			return port, nil
		}
		// Stale worker from a previous install: replace it.
		if err := KillProcessOnPort(port); err != nil {
			return 0, fmt.Errorf("stop stale worker: %w", err)
		}
	} else if IsPortInUse(port) {
		return 0, fmt.Errorf("port %d is held by a non-worker process", port)
	}

	binary := findWorkerBinary()
	if binary == "" {
		return 0, fmt.Errorf("vibe-replay-worker binary not found")
	}

	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(), fmt.Sprintf("VIBE_REPLAY_WORKER_PORT=%d", port))
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start worker: %w", err)
	}
	_ = cmd.Process.Release()

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		if IsWorkerRunning(port) {
			return port, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return 0, fmt.Errorf("worker did not become healthy on port %d", port)
}

// POST sends a JSON request to the worker and returns the response
// body.
func POST(port int, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(
		fmt.Sprintf("http://127.0.0.1:%d%s", port, path),
		"application/json",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("worker returned %d for %s", resp.StatusCode, path)
	}
	return out, nil
}

// GET fetches a worker endpoint and returns the response body.
func GET(port int, path string) ([]byte, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, path))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("worker returned %d for %s", resp.StatusCode, path)
	}
	return out, nil
}
