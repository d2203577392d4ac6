// Package eventlog stores raw session capture records as append-only
// JSONL files, one file per session, with the finished replay stored
// alongside as a JSON document.
package eventlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/vibe-replay/internal/analysis"
	"github.com/thebtf/vibe-replay/pkg/models"
)

const (
	eventsSuffix = ".events.jsonl"
	replaySuffix = ".replay.json"
)

// Store reads and writes per-session artifacts under a root directory.
type Store struct {
	root string
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) eventsPath(sessionID string) string {
	return filepath.Join(s.root, sanitize(sessionID)+eventsSuffix)
}

func (s *Store) replayPath(sessionID string) string {
	return filepath.Join(s.root, sanitize(sessionID)+replaySuffix)
}

// Append writes one capture record to the session's log. Records are
// never rewritten; the log is strictly append-only.
func (s *Store) Append(sessionID string, record analysis.RawRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(s.eventsPath(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ReadAll returns every parseable record of a session in append order.
// Corrupt lines are skipped with a warning, never fatal: a partial log
// still analyzes.
func (s *Store) ReadAll(sessionID string) ([]analysis.RawRecord, error) {
	f, err := os.Open(s.eventsPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var records []analysis.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var record analysis.RawRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Warn().
				Str("session_id", sessionID).
				Int("line", line).
				Err(err).
				Msg("Skipping corrupt event log line")
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("scan event log: %w", err)
	}
	return records, nil
}

// WriteReplay persists the finished replay, replacing any previous
// one for the session.
func (s *Store) WriteReplay(replay *models.SessionReplay) error {
	data, err := json.MarshalIndent(replay, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal replay: %w", err)
	}

	// Write to a temp file first so readers never see a torn replay.
	path := s.replayPath(replay.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write replay: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadReplay loads a previously written replay. Returns nil with no
// error when the session has not been analyzed yet.
func (s *Store) ReadReplay(sessionID string) (*models.SessionReplay, error) {
	data, err := os.ReadFile(s.replayPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read replay: %w", err)
	}

	var replay models.SessionReplay
	if err := json.Unmarshal(data, &replay); err != nil {
		return nil, fmt.Errorf("parse replay: %w", err)
	}
	return &replay, nil
}

// ListSessions returns the ids of all sessions with an event log,
// sorted for stable output.
func (s *Store) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, eventsSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, eventsSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a session's log and replay.
func (s *Store) Delete(sessionID string) error {
	if err := os.Remove(s.eventsPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.replayPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// sanitize keeps session ids filesystem-safe.
func sanitize(sessionID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, sessionID)
}
