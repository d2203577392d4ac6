// Package config provides configuration management for vibe-replay.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/vibe-replay/internal/analysis"
)

const (
	// DefaultWorkerPort is the localhost port the background worker
	// listens on when no override is configured.
	DefaultWorkerPort = 37731

	// DefaultMaxConns caps concurrent analysis jobs in the worker.
	DefaultMaxConns = 4

	// Capture truncation limits: per-string and per-record byte caps.
	DefaultMaxStringLen  = 5000
	DefaultMaxPayloadLen = 50000
)

// Config holds the runtime settings read from settings.json. Every
// field has a default; an absent or unreadable settings file is never
// an error.
type Config struct {
	WorkerPort int
	MaxConns   int

	MaxStringLen  int
	MaxPayloadLen int
	RedactSecrets bool
	// RedactPatterns are extra secret prefixes the capture layer
	// scrubs, beyond the built-in ones.
	RedactPatterns []string

	MinPhaseEvents   int
	MinPhaseSpanSec  int
	MaxPhases        int
	MaxPhasesLong    int
	HotspotThreshold int
	RhythmThreshold  int
	DetourMinEvents  int
	FamiliarityLow   float64
	FamiliarityHigh  float64
}

// Default returns the built-in configuration.
func Default() *Config {
	a := analysis.DefaultConfig()
	return &Config{
		WorkerPort:       DefaultWorkerPort,
		MaxConns:         DefaultMaxConns,
		MaxStringLen:     DefaultMaxStringLen,
		MaxPayloadLen:    DefaultMaxPayloadLen,
		RedactSecrets:    true,
		MinPhaseEvents:   a.MinPhaseEvents,
		MinPhaseSpanSec:  int(a.MinPhaseSpan / time.Second),
		MaxPhases:        a.MaxPhases,
		MaxPhasesLong:    a.MaxPhasesLong,
		HotspotThreshold: a.HotspotThreshold,
		RhythmThreshold:  a.RhythmThreshold,
		DetourMinEvents:  a.DetourMinEvents,
		FamiliarityLow:   a.FamiliarityLow,
		FamiliarityHigh:  a.FamiliarityHigh,
	}
}

// AnalysisConfig translates the loaded settings into engine thresholds.
func (c *Config) AnalysisConfig() analysis.Config {
	return analysis.Config{
		MinPhaseEvents:   c.MinPhaseEvents,
		MinPhaseSpan:     time.Duration(c.MinPhaseSpanSec) * time.Second,
		MaxPhases:        c.MaxPhases,
		MaxPhasesLong:    c.MaxPhasesLong,
		HotspotThreshold: c.HotspotThreshold,
		RhythmThreshold:  c.RhythmThreshold,
		DetourMinEvents:  c.DetourMinEvents,
		FamiliarityLow:   c.FamiliarityLow,
		FamiliarityHigh:  c.FamiliarityHigh,
	}
}

// DataDir returns the vibe-replay data directory under $HOME.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".vibe-replay")
}

// DBPath returns the session index database path.
func DBPath() string {
	return filepath.Join(DataDir(), "vibe-replay.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// SessionsDir returns the directory holding per-session event logs
// and replays.
func SessionsDir() string {
	return filepath.Join(DataDir(), "sessions")
}

// RulesPath returns the optional labeling keyword override file.
func RulesPath() string {
	return filepath.Join(DataDir(), "rules.yaml")
}

// EnsureDataDir creates the data directory tree if missing.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0750); err != nil {
		return err
	}
	return os.MkdirAll(SessionsDir(), 0750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaults := map[string]any{
		"VIBE_REPLAY_WORKER_PORT":       DefaultWorkerPort,
		"VIBE_REPLAY_MAX_CONNS":         DefaultMaxConns,
		"VIBE_REPLAY_MAX_STRING_LEN":    DefaultMaxStringLen,
		"VIBE_REPLAY_MAX_PAYLOAD_LEN":   DefaultMaxPayloadLen,
		"VIBE_REPLAY_REDACT_SECRETS":    true,
		"VIBE_REPLAY_MIN_PHASE_EVENTS":  Default().MinPhaseEvents,
		"VIBE_REPLAY_MAX_PHASES":        Default().MaxPhases,
		"VIBE_REPLAY_HOTSPOT_THRESHOLD": Default().HotspotThreshold,
	}
	data, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll initializes the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads settings.json and applies overrides on top of the
// defaults. Missing or malformed settings yield the defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		return cfg, nil
	}

	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return cfg, nil
	}

	applyInt(settings, "VIBE_REPLAY_WORKER_PORT", &cfg.WorkerPort)
	applyInt(settings, "VIBE_REPLAY_MAX_CONNS", &cfg.MaxConns)
	applyInt(settings, "VIBE_REPLAY_MAX_STRING_LEN", &cfg.MaxStringLen)
	applyInt(settings, "VIBE_REPLAY_MAX_PAYLOAD_LEN", &cfg.MaxPayloadLen)
	applyBool(settings, "VIBE_REPLAY_REDACT_SECRETS", &cfg.RedactSecrets)
	if v, ok := settings["VIBE_REPLAY_REDACT_PATTERNS"].(string); ok && v != "" {
		cfg.RedactPatterns = splitTrim(v)
	}

	applyInt(settings, "VIBE_REPLAY_MIN_PHASE_EVENTS", &cfg.MinPhaseEvents)
	applyInt(settings, "VIBE_REPLAY_MIN_PHASE_SPAN_SEC", &cfg.MinPhaseSpanSec)
	applyInt(settings, "VIBE_REPLAY_MAX_PHASES", &cfg.MaxPhases)
	applyInt(settings, "VIBE_REPLAY_MAX_PHASES_LONG", &cfg.MaxPhasesLong)
	applyInt(settings, "VIBE_REPLAY_HOTSPOT_THRESHOLD", &cfg.HotspotThreshold)
	applyInt(settings, "VIBE_REPLAY_RHYTHM_THRESHOLD", &cfg.RhythmThreshold)
	applyInt(settings, "VIBE_REPLAY_DETOUR_MIN_EVENTS", &cfg.DetourMinEvents)
	applyFloat(settings, "VIBE_REPLAY_FAMILIARITY_LOW", &cfg.FamiliarityLow)
	applyFloat(settings, "VIBE_REPLAY_FAMILIARITY_HIGH", &cfg.FamiliarityHigh)

	return cfg, nil
}

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Get returns the cached global config, loading it on first use.
func Get() *Config {
	globalMu.RLock()
	if globalCfg != nil {
		defer globalMu.RUnlock()
		return globalCfg
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		cfg, _ := Load()
		globalCfg = cfg
	}
	return globalCfg
}

// Reset clears the cached global config. Test helper.
func Reset() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = nil
}

// GetWorkerPort returns the worker port, preferring the
// VIBE_REPLAY_WORKER_PORT environment variable over settings.json.
func GetWorkerPort() int {
	if env := os.Getenv("VIBE_REPLAY_WORKER_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			return port
		}
	}
	return Get().WorkerPort
}

func applyInt(settings map[string]any, key string, dst *int) {
	if v, ok := settings[key].(float64); ok && v > 0 {
		*dst = int(v)
	}
}

func applyFloat(settings map[string]any, key string, dst *float64) {
	if v, ok := settings[key].(float64); ok && v > 0 {
		*dst = v
	}
}

func applyBool(settings map[string]any, key string, dst *bool) {
	if v, ok := settings[key].(bool); ok {
		*dst = v
	}
}

// splitTrim splits a comma-separated value into trimmed, non-empty
// parts.
func splitTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
