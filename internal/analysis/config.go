// Package analysis turns a flat session event stream into a
// structured narrative: contiguous work phases, decision and
// turning-point markers, and evidence-backed insights.
package analysis

import "time"

// Config holds the tunable thresholds of the analysis engine.
// The zero value is usable; zero fields fall back to defaults.
type Config struct {
	// MinPhaseEvents is the smallest phase the merge pass will leave
	// standing (unless it is the only phase).
	MinPhaseEvents int
	// MinPhaseSpan is the shortest wall-clock span a phase may cover.
	MinPhaseSpan time.Duration
	// MaxPhases caps the merged phase count for ordinary sessions.
	MaxPhases int
	// MaxPhasesLong caps phases for sessions longer than LongSessionSpan.
	MaxPhasesLong   int
	LongSessionSpan time.Duration

	// HotspotThreshold is the modification count at which a target
	// touched across at least two phases becomes a hotspot.
	HotspotThreshold int
	// RhythmThreshold is the explore/implement alternation count that
	// signals incremental discovery.
	RhythmThreshold int
	// DetourMinEvents is the investigation length (in events) past
	// which a resolved failure counts as a detour instead of a
	// breakthrough.
	DetourMinEvents int

	// FamiliarityLow and FamiliarityHigh bound the normal band of the
	// explore-to-implement event ratio.
	FamiliarityLow  float64
	FamiliarityHigh float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MinPhaseEvents:   3,
		MinPhaseSpan:     2 * time.Minute,
		MaxPhases:        6,
		MaxPhasesLong:    8,
		LongSessionSpan:  time.Hour,
		HotspotThreshold: 4,
		RhythmThreshold:  2,
		DetourMinEvents:  5,
		FamiliarityLow:   0.25,
		FamiliarityHigh:  4.0,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinPhaseEvents <= 0 {
		c.MinPhaseEvents = d.MinPhaseEvents
	}
	if c.MinPhaseSpan <= 0 {
		c.MinPhaseSpan = d.MinPhaseSpan
	}
	if c.MaxPhases <= 0 {
		c.MaxPhases = d.MaxPhases
	}
	if c.MaxPhasesLong <= 0 {
		c.MaxPhasesLong = d.MaxPhasesLong
	}
	if c.LongSessionSpan <= 0 {
		c.LongSessionSpan = d.LongSessionSpan
	}
	if c.HotspotThreshold <= 0 {
		c.HotspotThreshold = d.HotspotThreshold
	}
	if c.RhythmThreshold <= 0 {
		c.RhythmThreshold = d.RhythmThreshold
	}
	if c.DetourMinEvents <= 0 {
		c.DetourMinEvents = d.DetourMinEvents
	}
	if c.FamiliarityLow <= 0 {
		c.FamiliarityLow = d.FamiliarityLow
	}
	if c.FamiliarityHigh <= 0 {
		c.FamiliarityHigh = d.FamiliarityHigh
	}
	return c
}
