package analysis

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the keyword sets the labeling pass matches against
// event targets and summaries. They ship with code defaults and can
// be overridden by a rules.yaml in the data directory.
type Rules struct {
	DebugKeywords    []string `yaml:"debug_keywords"`
	TestKeywords     []string `yaml:"test_keywords"`
	RefactorKeywords []string `yaml:"refactor_keywords"`
}

// DefaultRules returns the built-in keyword sets.
func DefaultRules() *Rules {
	return &Rules{
		DebugKeywords: []string{
			"error", "fail", "bug", "fix", "debug", "traceback",
			"exception", "broken", "crash", "panic", "wrong", "problem",
		},
		TestKeywords: []string{
			"test", "pytest", "go test", "npm test", "assert", "spec",
			"coverage", "mock", "fixture",
		},
		RefactorKeywords: []string{
			"refactor", "rename", "extract", "cleanup", "restructure",
		},
	}
}

// LoadRules reads keyword overrides from a YAML file. A missing file
// yields the defaults, not an error. Empty sections keep their
// default keywords.
func LoadRules(path string) (*Rules, error) {
	defaults := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return nil, err
	}

	var loaded Rules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, err
	}

	if len(loaded.DebugKeywords) > 0 {
		defaults.DebugKeywords = loaded.DebugKeywords
	}
	if len(loaded.TestKeywords) > 0 {
		defaults.TestKeywords = loaded.TestKeywords
	}
	if len(loaded.RefactorKeywords) > 0 {
		defaults.RefactorKeywords = loaded.RefactorKeywords
	}
	return defaults, nil
}

// matchesAny reports whether text contains any of the keywords.
// Matching is case-insensitive.
func matchesAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
