// Package privacy scrubs sensitive material from captured payloads
// before anything is written to disk.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// privateTagRegex matches <private>...</private> tags
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// secretRegexes match common credential shapes in captured file
	// content and command output.
	secretRegexes = []*regexp.Regexp{
		regexp.MustCompile(`ghp_[A-Za-z0-9]{20,}`),
		regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`),
		regexp.MustCompile(`sk-[A-Za-z0-9\-_]{20,}`),
		regexp.MustCompile(`xox[bap]-[A-Za-z0-9\-]{10,}`),
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
		regexp.MustCompile(`(?i)(password|passwd|api[_-]?key|secret|token)\s*[=:]\s*\S+`),
	}
)

const redacted = "[REDACTED]"

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// IsEntirelyPrivate checks if the text is entirely within <private> tags.
func IsEntirelyPrivate(text string) bool {
	stripped := StripPrivateTags(text)
	return strings.TrimSpace(stripped) == ""
}

// RedactSecrets replaces credential-shaped substrings with a marker.
func RedactSecrets(text string) string {
	for _, re := range secretRegexes {
		text = re.ReplaceAllString(text, redacted)
	}
	return text
}

// RedactPrefixed masks any token starting with one of the given
// prefixes. Used for user-configured secret patterns.
func RedactPrefixed(text string, prefixes []string) string {
	if len(prefixes) == 0 {
		return text
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '\''
	})
	for _, field := range fields {
		for _, prefix := range prefixes {
			if strings.HasPrefix(field, prefix) && len(field) > len(prefix) {
				text = strings.ReplaceAll(text, field, redacted)
			}
		}
	}
	return text
}

// Clean strips private tags and redacts secrets. This is the main
// entry point before storing any captured content.
func Clean(text string, extraPrefixes []string) string {
	text = StripPrivateTags(text)
	text = RedactSecrets(text)
	text = RedactPrefixed(text, extraPrefixes)
	return strings.TrimSpace(text)
}
