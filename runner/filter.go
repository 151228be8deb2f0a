package runner

import "strings"

// promptNoise marks the lines sudo writes to stderr while negotiating the
// password on stdin. They are prompt traffic, not command output.
var promptNoise = []string{
	"[sudo] password for",
	"Password:",
	"Sorry, try again.",
	"incorrect password attempt",
}

// isPromptNoise reports whether a stderr line is elevation-prompt traffic.
func isPromptNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, marker := range promptNoise {
		if strings.Contains(trimmed, marker) {
			return true
		}
	}
	return false
}
