// Package safety classifies command strings before execution. The checks
// guard against accidental destructive input; they are not a security
// boundary against an operator who already has a shell.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of classifying a single command string.
type Verdict struct {
	Allowed bool
	Reason  string
}

// forbidden substrings, matched case-insensitively anywhere in the command.
var forbidden = []string{
	"rm -rf /",
	"dd if=",
	"mkfs.",
	"fdisk",
	"parted",
	":(){ :|:& };:",
	"chmod -r 777 /",
	"format",
	"erase",
	"systemctl mask",
}

// problemRule flags a leading tool known to misbehave in this execution
// context and names the supported alternative.
type problemRule struct {
	tool       string
	suggestion string
}

var problematic = []problemRule{
	{"cp", "install files through pacman instead of copying them into place"},
	{"mv", "install files through pacman instead of moving them into place"},
	{"wget", "install software through pacman or flatpak instead of downloading archives"},
	{"curl", "install software through pacman or flatpak instead of downloading archives"},
	{"tar", "install packaged software through pacman instead of extracting archives"},
	{"unzip", "install packaged software through pacman instead of extracting archives"},
}

type dangerRule struct {
	re     *regexp.Regexp
	reason string
}

var dangerous = []dangerRule{
	{regexp.MustCompile(`\brm\s+[^|;&]*\*`), "wildcard deletion is not allowed"},
	{regexp.MustCompile(`>\s*/dev/(sd|hd|nvme|mmcblk)`), "writing to a block device is not allowed"},
	{regexp.MustCompile(`\|\s*(sudo\s+)?rm\b`), "piping into a delete command is not allowed"},
}

// trusted tool names that waive the metacharacter check when they appear
// anywhere in the command. Known heuristic; existing callers depend on it,
// so it must not be tightened silently.
var trusted = []string{
	"pacman",
	"yay",
	"paru",
	"flatpak",
	"systemctl",
}

const metacharacters = ";&`$()"

// Classify inspects a raw command string and returns whether it may be
// executed. Checks run in a fixed order and stop at the first match; the
// verdict carries that rule's reason. Stateless and free of I/O.
func Classify(command string) Verdict {
	lower := strings.ToLower(command)

	for _, pattern := range forbidden {
		if strings.Contains(lower, pattern) {
			return Verdict{Reason: fmt.Sprintf("command contains forbidden pattern %q", pattern)}
		}
	}

	if tool := leadingTool(lower); tool != "" {
		for _, rule := range problematic {
			if tool == rule.tool {
				return Verdict{Reason: fmt.Sprintf("%s is unreliable in this context; %s", rule.tool, rule.suggestion)}
			}
		}
	}

	for _, rule := range dangerous {
		if rule.re.MatchString(lower) {
			return Verdict{Reason: rule.reason}
		}
	}

	if strings.Contains(lower, "../") {
		return Verdict{Reason: "path traversal is not allowed"}
	}

	if strings.ContainsAny(command, metacharacters) && !containsTrusted(lower) {
		return Verdict{Reason: "shell control characters are only allowed in package manager and service commands"}
	}

	return Verdict{Allowed: true}
}

// leadingTool returns the first token of the command, skipping a leading
// sudo so that elevated and plain invocations classify the same way.
func leadingTool(lower string) string {
	tokens := strings.Fields(lower)
	if len(tokens) == 0 {
		return ""
	}
	if tokens[0] == "sudo" && len(tokens) > 1 {
		return tokens[1]
	}
	return tokens[0]
}

func containsTrusted(lower string) bool {
	for _, name := range trusted {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}
