package tools

import (
	"fmt"
	"strings"
)

// Strategy selects how oversized output is cut down.
type Strategy string

const (
	// HeadTail keeps the start and end of the output and drops the middle.
	HeadTail Strategy = "head_tail"
	// Tail keeps only the end of the output.
	Tail Strategy = "tail"
)

// OutputLimit bounds the text a tool hands back to the model. The full
// output is always kept on the Result for observers.
type OutputLimit struct {
	MaxChars int
	MaxLines int
	Strategy Strategy
}

// truncated is the outcome of applying an OutputLimit.
type truncated struct {
	output    string
	full      string
	truncated bool
}

func truncate(full string, lim OutputLimit) truncated {
	out := truncateChars(full, lim.MaxChars, lim.Strategy)
	if lim.MaxLines > 0 {
		out = truncateLines(out, lim.MaxLines)
	}
	return truncated{output: out, full: full, truncated: out != full}
}

func truncateChars(s string, max int, strat Strategy) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	removed := len(s) - max
	switch strat {
	case Tail:
		marker := fmt.Sprintf("[output truncated: first %d characters removed]\n\n", removed)
		return marker + s[len(s)-max:]
	default:
		head := max / 2
		tail := max - head
		marker := fmt.Sprintf("\n\n[output truncated: %d characters removed from the middle; re-run with narrower parameters to see specific parts]\n\n", removed)
		return s[:head] + marker + s[len(s)-tail:]
	}
}

func truncateLines(s string, max int) string {
	if max <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	head := max / 2
	tail := max - head
	omitted := len(lines) - head - tail
	marker := fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted)
	return strings.Join(lines[:head], "\n") + marker + strings.Join(lines[len(lines)-tail:], "\n")
}

// defaultLimit returns the output bound applied when a tool registers
// without one. File reads get the most room; notification-style tools
// the least.
func defaultLimit(name string) OutputLimit {
	switch name {
	case "read_file":
		return OutputLimit{MaxChars: 50_000, Strategy: HeadTail}
	case "list_directory":
		return OutputLimit{MaxChars: 20_000, MaxLines: 500, Strategy: Tail}
	case "fetch_url":
		return OutputLimit{MaxChars: 30_000, Strategy: HeadTail}
	case "web_search":
		return OutputLimit{MaxChars: 20_000, Strategy: Tail}
	case "write_file", "push_notification":
		return OutputLimit{MaxChars: 1_000, Strategy: Tail}
	default:
		return OutputLimit{MaxChars: 20_000, Strategy: HeadTail}
	}
}
