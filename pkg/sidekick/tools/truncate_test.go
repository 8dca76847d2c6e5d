package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateUnderLimit(t *testing.T) {
	res := truncate("short", OutputLimit{MaxChars: 100, Strategy: HeadTail})
	assert.Equal(t, "short", res.output)
	assert.False(t, res.truncated)
}

func TestTruncateHeadTailKeepsBothEnds(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	res := truncate(input, OutputLimit{MaxChars: 100, Strategy: HeadTail})

	assert.True(t, res.truncated)
	assert.True(t, strings.HasPrefix(res.output, "aaaa"))
	assert.True(t, strings.HasSuffix(res.output, "zzzz"))
	assert.Contains(t, res.output, "removed from the middle")
	assert.Equal(t, input, res.full)
}

func TestTruncateTailKeepsEnd(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	res := truncate(input, OutputLimit{MaxChars: 100, Strategy: Tail})

	assert.True(t, res.truncated)
	assert.True(t, strings.HasPrefix(res.output, "[output truncated"))
	assert.True(t, strings.HasSuffix(res.output, "zzzz"))
	assert.NotContains(t, strings.TrimPrefix(res.output, "[output truncated"), "a")
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "line"
	}
	input := strings.Join(lines, "\n")

	res := truncate(input, OutputLimit{MaxChars: 1 << 20, MaxLines: 10, Strategy: Tail})
	assert.True(t, res.truncated)
	assert.Contains(t, res.output, "90 lines omitted")
	assert.LessOrEqual(t, strings.Count(res.output, "\n"), 12)
}

func TestTruncateZeroLimitPassesThrough(t *testing.T) {
	input := strings.Repeat("x", 10_000)
	res := truncate(input, OutputLimit{})
	assert.Equal(t, input, res.output)
	assert.False(t, res.truncated)
}

func TestDefaultLimitsPerTool(t *testing.T) {
	assert.Equal(t, 50_000, defaultLimit("read_file").MaxChars)
	assert.Equal(t, HeadTail, defaultLimit("read_file").Strategy)
	assert.Equal(t, 1_000, defaultLimit("write_file").MaxChars)
	assert.Equal(t, 20_000, defaultLimit("anything_else").MaxChars)
}
