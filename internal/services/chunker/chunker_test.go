package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/responsa/internal/models"
)

func TestNewRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -5},
		{"overlap equals size", 50, 50},
		{"overlap exceeds size", 50, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.chunkSize, tt.overlap, 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidChunking))
		})
	}
}

func TestSplitEmptyText(t *testing.T) {
	c, err := New(500, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, c.Split(""))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c, err := New(500, 50, 10)
	require.NoError(t, err)

	chunks := c.Split("The sky is blue. Grass is green.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "The sky is blue. Grass is green.", chunks[0])
}

func TestSplitDropsTinyFragments(t *testing.T) {
	c, err := New(500, 50, 10)
	require.NoError(t, err)

	assert.Empty(t, c.Split("short"))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestSplitMinLengthCountsRunes(t *testing.T) {
	c, err := New(20, 0, 10)
	require.NoError(t, err)

	// The trailing fragment is 6 runes but 12 bytes; it must still be
	// dropped by the minimum-length filter.
	chunks := c.Split("abcdefghij abcdefgh ééééàç")
	require.Len(t, chunks, 1)
	assert.Equal(t, "abcdefghij abcdefgh", chunks[0])
}

func TestSplitOverlappingWindows(t *testing.T) {
	c, err := New(100, 20, 10)
	require.NoError(t, err)

	// Distinct words so shared content can only come from the overlap.
	words := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		words = append(words, fmt.Sprintf("w%03d", i))
	}
	text := strings.Join(words, " ")

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	// Successive chunks share content: the head of each chunk lies inside
	// the previous window because the step is smaller than the window.
	for i := 1; i < len(chunks); i++ {
		head := strings.Fields(chunks[i])[0]
		assert.Contains(t, chunks[i-1], head, "chunk %d does not overlap its predecessor", i)
	}
}

// Every position of the input must land in at least one window, so that
// concatenating the chunks loses nothing but boundary whitespace.
func TestSplitCoversWholeInput(t *testing.T) {
	c, err := New(500, 50, 10)
	require.NoError(t, err)

	// Distinct words so each chunk occurs exactly once in the input.
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, fmt.Sprintf("w%03d", i))
	}
	text := strings.Join(words, " ")

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	// Reconstruct coverage by locating each chunk in the original text in
	// order; successive chunks must start at or before the previous end.
	searchFrom := 0
	prevEnd := 0
	for i, chunk := range chunks {
		idx := strings.Index(text[searchFrom:], chunk)
		require.GreaterOrEqual(t, idx, 0, "chunk %d not found in input", i)
		start := searchFrom + idx
		assert.LessOrEqual(t, start, prevEnd, "gap before chunk %d", i)
		prevEnd = start + len(chunk)
		searchFrom = start + 1
	}
	// Allow trailing trimmed whitespace only.
	assert.GreaterOrEqual(t, prevEnd, len(strings.TrimRight(text, " \n\t")))
}

func TestSplitPrefersWordBoundaries(t *testing.T) {
	c, err := New(20, 5, 1)
	require.NoError(t, err)

	text := "alpha beta gamma delta epsilon zeta eta theta iota"
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	// Whitespace occurs well within the 50-rune boundary window here, so
	// every chunk must end on a complete word.
	wordSet := map[string]bool{}
	for _, w := range strings.Fields(text) {
		wordSet[w] = true
	}
	for _, chunk := range chunks {
		fields := strings.Fields(chunk)
		require.NotEmpty(t, fields)
		assert.True(t, wordSet[fields[len(fields)-1]], "chunk %q ends mid-word", chunk)
	}
}

func TestSplitIsRestartable(t *testing.T) {
	c, err := New(100, 20, 10)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
}
