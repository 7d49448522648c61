package segmenter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "The contracting entity shall deliver all specified goods within thirty calendar days item %d. ", i)
	}
	return b.String()
}

func TestSplitShortTextDropped(t *testing.T) {
	s := New(Config{ChunkSize: 200, Overlap: 40})

	chunks := s.Split("Section 1 Definitions.")
	assert.Empty(t, chunks, "text below the minimum chunk length should produce no chunks")
}

func TestSplitEmptyText(t *testing.T) {
	s := New(Config{ChunkSize: 200, Overlap: 40})

	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\t  "))
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := New(Config{ChunkSize: 60, Overlap: 10})

	chunks := s.Split(longText(30))
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		words := strings.Fields(chunk)
		// a boundary fires as soon as the next sentence would overflow, so
		// a chunk can exceed the target by at most one sentence
		assert.LessOrEqual(t, len(words), 60+14, "chunk %d too large", i)
	}
}

func TestSplitOverlapReconstructsText(t *testing.T) {
	const overlap = 10
	s := New(Config{ChunkSize: 60, Overlap: overlap})

	text := longText(30)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 2)

	var rebuilt []string
	for i, chunk := range chunks {
		words := strings.Fields(chunk)
		if i > 0 {
			require.Greater(t, len(words), overlap)
			words = words[overlap:]
		}
		rebuilt = append(rebuilt, words...)
	}

	assert.Equal(t, strings.Fields(text), rebuilt)
}

func TestSplitDeterministic(t *testing.T) {
	s := New(Config{ChunkSize: 60, Overlap: 10})
	text := longText(25)

	first := s.Split(text)
	second := s.Split(text)
	assert.Equal(t, first, second)
}

func TestSplitHeaderForcesBoundary(t *testing.T) {
	s := New(Config{ChunkSize: 200, Overlap: 40})

	opening := strings.TrimSpace(strings.Repeat("the supplier obligations remain fully binding ", 10)) + " now."
	text := opening + " ARTICLE 2 Payment terms and the schedule of invoicing obligations are set out in the annexed commercial schedule for both parties. " +
		"All invoices fall due within forty five days of receipt by the paying party under this article."

	chunks := s.Split(text)
	require.Len(t, chunks, 2)

	assert.True(t, strings.HasPrefix(chunks[1], "ARTICLE 2"),
		"chunk after a header boundary must start at the header")

	// header boundaries carry no overlap words from the previous chunk
	assert.NotContains(t, chunks[1], "binding now")
}

func TestSplitHeaderIgnoredBelowFloor(t *testing.T) {
	s := New(Config{ChunkSize: 200, Overlap: 40})

	text := "This agreement is made between the parties named below on the first day of March. " +
		"ARTICLE 1 General provisions apply to every obligation and every party throughout the whole term of this agreement without exception."

	// only 15 words accumulated when the header arrives, below the floor,
	// so everything stays in one chunk
	chunks := s.Split(text)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "ARTICLE 1")
}

func TestScanSentences(t *testing.T) {
	got := scanSentences("First sentence here. Second one! Third?  Fourth trailing without punctuation")
	assert.Equal(t, []string{
		"First sentence here.",
		"Second one!",
		"Third?",
		"Fourth trailing without punctuation",
	}, got)
}

func TestScanSentencesKeepsInternalPeriods(t *testing.T) {
	got := scanSentences("Payment of $1.5 million is due. The e.g. cases stay intact when no space follows.")
	assert.Equal(t, []string{
		"Payment of $1.5 million is due.",
		"The e.g.",
		"cases stay intact when no space follows.",
	}, got)
}

func TestHeaderPattern(t *testing.T) {
	cases := map[string]bool{
		"ARTICLE 3 Indemnification":   true,
		"Section 12 Governing Law":    true,
		"2.1 Definitions":             true,
		"article 3 lower case":        false,
		"The parties agree as follows": false,
	}
	for input, want := range cases {
		assert.Equal(t, want, headerPattern.MatchString(input), input)
	}
}
