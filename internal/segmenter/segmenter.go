// Package segmenter splits raw contract text into overlapping, bounded
// word-count chunks, force-breaking at structural headers so a chunk never
// straddles an article or section boundary.
package segmenter

import (
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// headerPattern matches structural headers such as "ARTICLE 3",
// "Section 12" or "2.1 Definitions" at the start of a sentence.
var headerPattern = regexp.MustCompile(`^(ARTICLE\s+\d+|Section\s+\d+|\d+\.\d+\s+[A-Z])`)

const (
	// minChunkWords is the floor an accumulated chunk must reach before any
	// boundary (header or size) is allowed to fire.
	minChunkWords = 50
	// minChunkChars filters stray headers and page furniture; shorter
	// chunks are noise and dropped.
	minChunkChars = 80
)

type Config struct {
	ChunkSize int // target words per chunk
	Overlap   int // trailing words carried into the next chunk
}

type Segmenter struct {
	chunkSize int
	overlap   int
}

func New(cfg Config) *Segmenter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 200
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	return &Segmenter{
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.Overlap,
	}
}

// Split produces the ordered chunk sequence for text. Sentences are never
// split mid-way: a single sentence longer than the target size gets its own
// chunk. Header-forced boundaries carry no overlap (headers mark a hard
// topic change); size-forced boundaries seed the next chunk with the
// trailing overlap words of the previous one.
func (s *Segmenter) Split(text string) []string {
	sentences := SplitSentences(strings.TrimSpace(text))

	var chunks []string
	var current []string

	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}

		isHeader := headerPattern.MatchString(strings.TrimSpace(sentence))

		if isHeader && len(current) > minChunkWords {
			chunks = appendChunk(chunks, current)
			current = words
			continue
		}

		if len(current)+len(words) > s.chunkSize && len(current) > minChunkWords {
			chunks = appendChunk(chunks, current)

			overlap := current
			if len(current) > s.overlap {
				overlap = current[len(current)-s.overlap:]
			}
			current = make([]string, 0, len(overlap)+len(words))
			current = append(current, overlap...)
			current = append(current, words...)
		} else {
			current = append(current, words...)
		}
	}

	if len(current) > 0 {
		chunks = appendChunk(chunks, current)
	}

	return chunks
}

func appendChunk(chunks []string, words []string) []string {
	text := strings.TrimSpace(strings.Join(words, " "))
	if len(text) > minChunkChars {
		chunks = append(chunks, text)
	}
	return chunks
}

// SplitSentences segments text into sentences, preferring the prose
// segmenter and falling back to punctuation scanning if it fails.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err == nil {
		sents := doc.Sentences()
		out := make([]string, 0, len(sents))
		for _, sent := range sents {
			if t := strings.TrimSpace(sent.Text); t != "" {
				out = append(out, t)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	return scanSentences(text)
}

// scanSentences splits after runs of terminal punctuation followed by
// whitespace.
func scanSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		if !isTerminal(text[i]) {
			continue
		}
		j := i + 1
		for j < len(text) && isTerminal(text[j]) {
			j++
		}
		if j < len(text) && !isSpace(text[j]) {
			continue
		}
		if sent := strings.TrimSpace(text[start:j]); sent != "" {
			sentences = append(sentences, sent)
		}
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		start = j
		i = j - 1
	}

	if sent := strings.TrimSpace(text[start:]); sent != "" {
		sentences = append(sentences, sent)
	}

	return sentences
}

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
